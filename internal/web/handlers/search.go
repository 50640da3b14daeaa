package handlers

import (
	"net/http"
	"time"

	"github.com/ncboe-donors/internal/normalize"
	"github.com/ncboe-donors/internal/store"
)

// SearchHandler resolves raw name strings against the alias table and the
// canonical key index without mutating anything
type SearchHandler struct {
	Store  store.Store
	Parser *normalize.NameParser
}

// AliasResponse is the JSON shape of one alias row
type AliasResponse struct {
	Form       string    `json:"form"`
	SourceRef  string    `json:"source_ref,omitempty"`
	MasterID   string    `json:"master_id"`
	MatchType  string    `json:"match_type"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// SearchAlias looks a raw name up by its comparison form
func (h *SearchHandler) SearchAlias(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name parameter", http.StatusBadRequest)
		return
	}
	alias, err := h.Store.LookupAlias(r.Context(), normalize.ComparisonForm(name))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AliasResponse{
		Form:       alias.Form,
		SourceRef:  alias.SourceRef,
		MasterID:   alias.MasterID,
		MatchType:  alias.MatchType,
		Confidence: alias.Confidence,
		CreatedAt:  alias.CreatedAt,
	})
}

// SearchIdentity parses a raw name and looks the canonical key up directly,
// bypassing the alias table. Useful for checking whether a name already has
// an identity before an import.
func (h *SearchHandler) SearchIdentity(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name parameter", http.StatusBadRequest)
		return
	}
	person := h.Parser.Parse(name)
	if person.IsEmpty() {
		http.Error(w, "name could not be parsed", http.StatusBadRequest)
		return
	}
	ident, err := h.Store.FindIdentityByKey(r.Context(), person.Last, person.First, person.Suffix)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identityResponse(ident))
}
