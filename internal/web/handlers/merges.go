package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ncboe-donors/internal/identity"
	"github.com/ncboe-donors/internal/store"
)

// MergeHandler serves the append-only merge log
type MergeHandler struct {
	Store  store.Store
	Merger *identity.Merger
}

// MergeResponse is the JSON shape of one merge log entry
type MergeResponse struct {
	OldID    string    `json:"old_id"`
	NewID    string    `json:"new_id"`
	MergedAt time.Time `json:"merged_at"`
}

// CurrentIDResponse carries the chain-resolved current id for an identity
type CurrentIDResponse struct {
	ID        string `json:"id"`
	CurrentID string `json:"current_id"`
}

// ListMerges returns the full merge log
func (h *MergeHandler) ListMerges(w http.ResponseWriter, r *http.Request) {
	merges, err := h.Store.ListMerges(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]MergeResponse, 0, len(merges))
	for _, m := range merges {
		out = append(out, MergeResponse{OldID: m.OldID, NewID: m.NewID, MergedAt: m.Timestamp})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCurrentID chases the merge chain for an identity to its fixed point
func (h *MergeHandler) GetCurrentID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.Store.GetIdentity(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	current, err := h.Merger.CurrentID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, CurrentIDResponse{ID: id, CurrentID: current})
}
