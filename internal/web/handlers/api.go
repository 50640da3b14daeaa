// Package handlers serves the read-only query API over resolved identity
// state. Handlers never mutate resolution data; writes go through the CLI
// pipeline and merge commands.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ncboe-donors/internal/store"
)

// StatsResponse represents overall resolution statistics
type StatsResponse struct {
	Identities  int `json:"identities"`
	Aliases     int `json:"aliases"`
	Donations   int `json:"donations"`
	Merges      int `json:"merges"`
	Households  int `json:"households"`
	SpousePairs int `json:"spouse_pairs"`
}

// APIHandler handles general API endpoints
type APIHandler struct {
	Store store.Store
}

// GetStats returns overall resolution statistics
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var stats StatsResponse

	identities, err := h.Store.ListIdentities(ctx)
	if err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	stats.Identities = len(identities)

	donations, err := h.Store.ListDonations(ctx)
	if err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	stats.Donations = len(donations)

	merges, err := h.Store.ListMerges(ctx)
	if err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	stats.Merges = len(merges)

	households, err := h.Store.ListHouseholds(ctx)
	if err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	stats.Households = len(households)

	pairs, err := h.Store.ListSpousePairs(ctx)
	if err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	stats.SpousePairs = len(pairs)

	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "database error", http.StatusInternalServerError)
}
