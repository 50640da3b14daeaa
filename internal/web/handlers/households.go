package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/ncboe-donors/internal/store"
)

// HouseholdHandler serves household clusters and spouse pairs
type HouseholdHandler struct {
	Store store.Store
}

// HouseholdResponse is the JSON shape of one household cluster
type HouseholdResponse struct {
	Key         string          `json:"key"`
	Members     []string        `json:"members"`
	MemberCount int             `json:"member_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SpousePairResponse is the JSON shape of one inferred spouse pair
type SpousePairResponse struct {
	IDA          string  `json:"id_a"`
	IDB          string  `json:"id_b"`
	HouseholdKey string  `json:"household_key"`
	Confidence   float64 `json:"confidence"`
}

func householdResponse(c *store.HouseholdCluster) HouseholdResponse {
	members := c.Members
	if members == nil {
		members = []string{}
	}
	return HouseholdResponse{
		Key:         c.Key,
		Members:     members,
		MemberCount: c.MemberCount,
		TotalAmount: c.TotalAmount,
		UpdatedAt:   c.UpdatedAt,
	}
}

// ListHouseholds returns all household clusters
func (h *HouseholdHandler) ListHouseholds(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.Store.ListHouseholds(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]HouseholdResponse, 0, len(clusters))
	for i := range clusters {
		out = append(out, householdResponse(&clusters[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetHousehold returns one cluster by household key
func (h *HouseholdHandler) GetHousehold(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	cluster, err := h.Store.GetHousehold(r.Context(), key)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, householdResponse(cluster))
}

// ListSpousePairs returns all inferred spouse pairs
func (h *HouseholdHandler) ListSpousePairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.Store.ListSpousePairs(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]SpousePairResponse, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, SpousePairResponse{IDA: p.IDA, IDB: p.IDB, HouseholdKey: p.HouseholdKey, Confidence: p.Confidence})
	}
	writeJSON(w, http.StatusOK, out)
}
