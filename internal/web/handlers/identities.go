package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/ncboe-donors/internal/identity"
	"github.com/ncboe-donors/internal/store"
)

// IdentityHandler serves master identity records
type IdentityHandler struct {
	Store  store.Store
	Merger *identity.Merger
}

// IdentityResponse is the JSON shape of one master identity
type IdentityResponse struct {
	ID          string    `json:"id"`
	CurrentID   string    `json:"current_id,omitempty"`
	FirstName   string    `json:"first_name"`
	MiddleName  string    `json:"middle_name,omitempty"`
	LastName    string    `json:"last_name"`
	Suffix      string    `json:"suffix,omitempty"`
	DisplayName string    `json:"display_name"`
	HouseNumber string    `json:"house_number,omitempty"`
	Street      string    `json:"street,omitempty"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	Zip         string    `json:"zip,omitempty"`
	County      string    `json:"county,omitempty"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
}

// DonationResponse is the JSON shape of one linked donation
type DonationResponse struct {
	SourceRef string          `json:"source_ref"`
	MasterID  string          `json:"master_id"`
	Amount    decimal.Decimal `json:"amount"`
}

func identityResponse(id *store.MasterIdentity) IdentityResponse {
	return IdentityResponse{
		ID:          id.ID,
		FirstName:   id.First,
		MiddleName:  id.Middle,
		LastName:    id.Last,
		Suffix:      id.Suffix,
		DisplayName: id.DisplayName,
		HouseNumber: id.HouseNumber,
		Street:      id.Street,
		City:        id.City,
		State:       id.State,
		Zip:         id.Zip,
		County:      id.County,
		Verified:    id.Verified,
		CreatedAt:   id.CreatedAt,
	}
}

// ListIdentities returns all master identities
func (h *IdentityHandler) ListIdentities(w http.ResponseWriter, r *http.Request) {
	identities, err := h.Store.ListIdentities(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]IdentityResponse, 0, len(identities))
	for i := range identities {
		out = append(out, identityResponse(&identities[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetIdentity returns one identity by id. Superseded identities remain
// readable; the response carries the chain-resolved current id when the
// identity has been merged away.
func (h *IdentityHandler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ident, err := h.Store.GetIdentity(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	resp := identityResponse(ident)
	current, err := h.Merger.CurrentID(r.Context(), id)
	if err == nil && current != id {
		resp.CurrentID = current
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetDonations returns the donation links held by one identity
func (h *IdentityHandler) GetDonations(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.Store.GetIdentity(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	donations, err := h.Store.ListDonations(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := []DonationResponse{}
	for _, d := range donations {
		if d.MasterID == id {
			out = append(out, DonationResponse{SourceRef: d.SourceRef, MasterID: d.MasterID, Amount: d.Amount})
		}
	}
	writeJSON(w, http.StatusOK, out)
}
