package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncboe-donors/internal/store"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	st := store.NewMemoryStore()
	srv := NewServer(DefaultConfig(), st, zerolog.Nop())
	return srv, st
}

func seedIdentity(t *testing.T, st store.Store, id, first, last, zip string) {
	t.Helper()
	err := st.CreateIdentity(context.Background(), store.MasterIdentity{
		ID:          id,
		First:       first,
		Last:        last,
		DisplayName: first + " " + last,
		Zip:         zip,
	})
	require.NoError(t, err)
}

func TestGetIdentity(t *testing.T) {
	srv, st := newTestServer(t)
	seedIdentity(t, st, "MP_AAA", "JOHN", "SMITH", "27601")

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/identities/MP_AAA", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "JOHN", resp["first_name"])
	assert.Equal(t, "SMITH", resp["last_name"])
	assert.NotContains(t, resp, "current_id")
}

func TestGetIdentityNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/identities/MP_NOPE", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMergedIdentityCarriesCurrentID(t *testing.T) {
	srv, st := newTestServer(t)
	seedIdentity(t, st, "MP_OLD", "BOB", "JONES", "28202")
	seedIdentity(t, st, "MP_NEW", "ROBERT", "JONES", "28202")
	require.NoError(t, st.AppendMerge(context.Background(), store.MergeRecord{OldID: "MP_OLD", NewID: "MP_NEW"}))

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/identities/MP_OLD", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "MP_NEW", resp["current_id"])
}

func TestSearchAlias(t *testing.T) {
	srv, st := newTestServer(t)
	seedIdentity(t, st, "MP_AAA", "JOHN", "SMITH", "27601")
	require.NoError(t, st.PutAlias(context.Background(), store.Alias{
		Form:       "SMITH JOHN A",
		SourceRef:  "r1",
		MasterID:   "MP_AAA",
		MatchType:  "exact",
		Confidence: 1,
	}))

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/search/alias?name=Smith%2C+John+A.", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "MP_AAA", resp["master_id"])
}

func TestStatsAndHouseholds(t *testing.T) {
	srv, st := newTestServer(t)
	seedIdentity(t, st, "MP_AAA", "JOHN", "SMITH", "27601")
	require.NoError(t, st.UpsertHousehold(context.Background(), store.HouseholdCluster{
		Key:         "123_27601",
		Members:     []string{"MP_AAA"},
		TotalAmount: decimal.NewFromInt(250),
	}))

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats["identities"])
	assert.EqualValues(t, 1, stats["households"])

	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/households/123_27601", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejectsBadKey(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := DefaultConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	srv := NewServer(cfg, st, zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/api/stats", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
