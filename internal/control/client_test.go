package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaign-autopilot/cap/internal/models"
)

type staticCreds struct{}

func (staticCreds) Resolve(ctx context.Context, storeID string) (models.Credentials, error) {
	return models.Credentials{StoreID: storeID, AccessToken: "token-" + storeID}, nil
}

func TestEditBudget(t *testing.T) {
	var gotPath, gotAuth, gotStore string
	var gotBody budgetRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotStore = r.Header.Get("X-Store-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, staticCreds{}, nil)
	err := c.EditBudget(context.Background(), "c1", "store-1", 2_500_000)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/campaigns/budget", gotPath)
	assert.Equal(t, "Bearer token-store-1", gotAuth)
	assert.Equal(t, "store-1", gotStore)
	assert.Equal(t, "c1", gotBody.CampaignID)
	assert.Equal(t, int64(2_500_000), gotBody.DailyBudget)
}

func TestPauseAndResumeStates(t *testing.T) {
	var states []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body stateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		states = append(states, body.State)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, staticCreds{}, nil)
	require.NoError(t, c.Pause(context.Background(), "c1", "store-1"))
	require.NoError(t, c.Resume(context.Background(), "c1", "store-1"))

	assert.Equal(t, []string{"paused", "ongoing"}, states)
}

func TestRejectionCarriesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"budget below minimum"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, staticCreds{}, nil)
	err := c.EditBudget(context.Background(), "c1", "store-1", 100)

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrControlRejected)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "budget below minimum")
}
