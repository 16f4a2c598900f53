package metricsquery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaign-autopilot/cap/internal/models"
)

func TestFetchAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/metrics/campaigns", r.URL.Path)
		assert.Equal(t, "store-1", r.URL.Query().Get("store_id"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"campaigns": [
				{"campaign_id": "c1", "roi": 1.8, "cost": 420000, "daily_budget": 2000000},
				{"campaign_id": "c2", "roi": 0.4, "order_count": 3}
			]
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	snaps, err := c.FetchAll(context.Background(), "store-1", models.Credentials{AccessToken: "token"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	roi, ok := snaps["c1"].Value(models.MetricROI)
	require.True(t, ok)
	assert.InDelta(t, 1.8, roi, 1e-9)

	budget, ok := snaps["c1"].DailyBudget()
	require.True(t, ok)
	assert.InDelta(t, 2_000_000, budget, 1e-9)

	orders, ok := snaps["c2"].Value(models.MetricOrderCount)
	require.True(t, ok)
	assert.InDelta(t, 3, orders, 1e-9)
}

func TestFetchAllNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	_, err := c.FetchAll(context.Background(), "store-1", models.Credentials{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
}
