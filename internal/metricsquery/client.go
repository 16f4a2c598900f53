// Package metricsquery is the metrics query service adapter. The engine
// makes exactly one batched call per store per cycle; per-campaign calls
// would blow through the platform's rate limits.
package metricsquery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/campaign-autopilot/cap/internal/models"
)

// Client fetches campaign performance metrics
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a metrics query client
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// campaignMetrics is the wire shape of one campaign's row in the batched
// response.
type campaignMetrics struct {
	CampaignID  string  `json:"campaign_id"`
	GMV         float64 `json:"gmv"`
	OrderCount  float64 `json:"order_count"`
	ROI         float64 `json:"roi"`
	Clicks      float64 `json:"clicks"`
	Cost        float64 `json:"cost"`
	CPC         float64 `json:"cpc"`
	CTR         float64 `json:"ctr"`
	Impressions float64 `json:"impressions"`
	Views       float64 `json:"views"`
	CPM         float64 `json:"cpm"`
	Balance     float64 `json:"balance"`
	DailyBudget float64 `json:"daily_budget"`
}

type metricsResponse struct {
	Campaigns []campaignMetrics `json:"campaigns"`
}

// FetchAll returns fresh snapshots for every campaign the platform reports
// for the store, keyed by campaign ID. Campaigns assigned to a rule but
// absent from this map are the caller's problem to classify.
func (c *Client) FetchAll(ctx context.Context, storeID string, creds models.Credentials) (map[string]models.Snapshot, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/metrics/campaigns")
	if err != nil {
		return nil, fmt.Errorf("invalid metrics URL: %w", err)
	}
	q := u.Query()
	q.Set("store_id", storeID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("X-Store-ID", storeID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metrics request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("metrics service returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var payload metricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode metrics response: %w", err)
	}

	snapshots := make(map[string]models.Snapshot, len(payload.Campaigns))
	for _, cm := range payload.Campaigns {
		snapshots[cm.CampaignID] = models.Snapshot{
			models.MetricGMV:         cm.GMV,
			models.MetricOrderCount:  cm.OrderCount,
			models.MetricROI:         cm.ROI,
			models.MetricClicks:      cm.Clicks,
			models.MetricCost:        cm.Cost,
			models.MetricCPC:         cm.CPC,
			models.MetricCTR:         cm.CTR,
			models.MetricImpressions: cm.Impressions,
			models.MetricViews:       cm.Views,
			models.MetricCPM:         cm.CPM,
			models.MetricBalance:     cm.Balance,
			models.MetricDailyBudget: cm.DailyBudget,
		}
	}

	c.logger.Debug("fetched store metrics", "store_id", storeID, "campaigns", len(snapshots))
	return snapshots, nil
}
