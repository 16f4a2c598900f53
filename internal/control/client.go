// Package control is the campaign control service adapter: budget edits,
// pause, and resume against the ads platform gateway. Calls here are
// single-attempt; the retry policy belongs to the action executor. A
// per-store rate limiter and a circuit breaker guard the remote.
package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/campaign-autopilot/cap/internal/circuitbreaker"
	"github.com/campaign-autopilot/cap/internal/models"
	"github.com/campaign-autopilot/cap/internal/ratelimit"
)

// CredentialSource supplies the access token attached to each call
type CredentialSource interface {
	Resolve(ctx context.Context, storeID string) (models.Credentials, error)
}

// Client talks to the campaign control gateway
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialSource
	limiter    *ratelimit.RateLimiter
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a campaign control client. The HTTP timeout here is a
// transport safety net; the executor applies its own per-call deadline.
func NewClient(baseURL string, creds CredentialSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 35 * time.Second,
		},
		creds:   creds,
		limiter: ratelimit.NewRateLimiter(5, 10),
		breaker: circuitbreaker.New("campaign-control", circuitbreaker.DefaultConfig()),
		logger:  logger,
	}
}

type budgetRequest struct {
	CampaignID  string `json:"campaign_id"`
	DailyBudget int64  `json:"daily_budget"`
}

type stateRequest struct {
	CampaignID string `json:"campaign_id"`
	State      string `json:"state"`
}

// EditBudget sets a campaign's daily budget
func (c *Client) EditBudget(ctx context.Context, campaignID, storeID string, budget int64) error {
	return c.call(ctx, storeID, "/api/v1/campaigns/budget", budgetRequest{
		CampaignID:  campaignID,
		DailyBudget: budget,
	})
}

// Pause suspends a campaign
func (c *Client) Pause(ctx context.Context, campaignID, storeID string) error {
	return c.call(ctx, storeID, "/api/v1/campaigns/state", stateRequest{
		CampaignID: campaignID,
		State:      "paused",
	})
}

// Resume restarts a paused campaign
func (c *Client) Resume(ctx context.Context, campaignID, storeID string) error {
	return c.call(ctx, storeID, "/api/v1/campaigns/state", stateRequest{
		CampaignID: campaignID,
		State:      "ongoing",
	})
}

func (c *Client) call(ctx context.Context, storeID, path string, payload interface{}) error {
	if err := c.limiter.Wait(ctx, storeID); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	return c.breaker.Execute(ctx, func() error {
		return c.doPost(ctx, storeID, path, payload)
	})
}

func (c *Client) doPost(ctx context.Context, storeID, path string, payload interface{}) error {
	creds, err := c.creds.Resolve(ctx, storeID)
	if err != nil {
		return fmt.Errorf("resolve credentials: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("X-Store-ID", storeID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("control service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", models.ErrControlRejected, resp.StatusCode, string(snippet))
	}

	return nil
}
