package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus classifies one campaign's outcome in one rule cycle
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusFailed  ExecutionStatus = "failed"
	StatusSkipped ExecutionStatus = "skipped"
)

// ExecutionLogEntry records one campaign's outcome for one rule cycle.
// Append-only; log-write failures never abort a cycle.
type ExecutionLogEntry struct {
	ID         string             `json:"id"`
	RuleID     string             `json:"rule_id"`
	RuleName   string             `json:"rule_name,omitempty"`
	CampaignID string             `json:"campaign_id"`
	StoreID    string             `json:"store_id"`
	UserID     string             `json:"user_id"`
	ActionType string             `json:"action_type"`
	Status     ExecutionStatus    `json:"status"`
	Error      string             `json:"error,omitempty"`
	Context    map[string]float64 `json:"context,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// NewExecutionLogEntry creates an entry with a fresh ID and timestamp.
func NewExecutionLogEntry(ruleID, campaignID, storeID, userID string) ExecutionLogEntry {
	return ExecutionLogEntry{
		ID:         uuid.NewString(),
		RuleID:     ruleID,
		CampaignID: campaignID,
		StoreID:    storeID,
		UserID:     userID,
		CreatedAt:  time.Now(),
	}
}

// TriggerNotification is the per-cycle notification payload. At most one
// is dispatched per rule cycle, regardless of campaign count.
type TriggerNotification struct {
	RuleName          string
	TriggeredAt       time.Time
	MatchedConditions []string
	ActionLabels      []string
	CampaignCount     int
	CustomMessage     string
}
