package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campaign-autopilot/cap/internal/models"
)

// ExecutionStore persists per-campaign execution log entries. Append-only;
// callers treat writes as best-effort.
type ExecutionStore struct {
	client *Client
}

// NewExecutionStore creates a new execution log store
func NewExecutionStore(client *Client) *ExecutionStore {
	return &ExecutionStore{client: client}
}

// Append inserts one execution log entry
func (s *ExecutionStore) Append(ctx context.Context, entry models.ExecutionLogEntry) error {
	var contextJSON []byte
	if entry.Context != nil {
		var err error
		contextJSON, err = json.Marshal(entry.Context)
		if err != nil {
			return fmt.Errorf("failed to marshal context snapshot: %w", err)
		}
	}

	query := `
		INSERT INTO execution_logs (
			id, rule_id, rule_name, campaign_id, store_id, user_id,
			action_type, status, error_detail, context_snapshot, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.client.Pool().Exec(ctx, query,
		entry.ID, entry.RuleID, entry.RuleName, entry.CampaignID, entry.StoreID,
		entry.UserID, entry.ActionType, string(entry.Status), entry.Error,
		contextJSON, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution log: %w", err)
	}
	return nil
}

// ListByRule returns the most recent entries for one rule
func (s *ExecutionStore) ListByRule(ctx context.Context, ruleID string, limit int) ([]models.ExecutionLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, rule_id, rule_name, campaign_id, store_id, user_id,
			action_type, status, error_detail, context_snapshot, created_at
		FROM execution_logs
		WHERE rule_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.client.Pool().Query(ctx, query, ruleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanExecutionRows(rows)
}

func scanExecutionRows(rows pgx.Rows) ([]models.ExecutionLogEntry, error) {
	var entries []models.ExecutionLogEntry
	for rows.Next() {
		var entry models.ExecutionLogEntry
		var status string
		var contextJSON []byte
		err := rows.Scan(
			&entry.ID, &entry.RuleID, &entry.RuleName, &entry.CampaignID,
			&entry.StoreID, &entry.UserID, &entry.ActionType, &status,
			&entry.Error, &contextJSON, &entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entry.Status = models.ExecutionStatus(status)
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &entry.Context); err != nil {
				return nil, fmt.Errorf("context_snapshot: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
