package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campaign-autopilot/cap/internal/models"
)

// RuleStore handles automation rule persistence. The engine only reads
// rules and writes back statistics; create/edit/delete are external.
type RuleStore struct {
	client *Client
}

// NewRuleStore creates a new rule store
func NewRuleStore(client *Client) *RuleStore {
	return &RuleStore{client: client}
}

// ruleRow maps the JSONB-heavy rules table
type ruleRow struct {
	ID              string
	Name            string
	UserID          string
	Priority        int
	Assignments     []byte
	ConditionGroups []byte
	Actions         []byte
	NotifyOnTrigger bool
	ExecutionMode   string
	IntervalSeconds *int
	Schedule        []byte
	TriggerCount    int
	SuccessCount    int
	ErrorCount      int
	SuccessRate     float64
	LastExecutedAt  *time.Time
	CreatedAt       time.Time
}

// scheduleDoc is the JSONB shape of the time-axis configuration
type scheduleDoc struct {
	SelectedTimes     []string            `json:"selected_times,omitempty"`
	SelectedDays      []string            `json:"selected_days,omitempty"`
	SelectedDates     []string            `json:"selected_dates,omitempty"`
	DateTimeOverrides map[string][]string `json:"date_time_overrides,omitempty"`
}

// ListDueCandidates returns all active rules, normalized and ready for
// scheduling. Due-ness itself is decided by the scheduler, not SQL.
func (s *RuleStore) ListDueCandidates(ctx context.Context) ([]*models.Rule, error) {
	query := `
		SELECT id, name, user_id, priority, campaign_assignments, condition_groups,
			actions, notify_on_trigger, execution_mode, interval_seconds, schedule,
			trigger_count, success_count, error_count, success_rate,
			last_executed_at, created_at
		FROM automation_rules
		WHERE is_active = TRUE
		ORDER BY priority DESC, created_at ASC`

	rows, err := s.client.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.Rule
	for rows.Next() {
		var row ruleRow
		err := rows.Scan(
			&row.ID, &row.Name, &row.UserID, &row.Priority, &row.Assignments,
			&row.ConditionGroups, &row.Actions, &row.NotifyOnTrigger,
			&row.ExecutionMode, &row.IntervalSeconds, &row.Schedule,
			&row.TriggerCount, &row.SuccessCount, &row.ErrorCount,
			&row.SuccessRate, &row.LastExecutedAt, &row.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		rule, err := row.toModel()
		if err != nil {
			return nil, fmt.Errorf("failed to decode rule %s: %w", row.ID, err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// GetByID retrieves one rule
func (s *RuleStore) GetByID(ctx context.Context, ruleID string) (*models.Rule, error) {
	query := `
		SELECT id, name, user_id, priority, campaign_assignments, condition_groups,
			actions, notify_on_trigger, execution_mode, interval_seconds, schedule,
			trigger_count, success_count, error_count, success_rate,
			last_executed_at, created_at
		FROM automation_rules WHERE id = $1`

	var row ruleRow
	err := s.client.Pool().QueryRow(ctx, query, ruleID).Scan(
		&row.ID, &row.Name, &row.UserID, &row.Priority, &row.Assignments,
		&row.ConditionGroups, &row.Actions, &row.NotifyOnTrigger,
		&row.ExecutionMode, &row.IntervalSeconds, &row.Schedule,
		&row.TriggerCount, &row.SuccessCount, &row.ErrorCount,
		&row.SuccessRate, &row.LastExecutedAt, &row.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrRuleNotFound
		}
		return nil, err
	}

	return row.toModel()
}

// UpdateStatistics applies the once-per-cycle statistics update: bump the
// trigger counter, the success or error counter, recompute the success
// rate, and advance last_executed_at. last_executed_at only moves forward.
func (s *RuleStore) UpdateStatistics(ctx context.Context, ruleID string, success bool) error {
	query := `
		UPDATE automation_rules
		SET trigger_count = trigger_count + 1,
			success_count = success_count + CASE WHEN $2 THEN 1 ELSE 0 END,
			error_count = error_count + CASE WHEN $2 THEN 0 ELSE 1 END,
			success_rate = ROUND(
				(success_count + CASE WHEN $2 THEN 1 ELSE 0 END)::numeric * 100
				/ (trigger_count + 1), 2),
			last_executed_at = GREATEST(COALESCE(last_executed_at, 'epoch'::timestamptz), NOW()),
			updated_at = NOW()
		WHERE id = $1`

	tag, err := s.client.Pool().Exec(ctx, query, ruleID, success)
	if err != nil {
		return fmt.Errorf("failed to update rule statistics: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrRuleNotFound
	}
	return nil
}

func (r *ruleRow) toModel() (*models.Rule, error) {
	rule := &models.Rule{
		ID:              r.ID,
		Name:            r.Name,
		UserID:          r.UserID,
		Priority:        r.Priority,
		NotifyOnTrigger: r.NotifyOnTrigger,
		ExecutionMode:   models.ExecutionMode(r.ExecutionMode),
		TriggerCount:    r.TriggerCount,
		SuccessCount:    r.SuccessCount,
		ErrorCount:      r.ErrorCount,
		SuccessRate:     r.SuccessRate,
		LastExecutedAt:  r.LastExecutedAt,
		CreatedAt:       r.CreatedAt,
	}
	if r.IntervalSeconds != nil {
		rule.IntervalSeconds = *r.IntervalSeconds
	}

	if len(r.Assignments) > 0 {
		if err := json.Unmarshal(r.Assignments, &rule.CampaignAssignments); err != nil {
			return nil, fmt.Errorf("campaign_assignments: %w", err)
		}
	}
	if len(r.ConditionGroups) > 0 {
		if err := json.Unmarshal(r.ConditionGroups, &rule.ConditionGroups); err != nil {
			return nil, fmt.Errorf("condition_groups: %w", err)
		}
	}
	if len(r.Actions) > 0 {
		if err := json.Unmarshal(r.Actions, &rule.Actions); err != nil {
			return nil, fmt.Errorf("actions: %w", err)
		}
	}
	if len(r.Schedule) > 0 {
		var sched scheduleDoc
		if err := json.Unmarshal(r.Schedule, &sched); err != nil {
			return nil, fmt.Errorf("schedule: %w", err)
		}
		rule.SelectedTimes = sched.SelectedTimes
		rule.SelectedDays = sched.SelectedDays
		rule.SelectedDates = sched.SelectedDates
		rule.DateTimeOverrides = sched.DateTimeOverrides
	}

	rule.Normalize()
	return rule, nil
}
