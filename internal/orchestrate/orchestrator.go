// Package orchestrate runs one due rule end to end: resolve credentials
// per store, fetch metrics in one batched call, evaluate conditions per
// campaign, execute actions for qualifying campaigns, log every outcome,
// update rule statistics once, and notify the owner at most once.
package orchestrate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/campaign-autopilot/cap/internal/evaluate"
	"github.com/campaign-autopilot/cap/internal/execute"
	"github.com/campaign-autopilot/cap/internal/models"
	"github.com/campaign-autopilot/cap/internal/observability"
)

// MetricsService fetches metrics for all campaigns of one store in a
// single batched call. Batching is required to stay inside the external
// platform's rate limits.
type MetricsService interface {
	FetchAll(ctx context.Context, storeID string, creds models.Credentials) (map[string]models.Snapshot, error)
}

// CredentialResolver resolves a store's external access credentials
type CredentialResolver interface {
	Resolve(ctx context.Context, storeID string) (models.Credentials, error)
}

// ExecutionLog is the append-only per-campaign outcome store. Append
// failures are swallowed after logging; a cycle never aborts on them.
type ExecutionLog interface {
	Append(ctx context.Context, entry models.ExecutionLogEntry) error
}

// StatsStore updates a rule's persisted statistics once per cycle
type StatsStore interface {
	UpdateStatistics(ctx context.Context, ruleID string, success bool) error
}

// Notifier dispatches the per-cycle trigger notification to a rule owner
type Notifier interface {
	Notify(ctx context.Context, recipient string, n models.TriggerNotification) error
}

// EventPublisher mirrors execution log entries onto the audit stream.
// Optional and best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, entry models.ExecutionLogEntry) error
}

// Orchestrator ties a rule's cycle together across stores and campaigns
type Orchestrator struct {
	metrics   MetricsService
	creds     CredentialResolver
	evaluator *evaluate.Evaluator
	executor  *execute.Executor
	log       ExecutionLog
	stats     StatsStore
	notifier  Notifier
	events    EventPublisher
	logger    *slog.Logger
}

// NewOrchestrator creates a rule orchestrator. events may be nil.
func NewOrchestrator(
	metrics MetricsService,
	creds CredentialResolver,
	evaluator *evaluate.Evaluator,
	executor *execute.Executor,
	log ExecutionLog,
	stats StatsStore,
	notifier Notifier,
	events EventPublisher,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		metrics:   metrics,
		creds:     creds,
		evaluator: evaluator,
		executor:  executor,
		log:       log,
		stats:     stats,
		notifier:  notifier,
		events:    events,
		logger:    logger,
	}
}

// CycleResult summarizes one rule cycle
type CycleResult struct {
	Matched   int
	Succeeded int
	Failed    int
	Skipped   int
}

// qualified is a campaign whose snapshot satisfied all condition groups
type qualified struct {
	storeID    string
	campaignID string
	snapshot   models.Snapshot
}

// RunRule executes one full cycle for a due rule. Failures are scoped to
// the smallest unit possible: one action, one campaign, or one store
// group. Nothing here aborts sibling units.
func (o *Orchestrator) RunRule(ctx context.Context, rule *models.Rule, now time.Time) CycleResult {
	ctx, span := observability.StartSpan(ctx, "rule.cycle")
	defer span.End()

	start := time.Now()
	var result CycleResult

	for _, assignment := range rule.CampaignAssignments {
		if len(assignment.CampaignIDs) == 0 {
			continue
		}
		o.runStore(ctx, rule, assignment, &result)
	}

	anySuccess := result.Succeeded > 0
	if err := o.stats.UpdateStatistics(ctx, rule.ID, anySuccess); err != nil {
		o.logger.Error("failed to update rule statistics", "rule_id", rule.ID, "error", err)
	}
	rule.LastExecutedAt = &now

	if rule.NotifyOnTrigger && (result.Matched > 0 || result.Succeeded > 0) {
		o.notifyOnce(ctx, rule, now, result)
	}

	observability.RulesExecuted.Inc()
	o.logger.Info("rule cycle complete",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"matched", result.Matched,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result
}

// runStore processes one owner-group: one credential lookup, one batched
// metrics fetch, then per-campaign evaluation and execution in assignment
// order.
func (o *Orchestrator) runStore(ctx context.Context, rule *models.Rule, assignment models.StoreAssignment, result *CycleResult) {
	creds, err := o.creds.Resolve(ctx, assignment.StoreID)
	if err != nil {
		o.logger.Error("credentials unavailable for store",
			"rule_id", rule.ID,
			"store_id", assignment.StoreID,
			"error", err,
		)
		o.failAll(ctx, rule, assignment, "credentials unavailable: "+err.Error(), result)
		return
	}

	snapshots, err := o.metrics.FetchAll(ctx, assignment.StoreID, creds)
	if err != nil {
		o.logger.Error("metrics fetch failed for store",
			"rule_id", rule.ID,
			"store_id", assignment.StoreID,
			"error", err,
		)
		o.failAll(ctx, rule, assignment, "metrics fetch failed: "+err.Error(), result)
		return
	}

	var due []qualified
	for _, campaignID := range assignment.CampaignIDs {
		snap, ok := snapshots[campaignID]
		if !ok {
			// A campaign we were asked to manage but the platform did not
			// report is an error, not a skip.
			o.logger.Warn("campaign missing from metrics response",
				"rule_id", rule.ID,
				"store_id", assignment.StoreID,
				"campaign_id", campaignID,
			)
			o.writeLog(ctx, rule, assignment.StoreID, campaignID, models.StatusFailed,
				"campaign missing from metrics response", nil, nil)
			result.Failed++
			continue
		}

		if !o.evaluator.Evaluate(rule.ConditionGroups, snap) {
			o.writeLog(ctx, rule, assignment.StoreID, campaignID, models.StatusSkipped,
				"conditions not met", snap, nil)
			result.Skipped++
			continue
		}

		due = append(due, qualified{
			storeID:    assignment.StoreID,
			campaignID: campaignID,
			snapshot:   snap,
		})
	}

	result.Matched += len(due)

	// Sequential on purpose: the control service is rate limited and the
	// per-cycle ordering must stay reproducible.
	for _, q := range due {
		o.executeCampaign(ctx, rule, q, result)
	}
}

func (o *Orchestrator) executeCampaign(ctx context.Context, rule *models.Rule, q qualified, result *CycleResult) {
	var currentBudget *float64
	if budget, ok := q.snapshot.DailyBudget(); ok {
		currentBudget = &budget
	}

	actionResults := o.executor.Apply(ctx, rule.Actions, q.campaignID, q.storeID, currentBudget)

	var errs []string
	for _, ar := range actionResults {
		if ar.Success {
			observability.ActionsTotal.WithLabelValues("success").Inc()
		} else {
			observability.ActionsTotal.WithLabelValues("failed").Inc()
			errs = append(errs, ar.Error)
		}
	}

	status := models.StatusSuccess
	errText := ""
	if len(errs) > 0 {
		status = models.StatusFailed
		errText = strings.Join(errs, "; ")
		result.Failed++
	} else {
		result.Succeeded++
	}

	o.writeLog(ctx, rule, q.storeID, q.campaignID, status, errText, q.snapshot, actionResults)
}

// failAll records a failed entry for every campaign in a store group when
// the group-level prerequisites (credentials, metrics) were unavailable.
func (o *Orchestrator) failAll(ctx context.Context, rule *models.Rule, assignment models.StoreAssignment, reason string, result *CycleResult) {
	for _, campaignID := range assignment.CampaignIDs {
		o.writeLog(ctx, rule, assignment.StoreID, campaignID, models.StatusFailed, reason, nil, nil)
		result.Failed++
	}
}

// writeLog appends one execution log entry and mirrors it to the event
// stream. Both are best-effort: failures are logged and swallowed.
func (o *Orchestrator) writeLog(ctx context.Context, rule *models.Rule, storeID, campaignID string, status models.ExecutionStatus, errText string, snap models.Snapshot, actionResults []execute.ActionResult) {
	entry := models.NewExecutionLogEntry(rule.ID, campaignID, storeID, rule.UserID)
	entry.RuleName = rule.Name
	entry.Status = status
	entry.Error = errText
	entry.ActionType = actionSummary(rule.Actions, actionResults)
	if snap != nil {
		entry.Context = make(map[string]float64, len(snap))
		for metric, value := range snap {
			entry.Context[string(metric)] = value
		}
	}

	if err := o.log.Append(ctx, entry); err != nil {
		o.logger.Error("failed to append execution log entry",
			"rule_id", rule.ID,
			"campaign_id", campaignID,
			"error", err,
		)
	}
	if o.events != nil {
		if err := o.events.Publish(ctx, entry); err != nil {
			o.logger.Warn("failed to publish execution event",
				"rule_id", rule.ID,
				"campaign_id", campaignID,
				"error", err,
			)
		}
	}
}

// notifyOnce sends exactly one notification for the whole cycle
func (o *Orchestrator) notifyOnce(ctx context.Context, rule *models.Rule, now time.Time, result CycleResult) {
	n := models.TriggerNotification{
		RuleName:          rule.Name,
		TriggeredAt:       now,
		MatchedConditions: evaluate.Describe(rule.ConditionGroups),
		CampaignCount:     result.Matched,
	}
	for _, a := range rule.Actions {
		n.ActionLabels = append(n.ActionLabels, a.DisplayLabel())
		if models.NormalizeActionType(a.Type) == models.ActionNotify && a.Message != "" && n.CustomMessage == "" {
			n.CustomMessage = a.Message
		}
	}

	if err := o.notifier.Notify(ctx, rule.UserID, n); err != nil {
		o.logger.Error("failed to send trigger notification",
			"rule_id", rule.ID,
			"user_id", rule.UserID,
			"error", err,
		)
		return
	}
	observability.NotificationsTotal.Inc()
}

func actionSummary(actions []models.Action, results []execute.ActionResult) string {
	if len(results) > 0 {
		parts := make([]string, 0, len(results))
		for _, r := range results {
			parts = append(parts, string(models.NormalizeActionType(r.Action.Type)))
		}
		return strings.Join(parts, ",")
	}
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		parts = append(parts, string(models.NormalizeActionType(a.Type)))
	}
	return strings.Join(parts, ",")
}
