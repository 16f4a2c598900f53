package orchestrate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaign-autopilot/cap/internal/evaluate"
	"github.com/campaign-autopilot/cap/internal/execute"
	"github.com/campaign-autopilot/cap/internal/models"
)

type fakeMetrics struct {
	snapshots map[string]map[string]models.Snapshot // storeID -> campaignID -> snapshot
	err       error
	calls     int
}

func (f *fakeMetrics) FetchAll(ctx context.Context, storeID string, creds models.Credentials) (map[string]models.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshots[storeID], nil
}

type fakeCreds struct {
	missing map[string]bool
}

func (f *fakeCreds) Resolve(ctx context.Context, storeID string) (models.Credentials, error) {
	if f.missing[storeID] {
		return models.Credentials{}, models.ErrCredentialsNotFound
	}
	return models.Credentials{StoreID: storeID, AccessToken: "token"}, nil
}

type fakeLog struct {
	entries []models.ExecutionLogEntry
	err     error
}

func (f *fakeLog) Append(ctx context.Context, entry models.ExecutionLogEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLog) byStatus(status models.ExecutionStatus) []models.ExecutionLogEntry {
	var out []models.ExecutionLogEntry
	for _, e := range f.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

type fakeStats struct {
	updates []bool
	err     error
}

func (f *fakeStats) UpdateStatistics(ctx context.Context, ruleID string, success bool) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, success)
	return nil
}

type fakeNotifier struct {
	sent []models.TriggerNotification
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, recipient string, n models.TriggerNotification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

type fakeControl struct {
	budgets map[string]int64
	fail    bool
}

func (f *fakeControl) EditBudget(ctx context.Context, campaignID, storeID string, budget int64) error {
	if f.fail {
		return fmt.Errorf("gateway unavailable")
	}
	if f.budgets == nil {
		f.budgets = make(map[string]int64)
	}
	f.budgets[campaignID] = budget
	return nil
}

func (f *fakeControl) Pause(ctx context.Context, campaignID, storeID string) error {
	if f.fail {
		return fmt.Errorf("gateway unavailable")
	}
	return nil
}

func (f *fakeControl) Resume(ctx context.Context, campaignID, storeID string) error {
	if f.fail {
		return fmt.Errorf("gateway unavailable")
	}
	return nil
}

type fixture struct {
	metrics  *fakeMetrics
	creds    *fakeCreds
	log      *fakeLog
	stats    *fakeStats
	notifier *fakeNotifier
	control  *fakeControl
	orch     *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		metrics:  &fakeMetrics{snapshots: make(map[string]map[string]models.Snapshot)},
		creds:    &fakeCreds{missing: make(map[string]bool)},
		log:      &fakeLog{},
		stats:    &fakeStats{},
		notifier: &fakeNotifier{},
		control:  &fakeControl{},
	}
	executor := execute.NewExecutor(f.control, execute.Config{
		MaxRetries:  1,
		BaseDelay:   time.Millisecond,
		CallTimeout: time.Second,
	}, nil)
	f.orch = NewOrchestrator(
		f.metrics, f.creds, evaluate.NewEvaluator(nil), executor,
		f.log, f.stats, f.notifier, nil, nil,
	)
	return f
}

func lowROIRule() *models.Rule {
	r := &models.Rule{
		ID:       "rule-1",
		Name:     "pause low ROI",
		UserID:   "user-1",
		Priority: 5,
		CampaignAssignments: []models.StoreAssignment{
			{StoreID: "store-1", CampaignIDs: []string{"c1", "c2"}},
		},
		ConditionGroups: []models.ConditionGroup{{
			LogicalOperator: models.LogicAnd,
			Conditions:      []models.Condition{{Metric: "roi", Operator: "<", Threshold: "1.5"}},
		}},
		Actions:         []models.Action{{Type: "pause_campaign", Label: "Pause"}},
		NotifyOnTrigger: true,
		ExecutionMode:   models.ModeContinuous,
	}
	return r
}

func TestRunRuleHappyPath(t *testing.T) {
	f := newFixture()
	f.metrics.snapshots["store-1"] = map[string]models.Snapshot{
		"c1": {models.MetricROI: 1.0, models.MetricDailyBudget: 2_000_000},
		"c2": {models.MetricROI: 3.0, models.MetricDailyBudget: 2_000_000},
	}

	result := f.orch.RunRule(context.Background(), lowROIRule(), time.Now())

	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.Skipped)

	// One batched metrics call for the store
	assert.Equal(t, 1, f.metrics.calls)

	successes := f.log.byStatus(models.StatusSuccess)
	require.Len(t, successes, 1)
	assert.Equal(t, "c1", successes[0].CampaignID)
	assert.Equal(t, "pause_campaign", successes[0].ActionType)

	skips := f.log.byStatus(models.StatusSkipped)
	require.Len(t, skips, 1)
	assert.Equal(t, "c2", skips[0].CampaignID)
	assert.Equal(t, "conditions not met", skips[0].Error)

	// Statistics updated exactly once, as a success
	require.Len(t, f.stats.updates, 1)
	assert.True(t, f.stats.updates[0])

	// Exactly one notification for the cycle
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "pause low ROI", f.notifier.sent[0].RuleName)
	assert.Equal(t, []string{"Pause"}, f.notifier.sent[0].ActionLabels)
}

func TestCredentialFailureScopedToStore(t *testing.T) {
	f := newFixture()
	f.creds.missing["store-1"] = true
	f.metrics.snapshots["store-2"] = map[string]models.Snapshot{
		"c3": {models.MetricROI: 1.0, models.MetricDailyBudget: 1_000_000},
	}

	rule := lowROIRule()
	rule.CampaignAssignments = []models.StoreAssignment{
		{StoreID: "store-1", CampaignIDs: []string{"c1", "c2"}},
		{StoreID: "store-2", CampaignIDs: []string{"c3"}},
	}

	result := f.orch.RunRule(context.Background(), rule, time.Now())

	// store-1's campaigns fail, store-2 still executes
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 1, result.Succeeded)

	failures := f.log.byStatus(models.StatusFailed)
	require.Len(t, failures, 2)
	for _, entry := range failures {
		assert.Equal(t, "store-1", entry.StoreID)
		assert.Contains(t, entry.Error, "credentials unavailable")
	}
}

func TestMissingCampaignIsFailure(t *testing.T) {
	f := newFixture()
	f.metrics.snapshots["store-1"] = map[string]models.Snapshot{
		"c1": {models.MetricROI: 1.0, models.MetricDailyBudget: 1_000_000},
		// c2 absent from the platform response
	}

	result := f.orch.RunRule(context.Background(), lowROIRule(), time.Now())

	assert.Equal(t, 1, result.Failed)
	failures := f.log.byStatus(models.StatusFailed)
	require.Len(t, failures, 1)
	assert.Equal(t, "c2", failures[0].CampaignID)
	assert.Contains(t, failures[0].Error, "missing from metrics response")
}

func TestEmptyAssignmentSkipped(t *testing.T) {
	f := newFixture()
	rule := lowROIRule()
	rule.CampaignAssignments = []models.StoreAssignment{
		{StoreID: "store-1", CampaignIDs: nil},
	}

	result := f.orch.RunRule(context.Background(), rule, time.Now())

	assert.Zero(t, result.Matched+result.Succeeded+result.Failed+result.Skipped)
	assert.Zero(t, f.metrics.calls)
	// Statistics still update once per cycle
	require.Len(t, f.stats.updates, 1)
	assert.False(t, f.stats.updates[0])
}

func TestNotifyOnlyRuleCountsMatchesAsSuccess(t *testing.T) {
	f := newFixture()
	f.metrics.snapshots["store-1"] = map[string]models.Snapshot{
		"c1": {models.MetricROI: 1.0},
		"c2": {models.MetricROI: 1.2},
	}

	rule := lowROIRule()
	rule.Actions = []models.Action{{Type: "notify", Message: "low ROI detected", Label: "Alert"}}

	result := f.orch.RunRule(context.Background(), rule, time.Now())

	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 2, result.Succeeded)
	assert.Len(t, f.log.byStatus(models.StatusSuccess), 2)

	// Exactly one notification for the whole cycle, not per campaign
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "low ROI detected", f.notifier.sent[0].CustomMessage)
	assert.Equal(t, 2, f.notifier.sent[0].CampaignCount)
}

func TestActionFailureMarksCampaignFailed(t *testing.T) {
	f := newFixture()
	f.control.fail = true
	f.metrics.snapshots["store-1"] = map[string]models.Snapshot{
		"c1": {models.MetricROI: 1.0, models.MetricDailyBudget: 1_000_000},
	}

	result := f.orch.RunRule(context.Background(), lowROIRule(), time.Now())

	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Succeeded)

	failures := f.log.byStatus(models.StatusFailed)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Error, "gateway unavailable")

	// Aggregate outcome: no success anywhere, so the cycle records an error
	require.Len(t, f.stats.updates, 1)
	assert.False(t, f.stats.updates[0])
}

func TestLogFailureDoesNotAbortCycle(t *testing.T) {
	f := newFixture()
	f.log.err = fmt.Errorf("log store down")
	f.metrics.snapshots["store-1"] = map[string]models.Snapshot{
		"c1": {models.MetricROI: 1.0, models.MetricDailyBudget: 1_000_000},
	}

	result := f.orch.RunRule(context.Background(), lowROIRule(), time.Now())

	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, f.stats.updates, 1)
	assert.True(t, f.stats.updates[0])
}

func TestNoNotificationWhenNothingMatched(t *testing.T) {
	f := newFixture()
	f.metrics.snapshots["store-1"] = map[string]models.Snapshot{
		"c1": {models.MetricROI: 9.0},
		"c2": {models.MetricROI: 9.0},
	}

	result := f.orch.RunRule(context.Background(), lowROIRule(), time.Now())

	assert.Zero(t, result.Matched)
	assert.Empty(t, f.notifier.sent)
}

func TestLastExecutedAtAdvances(t *testing.T) {
	f := newFixture()
	rule := lowROIRule()
	now := time.Now()

	f.orch.RunRule(context.Background(), rule, now)

	require.NotNil(t, rule.LastExecutedAt)
	assert.Equal(t, now, *rule.LastExecutedAt)
}
