// Package worker drives the automation engine: a single-flight polling
// loop that asks the scheduler which rules are due each tick and runs the
// orchestrator for each, sequentially, in priority order.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/campaign-autopilot/cap/internal/models"
	"github.com/campaign-autopilot/cap/internal/observability"
	"github.com/campaign-autopilot/cap/internal/orchestrate"
	"github.com/campaign-autopilot/cap/internal/schedule"
)

// RuleSource lists the rules eligible for scheduling this tick
type RuleSource interface {
	ListDueCandidates(ctx context.Context) ([]*models.Rule, error)
}

// Orchestrator runs one due rule's cycle
type Orchestrator interface {
	RunRule(ctx context.Context, rule *models.Rule, now time.Time) orchestrate.CycleResult
}

// Worker owns the tick loop and the is-running flag. No other component
// touches either.
type Worker struct {
	rules    RuleSource
	sched    *schedule.Scheduler
	orch     Orchestrator
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	running  bool
	started  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWorker creates a worker polling at the given interval
func NewWorker(rules RuleSource, sched *schedule.Scheduler, orch Orchestrator, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		rules:    rules,
		sched:    sched,
		orch:     orch,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start runs one cycle immediately, then ticks on the fixed interval
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)
	w.logger.Info("worker started", "interval", w.interval)
}

// Stop stops the ticker. An in-flight cycle runs its remaining steps to
// completion; Stop returns once it has.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	w.Tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one cycle unless a previous one is still running, in which
// case the tick is dropped entirely: no queuing, no overlap.
func (w *Worker) Tick(ctx context.Context) {
	if !w.beginCycle() {
		observability.TicksSkipped.Inc()
		w.logger.Warn("previous cycle still running, skipping tick")
		return
	}
	defer w.endCycle()

	start := time.Now()
	now := time.Now()

	rules, err := w.rules.ListDueCandidates(ctx)
	if err != nil {
		w.logger.Error("failed to list candidate rules", "error", err)
		return
	}

	due := w.sched.Due(rules, now)
	if len(due) == 0 {
		return
	}

	w.logger.Info("processing due rules", "due", len(due), "candidates", len(rules))

	// Sequential by design: the control service is rate limited and the
	// per-cycle ordering must be reproducible for the execution log.
	var total orchestrate.CycleResult
	for _, rule := range due {
		r := w.orch.RunRule(ctx, rule, now)
		total.Matched += r.Matched
		total.Succeeded += r.Succeeded
		total.Failed += r.Failed
		total.Skipped += r.Skipped
	}

	observability.CyclesTotal.Inc()
	observability.CycleDuration.Observe(time.Since(start).Seconds())
	w.logger.Info("cycle complete",
		"rules", len(due),
		"matched", total.Matched,
		"succeeded", total.Succeeded,
		"failed", total.Failed,
		"skipped", total.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (w *Worker) beginCycle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return false
	}
	w.running = true
	return true
}

func (w *Worker) endCycle() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}
