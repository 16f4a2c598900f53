// Package evaluate turns a rule's condition groups and one campaign's
// metric snapshot into a boolean decision. Pure with respect to its
// inputs; no I/O.
package evaluate

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/campaign-autopilot/cap/internal/models"
)

// equalityTolerance absorbs floating noise in == and != comparisons.
const equalityTolerance = 0.01

// Evaluator evaluates condition groups against metric snapshots
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates a new condition evaluator
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

// Evaluate reports whether the snapshot satisfies all condition groups.
// Groups combine with AND at the rule level regardless of each group's own
// operator. An empty group list never fires: a rule without conditions
// must not trigger automatically.
func (e *Evaluator) Evaluate(groups []models.ConditionGroup, snap models.Snapshot) bool {
	if len(groups) == 0 {
		return false
	}
	for _, group := range groups {
		if !e.evaluateGroup(group, snap) {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateGroup(group models.ConditionGroup, snap models.Snapshot) bool {
	if len(group.Conditions) == 0 {
		return false
	}
	if group.LogicalOperator == models.LogicOr {
		for _, cond := range group.Conditions {
			if e.evaluateCondition(cond, snap) {
				return true
			}
		}
		return false
	}
	for _, cond := range group.Conditions {
		if !e.evaluateCondition(cond, snap) {
			return false
		}
	}
	return true
}

// evaluateCondition fails closed: an unknown metric, an unparsable
// threshold, or a metric missing from the snapshot all evaluate to false
// with a diagnostic, never an error.
func (e *Evaluator) evaluateCondition(cond models.Condition, snap models.Snapshot) bool {
	metric, ok := models.ParseMetric(cond.Metric)
	if !ok {
		e.logger.Warn("condition references unknown metric", "metric", cond.Metric)
		return false
	}

	op, ok := models.ParseOperator(cond.Operator)
	if !ok {
		e.logger.Warn("condition has unknown operator", "operator", cond.Operator)
		return false
	}

	threshold, err := strconv.ParseFloat(strings.TrimSpace(cond.Threshold), 64)
	if err != nil {
		e.logger.Warn("condition has unparsable threshold",
			"metric", cond.Metric,
			"threshold", cond.Threshold,
		)
		return false
	}

	value, ok := snap.Value(metric)
	if !ok {
		e.logger.Warn("metric missing from snapshot", "metric", metric)
		return false
	}

	return compare(value, op, threshold)
}

func compare(value float64, op models.Operator, threshold float64) bool {
	switch op {
	case models.OpGreater:
		return value > threshold
	case models.OpLess:
		return value < threshold
	case models.OpGreaterEqual:
		return value >= threshold
	case models.OpLessEqual:
		return value <= threshold
	case models.OpEqual:
		return math.Abs(value-threshold) < equalityTolerance
	case models.OpNotEqual:
		return math.Abs(value-threshold) >= equalityTolerance
	default:
		return false
	}
}

// Describe renders the condition groups as a short human-readable summary
// for notifications and logs.
func Describe(groups []models.ConditionGroup) []string {
	out := make([]string, 0, len(groups))
	for _, group := range groups {
		parts := make([]string, 0, len(group.Conditions))
		for _, c := range group.Conditions {
			parts = append(parts, fmt.Sprintf("%s %s %s", c.Metric, c.Operator, c.Threshold))
		}
		joiner := " AND "
		if group.LogicalOperator == models.LogicOr {
			joiner = " OR "
		}
		out = append(out, strings.Join(parts, joiner))
	}
	return out
}
