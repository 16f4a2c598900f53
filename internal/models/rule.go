package models

import (
	"strings"
	"time"
)

// ExecutionMode controls how a rule's schedule is interpreted
type ExecutionMode string

const (
	ModeContinuous ExecutionMode = "continuous"
	ModeInterval   ExecutionMode = "interval"
	ModeSpecific   ExecutionMode = "specific"
	// ModeAuto predates the mode split and combines time matching with the
	// interval check. Deprecated; kept for rules created before the split.
	ModeAuto    ExecutionMode = "auto"
	ModeUnknown ExecutionMode = ""
)

// ParseExecutionMode normalizes the stored mode string, including the
// historical spellings, to one canonical mode.
func ParseExecutionMode(s string) ExecutionMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "continuous":
		return ModeContinuous
	case "interval":
		return ModeInterval
	case "specific", "specific_times":
		return ModeSpecific
	case "auto", "legacy", "legacy_auto":
		return ModeAuto
	default:
		return ModeUnknown
	}
}

// Operator is a condition comparison operator
type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
)

// ParseOperator maps a stored operator string to the closed operator set.
func ParseOperator(s string) (Operator, bool) {
	switch strings.TrimSpace(s) {
	case ">", "gt":
		return OpGreater, true
	case "<", "lt":
		return OpLess, true
	case ">=", "gte":
		return OpGreaterEqual, true
	case "<=", "lte":
		return OpLessEqual, true
	case "==", "=", "eq":
		return OpEqual, true
	case "!=", "neq":
		return OpNotEqual, true
	default:
		return "", false
	}
}

// LogicalOperator combines conditions inside one group
type LogicalOperator string

const (
	LogicAnd LogicalOperator = "AND"
	LogicOr  LogicalOperator = "OR"
)

// Condition compares one campaign metric against a threshold. The
// threshold is stored as text and parsed at evaluation time.
type Condition struct {
	Metric    string `json:"metric" yaml:"metric"`
	Operator  string `json:"operator" yaml:"operator"`
	Threshold string `json:"threshold" yaml:"threshold"`
}

// ConditionGroup applies its logical operator to its own conditions.
// Groups always combine with AND at the rule level.
type ConditionGroup struct {
	LogicalOperator LogicalOperator `json:"logical_operator" yaml:"logical_operator"`
	Conditions      []Condition     `json:"conditions" yaml:"conditions"`
}

// StoreAssignment binds a rule to an ordered set of campaigns under one
// owner-group (store). A slice, not a map: processing order matters and
// must be reproducible.
type StoreAssignment struct {
	StoreID     string   `json:"store_id" yaml:"store_id"`
	CampaignIDs []string `json:"campaign_ids" yaml:"campaign_ids"`
}

// Rule is a persisted automation policy
type Rule struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	UserID   string `json:"user_id" yaml:"user_id"`
	Priority int    `json:"priority" yaml:"priority"`

	CampaignAssignments []StoreAssignment `json:"campaign_assignments" yaml:"campaign_assignments"`
	ConditionGroups     []ConditionGroup  `json:"condition_groups" yaml:"condition_groups"`
	Actions             []Action          `json:"actions" yaml:"actions"`
	NotifyOnTrigger     bool              `json:"notify_on_trigger" yaml:"notify_on_trigger"`

	ExecutionMode     ExecutionMode       `json:"execution_mode" yaml:"execution_mode"`
	IntervalSeconds   int                 `json:"interval_seconds,omitempty" yaml:"interval_seconds,omitempty"`
	SelectedTimes     []string            `json:"selected_times,omitempty" yaml:"selected_times,omitempty"`
	SelectedDays      []string            `json:"selected_days,omitempty" yaml:"selected_days,omitempty"`
	SelectedDates     []string            `json:"selected_dates,omitempty" yaml:"selected_dates,omitempty"`
	DateTimeOverrides map[string][]string `json:"date_time_overrides,omitempty" yaml:"date_time_overrides,omitempty"`

	TriggerCount   int        `json:"trigger_count" yaml:"-"`
	SuccessCount   int        `json:"success_count" yaml:"-"`
	ErrorCount     int        `json:"error_count" yaml:"-"`
	SuccessRate    float64    `json:"success_rate" yaml:"-"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty" yaml:"-"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Normalize canonicalizes the loosely-typed string fields (execution mode
// and action type aliases) once on ingestion, so downstream logic switches
// on one canonical tag.
func (r *Rule) Normalize() {
	r.ExecutionMode = ParseExecutionMode(string(r.ExecutionMode))
	for i := range r.Actions {
		r.Actions[i].Type = string(NormalizeActionType(r.Actions[i].Type))
	}
	for i := range r.ConditionGroups {
		op := strings.ToUpper(strings.TrimSpace(string(r.ConditionGroups[i].LogicalOperator)))
		if op == string(LogicOr) {
			r.ConditionGroups[i].LogicalOperator = LogicOr
		} else {
			r.ConditionGroups[i].LogicalOperator = LogicAnd
		}
	}
}

// Validate checks the rule structure
func (r *Rule) Validate() error {
	if r.ID == "" {
		return NewValidationError("id", "rule ID is required")
	}
	if r.Name == "" {
		return NewValidationError("name", "rule name is required")
	}
	if ParseExecutionMode(string(r.ExecutionMode)) == ModeUnknown {
		return NewValidationError("execution_mode", "unknown execution mode: "+string(r.ExecutionMode))
	}
	for _, g := range r.ConditionGroups {
		for _, c := range g.Conditions {
			if _, ok := ParseOperator(c.Operator); !ok {
				return NewValidationError("conditions.operator", "unknown operator: "+c.Operator)
			}
			if _, ok := ParseMetric(c.Metric); !ok {
				return NewValidationError("conditions.metric", "unknown metric: "+c.Metric)
			}
		}
	}
	for _, a := range r.Actions {
		if NormalizeActionType(a.Type) == ActionUnknown {
			return NewValidationError("actions.type", "unknown action type: "+a.Type)
		}
	}
	return nil
}

// NotifyOnly reports whether the action list consists only of notify
// actions. Such rules have nothing to fail at the control service, so a
// matched campaign counts as an executed success.
func (r *Rule) NotifyOnly() bool {
	if len(r.Actions) == 0 {
		return false
	}
	for _, a := range r.Actions {
		if NormalizeActionType(a.Type) != ActionNotify {
			return false
		}
	}
	return true
}
