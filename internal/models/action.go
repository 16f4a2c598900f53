package models

import "strings"

// ActionType is the canonical action tag. Stored rules carry several
// historical spellings; NormalizeActionType folds them into this closed set.
type ActionType string

const (
	ActionAddBudget     ActionType = "add_budget"
	ActionReduceBudget  ActionType = "reduce_budget"
	ActionSetBudget     ActionType = "set_budget"
	ActionStartCampaign ActionType = "start_campaign"
	ActionPauseCampaign ActionType = "pause_campaign"
	ActionNotify        ActionType = "notify"
	ActionUnknown       ActionType = ""
)

// NormalizeActionType maps a stored action type string, aliases included,
// to its canonical tag.
func NormalizeActionType(s string) ActionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add_budget", "increase_budget":
		return ActionAddBudget
	case "reduce_budget", "decrease_budget":
		return ActionReduceBudget
	case "set_budget":
		return ActionSetBudget
	case "start_campaign", "start", "resume":
		return ActionStartCampaign
	case "pause_campaign", "pause":
		return ActionPauseCampaign
	case "notify", "telegram_notification":
		return ActionNotify
	default:
		return ActionUnknown
	}
}

// Action is a single mutation or notification request applied to a
// qualifying campaign. Amount semantics depend on the type; it is kept as
// text and parsed at execution time.
type Action struct {
	Type    string `json:"type" yaml:"type"`
	Amount  string `json:"amount,omitempty" yaml:"amount,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
}

// DisplayLabel returns the label for notifications, falling back to the
// canonical type when no label was set.
func (a Action) DisplayLabel() string {
	if a.Label != "" {
		return a.Label
	}
	return string(NormalizeActionType(a.Type))
}
