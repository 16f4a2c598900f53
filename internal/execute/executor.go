// Package execute applies a rule's actions to one campaign through the
// campaign control service, with per-action retry. Actions run in order
// and one action's failure never blocks the next.
package execute

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/campaign-autopilot/cap/internal/models"
)

const (
	// budgetUnit converts a rule's coarse currency amount into the
	// platform's budget unit.
	budgetUnit = 100_000
	// budgetStep is the platform's budget granularity; every budget sent
	// to the control service is rounded to the nearest multiple.
	budgetStep = 500_000
)

// ControlService is the campaign control boundary the executor mutates
// campaigns through.
type ControlService interface {
	EditBudget(ctx context.Context, campaignID, storeID string, budget int64) error
	Pause(ctx context.Context, campaignID, storeID string) error
	Resume(ctx context.Context, campaignID, storeID string) error
}

// Config holds executor retry and timeout settings
type Config struct {
	MaxRetries  int
	BaseDelay   time.Duration
	CallTimeout time.Duration
}

// DefaultConfig returns the production retry policy: three attempts with a
// linearly increasing delay, each call bounded by 30 seconds.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		BaseDelay:   time.Second,
		CallTimeout: 30 * time.Second,
	}
}

// Executor applies actions to campaigns
type Executor struct {
	control ControlService
	config  Config
	logger  *slog.Logger
}

// NewExecutor creates a new action executor
func NewExecutor(control ControlService, config Config, logger *slog.Logger) *Executor {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultConfig().BaseDelay
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultConfig().CallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{control: control, config: config, logger: logger}
}

// ActionResult reports one action's outcome
type ActionResult struct {
	Action  models.Action
	Success bool
	Error   string
}

// Apply executes the actions in order against one campaign. currentBudget
// must come from the same snapshot used for condition evaluation; nil
// falls back to zero through resolveBudget's loudly-logged path.
func (x *Executor) Apply(ctx context.Context, actions []models.Action, campaignID, storeID string, currentBudget *float64) []ActionResult {
	results := make([]ActionResult, 0, len(actions))
	for _, action := range actions {
		result := x.applyOne(ctx, action, campaignID, storeID, currentBudget)
		if !result.Success {
			x.logger.Error("action failed",
				"campaign_id", campaignID,
				"store_id", storeID,
				"action_type", action.Type,
				"error", result.Error,
			)
		}
		results = append(results, result)
	}
	return results
}

func (x *Executor) applyOne(ctx context.Context, action models.Action, campaignID, storeID string, currentBudget *float64) ActionResult {
	result := ActionResult{Action: action}

	switch models.NormalizeActionType(action.Type) {
	case models.ActionAddBudget:
		amount, err := parseAmount(action.Amount)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		budget := roundBudget(x.resolveBudget(campaignID, currentBudget) + amount*budgetUnit)
		result = x.callControl(ctx, result, func(cctx context.Context) error {
			return x.control.EditBudget(cctx, campaignID, storeID, budget)
		})

	case models.ActionReduceBudget:
		amount, err := parseAmount(action.Amount)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		budget := roundBudget(math.Max(0, x.resolveBudget(campaignID, currentBudget)-amount*budgetUnit))
		result = x.callControl(ctx, result, func(cctx context.Context) error {
			return x.control.EditBudget(cctx, campaignID, storeID, budget)
		})

	case models.ActionSetBudget:
		amount, err := parseAmount(action.Amount)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		budget := roundBudget(amount * budgetUnit)
		result = x.callControl(ctx, result, func(cctx context.Context) error {
			return x.control.EditBudget(cctx, campaignID, storeID, budget)
		})

	case models.ActionStartCampaign:
		result = x.callControl(ctx, result, func(cctx context.Context) error {
			return x.control.Resume(cctx, campaignID, storeID)
		})

	case models.ActionPauseCampaign:
		result = x.callControl(ctx, result, func(cctx context.Context) error {
			return x.control.Pause(cctx, campaignID, storeID)
		})

	case models.ActionNotify:
		// Dispatch happens once per rule cycle in the orchestrator, not
		// per campaign; here it only marks success.
		result.Success = true

	default:
		result.Error = "unknown action type: " + action.Type
	}

	return result
}

// callControl wraps a control-service call in the retry policy: up to
// MaxRetries attempts, delay attempt*BaseDelay, each attempt bounded by
// CallTimeout. A timeout is just another retryable failure. The final
// error text is preserved for logging.
func (x *Executor) callControl(ctx context.Context, result ActionResult, call func(context.Context) error) ActionResult {
	err := retry.Do(
		func() error {
			cctx, cancel := context.WithTimeout(ctx, x.config.CallTimeout)
			defer cancel()
			return call(cctx)
		},
		retry.Attempts(uint(x.config.MaxRetries)),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			return time.Duration(n+1) * x.config.BaseDelay
		}),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			x.logger.Warn("control service call failed, retrying",
				"attempt", n+1,
				"max_retries", x.config.MaxRetries,
				"error", err,
			)
		}),
	)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	return result
}

// resolveBudget returns the campaign's current budget, falling back to
// zero when the snapshot carried none. The fallback is a known risk for
// budget math and is logged loudly on purpose, never guessed silently.
func (x *Executor) resolveBudget(campaignID string, currentBudget *float64) float64 {
	if currentBudget == nil {
		x.logger.Warn("current budget missing from snapshot, falling back to 0",
			"campaign_id", campaignID,
		)
		return 0
	}
	return *currentBudget
}

// roundBudget snaps a budget to the platform's granularity. Idempotent.
func roundBudget(v float64) int64 {
	return int64(math.Round(v/budgetStep)) * budgetStep
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, models.NewValidationError("amount", "unparsable action amount: "+s)
	}
	return v, nil
}
