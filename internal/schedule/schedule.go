// Package schedule decides when automation rules are due to run. All
// decisions are pure over the rule's schedule config, its last execution
// time, and the supplied clock reading.
package schedule

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/campaign-autopilot/cap/internal/models"
)

// DefaultTolerance is the grace window after a scheduled time during which
// a rule is still considered due if not yet served. It recovers rules from
// a paused or delayed worker without double-firing inside the same slot.
const DefaultTolerance = 5 * time.Minute

// Scheduler answers "is this rule due now?"
type Scheduler struct {
	tolerance time.Duration
	logger    *slog.Logger
}

// NewScheduler creates a scheduler with the given missed-schedule
// tolerance. Zero tolerance means the default.
func NewScheduler(tolerance time.Duration, logger *slog.Logger) *Scheduler {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{tolerance: tolerance, logger: logger}
}

// Due filters the candidate rules down to the ones due at now, ordered by
// priority descending and then by creation time, which fixes the
// processing order for the whole tick.
func (s *Scheduler) Due(rules []*models.Rule, now time.Time) []*models.Rule {
	due := make([]*models.Rule, 0, len(rules))
	for _, r := range rules {
		if s.IsDue(r, now) {
			due = append(due, r)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	return due
}

// IsDue reports whether the rule should run at now. Deterministic with
// respect to rule.LastExecutedAt and now.
func (s *Scheduler) IsDue(rule *models.Rule, now time.Time) bool {
	switch models.ParseExecutionMode(string(rule.ExecutionMode)) {
	case models.ModeContinuous, models.ModeInterval:
		return s.intervalDue(rule, now)
	case models.ModeSpecific:
		return s.specificDue(rule, now)
	case models.ModeAuto:
		return s.autoDue(rule, now)
	default:
		s.logger.Error("rule has unknown execution mode",
			"rule_id", rule.ID,
			"execution_mode", rule.ExecutionMode,
		)
		return false
	}
}

// intervalDue: due when the rule has never run, has no interval configured,
// or the interval has fully elapsed since the last run.
func (s *Scheduler) intervalDue(rule *models.Rule, now time.Time) bool {
	if rule.LastExecutedAt == nil {
		return true
	}
	if rule.IntervalSeconds <= 0 {
		return true
	}
	return now.Sub(*rule.LastExecutedAt) >= time.Duration(rule.IntervalSeconds)*time.Second
}

// specificDue: due when a configured slot for today matches now, or a
// missed slot is still inside the tolerance window and has not been served.
// A date override replaces the recurring weekday/time config for that
// calendar date entirely.
func (s *Scheduler) specificDue(rule *models.Rule, now time.Time) bool {
	if times, ok := rule.DateTimeOverrides[now.Format("2006-01-02")]; ok {
		return s.anySlotDue(times, rule.LastExecutedAt, now)
	}
	if !dayMatches(rule.SelectedDays, now) {
		return false
	}
	return s.anySlotDue(rule.SelectedTimes, rule.LastExecutedAt, now)
}

// autoDue is the legacy combined mode: time and day must match, and then
// either the interval has elapsed or the slot counts as a missed schedule.
func (s *Scheduler) autoDue(rule *models.Rule, now time.Time) bool {
	if !dayMatches(rule.SelectedDays, now) {
		return false
	}
	matched, missed := s.slotStatus(rule.SelectedTimes, rule.LastExecutedAt, now)
	if !matched && !missed {
		return false
	}
	return s.intervalDue(rule, now) || missed
}

// slotStatus reports whether any slot matches now's exact minute, and
// whether any slot was missed: passed, inside tolerance (inclusive), later
// than the last execution. An empty slot list matches unconditionally.
func (s *Scheduler) slotStatus(times []string, last *time.Time, now time.Time) (matched, missed bool) {
	if len(times) == 0 {
		return true, false
	}
	for _, hhmm := range times {
		slot, err := slotAt(hhmm, now)
		if err != nil {
			s.logger.Warn("unparsable scheduled time", "time", hhmm, "error", err)
			continue
		}
		elapsed := now.Sub(slot)
		if elapsed < 0 || elapsed > s.tolerance {
			continue
		}
		if elapsed < time.Minute {
			matched = true
		} else if last == nil || last.Before(slot) {
			missed = true
		}
	}
	return matched, missed
}

// anySlotDue reports whether any of the HH:MM slots is currently due: the
// slot time has arrived, is at most tolerance in the past (boundary
// inclusive), and is later than the last execution. An empty slot list is
// an unrestricted time axis.
func (s *Scheduler) anySlotDue(times []string, last *time.Time, now time.Time) bool {
	if len(times) == 0 {
		return last == nil || last.Before(now)
	}
	for _, hhmm := range times {
		slot, err := slotAt(hhmm, now)
		if err != nil {
			s.logger.Warn("unparsable scheduled time", "time", hhmm, "error", err)
			continue
		}
		elapsed := now.Sub(slot)
		if elapsed < 0 || elapsed > s.tolerance {
			continue
		}
		if last == nil || last.Before(slot) {
			return true
		}
	}
	return false
}

// slotAt resolves an HH:MM string onto now's calendar date.
func slotAt(hhmm string, now time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}

// dayMatches reports whether now's weekday is selected. An empty day list
// is an unrestricted day axis.
func dayMatches(days []string, now time.Time) bool {
	if len(days) == 0 {
		return true
	}
	today := strings.ToLower(now.Weekday().String())
	for _, d := range days {
		if strings.ToLower(strings.TrimSpace(d)) == today {
			return true
		}
	}
	return false
}
