package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/campaign-autopilot/cap/internal/models"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestIntervalModeNeverRunIsDue(t *testing.T) {
	s := NewScheduler(0, nil)
	rule := &models.Rule{
		ID:              "r1",
		ExecutionMode:   models.ModeInterval,
		IntervalSeconds: 600,
	}

	assert.True(t, s.IsDue(rule, time.Now()))
}

func TestIntervalMode(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		intervalSeconds int
		lastExecutedAt  *time.Time
		want            bool
	}{
		{
			name:            "interval elapsed exactly",
			intervalSeconds: 600,
			lastExecutedAt:  timePtr(now.Add(-10 * time.Minute)),
			want:            true,
		},
		{
			name:            "interval not elapsed",
			intervalSeconds: 600,
			lastExecutedAt:  timePtr(now.Add(-9 * time.Minute)),
			want:            false,
		},
		{
			name:            "interval well past",
			intervalSeconds: 600,
			lastExecutedAt:  timePtr(now.Add(-time.Hour)),
			want:            true,
		},
		{
			name:            "no interval configured",
			intervalSeconds: 0,
			lastExecutedAt:  timePtr(now.Add(-time.Second)),
			want:            true,
		},
	}

	s := NewScheduler(0, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &models.Rule{
				ID:              "r1",
				ExecutionMode:   models.ModeInterval,
				IntervalSeconds: tt.intervalSeconds,
				LastExecutedAt:  tt.lastExecutedAt,
			}
			assert.Equal(t, tt.want, s.IsDue(rule, now))
		})
	}
}

func TestSpecificMode(t *testing.T) {
	// 2025-06-10 is a Tuesday
	now := time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		rule models.Rule
		want bool
	}{
		{
			name: "time and day match, never run",
			rule: models.Rule{
				ExecutionMode: models.ModeSpecific,
				SelectedTimes: []string{"14:30"},
				SelectedDays:  []string{"tuesday"},
			},
			want: true,
		},
		{
			name: "time matches but day does not",
			rule: models.Rule{
				ExecutionMode: models.ModeSpecific,
				SelectedTimes: []string{"14:30"},
				SelectedDays:  []string{"monday"},
			},
			want: false,
		},
		{
			name: "no day restriction matches any day",
			rule: models.Rule{
				ExecutionMode: models.ModeSpecific,
				SelectedTimes: []string{"14:30"},
			},
			want: true,
		},
		{
			name: "slot already served",
			rule: models.Rule{
				ExecutionMode:  models.ModeSpecific,
				SelectedTimes:  []string{"14:30"},
				LastExecutedAt: timePtr(time.Date(2025, 6, 10, 14, 30, 10, 0, time.UTC)),
			},
			want: false,
		},
		{
			name: "missed slot inside tolerance",
			rule: models.Rule{
				ExecutionMode:  models.ModeSpecific,
				SelectedTimes:  []string{"14:27"},
				LastExecutedAt: timePtr(time.Date(2025, 6, 10, 13, 0, 0, 0, time.UTC)),
			},
			want: true,
		},
		{
			name: "missed slot outside tolerance",
			rule: models.Rule{
				ExecutionMode:  models.ModeSpecific,
				SelectedTimes:  []string{"14:20"},
				LastExecutedAt: timePtr(time.Date(2025, 6, 10, 13, 0, 0, 0, time.UTC)),
			},
			want: false,
		},
		{
			name: "date override matches even on wrong weekday",
			rule: models.Rule{
				ExecutionMode: models.ModeSpecific,
				SelectedTimes: []string{"09:00"},
				SelectedDays:  []string{"monday"},
				DateTimeOverrides: map[string][]string{
					"2025-06-10": {"14:30"},
				},
			},
			want: true,
		},
		{
			name: "date override present but no time matches suppresses recurring config",
			rule: models.Rule{
				ExecutionMode: models.ModeSpecific,
				SelectedTimes: []string{"14:30"},
				SelectedDays:  []string{"tuesday"},
				DateTimeOverrides: map[string][]string{
					"2025-06-10": {"09:00"},
				},
			},
			want: false,
		},
	}

	s := NewScheduler(0, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.rule.ID = "r1"
			assert.Equal(t, tt.want, s.IsDue(&tt.rule, now))
		})
	}
}

func TestMissedScheduleBoundaryIsInclusive(t *testing.T) {
	// Slot at 14:25, tolerance 5m, now exactly 14:30: still due.
	now := time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC)
	rule := &models.Rule{
		ID:             "r1",
		ExecutionMode:  models.ModeSpecific,
		SelectedTimes:  []string{"14:25"},
		LastExecutedAt: timePtr(now.Add(-2 * time.Hour)),
	}

	s := NewScheduler(5*time.Minute, nil)
	assert.True(t, s.IsDue(rule, now))

	// One second past the window: no longer due.
	assert.False(t, s.IsDue(rule, now.Add(time.Second)))
}

func TestAutoModeRequiresIntervalAndTimeMatch(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC)

	rule := &models.Rule{
		ID:              "r1",
		ExecutionMode:   models.ModeAuto,
		SelectedTimes:   []string{"14:30"},
		SelectedDays:    []string{"tuesday"},
		IntervalSeconds: 3600,
		LastExecutedAt:  timePtr(now.Add(-30 * time.Minute)),
	}

	s := NewScheduler(0, nil)
	// The current slot matches but the hourly interval has not elapsed,
	// and a current slot is not a missed one, so the interval gate blocks.
	assert.False(t, s.IsDue(rule, now))

	rule.LastExecutedAt = timePtr(now.Add(-2 * time.Hour))
	assert.True(t, s.IsDue(rule, now))

	// A missed slot bypasses the interval gate.
	missedNow := now.Add(2 * time.Minute)
	rule.LastExecutedAt = timePtr(now.Add(-30 * time.Minute))
	assert.True(t, s.IsDue(rule, missedNow))
}

func TestUnknownModeNeverDue(t *testing.T) {
	s := NewScheduler(0, nil)
	rule := &models.Rule{ID: "r1", ExecutionMode: "hourly"}
	assert.False(t, s.IsDue(rule, time.Now()))
}

func TestDueOrdersByPriorityThenCreation(t *testing.T) {
	now := time.Now()
	older := now.Add(-time.Hour)

	rules := []*models.Rule{
		{ID: "low", Priority: 1, ExecutionMode: models.ModeContinuous, CreatedAt: older},
		{ID: "high", Priority: 10, ExecutionMode: models.ModeContinuous, CreatedAt: now},
		{ID: "mid-new", Priority: 5, ExecutionMode: models.ModeContinuous, CreatedAt: now},
		{ID: "mid-old", Priority: 5, ExecutionMode: models.ModeContinuous, CreatedAt: older},
		{ID: "not-due", Priority: 99, ExecutionMode: models.ModeInterval, IntervalSeconds: 600, LastExecutedAt: timePtr(now)},
	}

	s := NewScheduler(0, nil)
	due := s.Due(rules, now)

	ids := make([]string, 0, len(due))
	for _, r := range due {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"high", "mid-old", "mid-new", "low"}, ids)
}
