package state

import (
	"strings"
	"time"

	"github.com/mindloom/nudged/internal/settings"
)

const DayLayout = "2006-01-02"

// ActiveTask is the single task the user has declared as current focus.
// At most one exists at a time; setting a new one discards the previous.
type ActiveTask struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Project            string     `json:"project"`
	Area               string     `json:"area"`
	StartedAt          time.Time  `json:"startedAt"`
	LastActivityAt     time.Time  `json:"lastActivityAt"`
	CheckinNextAt      *time.Time `json:"checkinNextAt,omitempty"`
	LastNotificationAt *time.Time `json:"lastNotificationAt,omitempty"`
}

// Valid reports whether the task is fully populated. Partial objects (a
// title without a start time, or vice versa) are treated as absent.
func (t ActiveTask) Valid() bool {
	return strings.TrimSpace(t.Title) != "" && !t.StartedAt.IsZero()
}

type Snoozes struct {
	MomentumUntil *time.Time `json:"momentumUntil"`
}

// ReminderState is the full persisted snapshot; one atomic blob per write.
type ReminderState struct {
	LastNextTaskRequest  *time.Time        `json:"lastNextTaskRequest"`
	LastMomentumPrompt   *time.Time        `json:"lastMomentumPrompt"`
	LastCompletionPrompt *time.Time        `json:"lastCompletionPrompt"`
	CompletionRecords    []time.Time       `json:"completionRecords"`
	StopForNow           bool              `json:"stopForNow"`
	ActiveTask           *ActiveTask       `json:"activeTask"`
	CheckinSnoozedDay    string            `json:"checkinSnoozedDay"`
	Snoozes              Snoozes           `json:"snoozes"`
	LastSessionEnded     *time.Time        `json:"lastSessionEnded"`
	Settings             settings.Settings `json:"settings"`
}

func Defaults() ReminderState {
	return ReminderState{
		CompletionRecords: []time.Time{},
		Settings:          settings.Defaults(),
	}
}

// PruneCompletions drops completion records older than the cooldown window.
func (s *ReminderState) PruneCompletions(now time.Time) {
	window := s.Settings.CompletionCooldown()
	kept := s.CompletionRecords[:0]
	for _, at := range s.CompletionRecords {
		if now.Sub(at) < window {
			kept = append(kept, at)
		}
	}
	s.CompletionRecords = kept
}

// Normalize restores the snapshot invariants after a load: partial active
// tasks are discarded, stale completion records pruned, settings repaired,
// and a malformed snooze day string reset.
func (s *ReminderState) Normalize(now time.Time) {
	if s.CompletionRecords == nil {
		s.CompletionRecords = []time.Time{}
	}
	if s.ActiveTask != nil && !s.ActiveTask.Valid() {
		s.ActiveTask = nil
	}
	if s.CheckinSnoozedDay != "" {
		if _, err := time.Parse(DayLayout, s.CheckinSnoozedDay); err != nil {
			s.CheckinSnoozedDay = ""
		}
	}
	s.Settings = s.Settings.Normalize()
	s.PruneCompletions(now)
}

// Patch is a partial top-level update. Nil fields are left untouched;
// the nested snoozes and settings maps are deep-merged so one key can be
// updated without clobbering the others.
type Patch struct {
	LastNextTaskRequest   *time.Time
	LastMomentumPrompt    *time.Time
	LastCompletionPrompt  *time.Time
	CompletionRecords     []time.Time
	StopForNow            *bool
	CheckinSnoozedDay     *string
	LastSessionEnded      *time.Time
	ClearLastSessionEnded bool
	MomentumSnoozeUntil   *time.Time
	Settings              *settings.Patch
	ReplaceSettings       *settings.Settings
}

func (p Patch) Apply(s *ReminderState) {
	if p.LastNextTaskRequest != nil {
		s.LastNextTaskRequest = p.LastNextTaskRequest
	}
	if p.LastMomentumPrompt != nil {
		s.LastMomentumPrompt = p.LastMomentumPrompt
	}
	if p.LastCompletionPrompt != nil {
		s.LastCompletionPrompt = p.LastCompletionPrompt
	}
	if p.CompletionRecords != nil {
		s.CompletionRecords = p.CompletionRecords
	}
	if p.StopForNow != nil {
		s.StopForNow = *p.StopForNow
	}
	if p.CheckinSnoozedDay != nil {
		s.CheckinSnoozedDay = *p.CheckinSnoozedDay
	}
	if p.ClearLastSessionEnded {
		s.LastSessionEnded = nil
	} else if p.LastSessionEnded != nil {
		s.LastSessionEnded = p.LastSessionEnded
	}
	if p.MomentumSnoozeUntil != nil {
		s.Snoozes.MomentumUntil = p.MomentumSnoozeUntil
	}
	if p.ReplaceSettings != nil {
		s.Settings = p.ReplaceSettings.Normalize()
	} else if p.Settings != nil {
		s.Settings = p.Settings.Apply(s.Settings)
	}
}
