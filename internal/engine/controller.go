package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindloom/nudged/internal/settings"
	"github.com/mindloom/nudged/internal/state"
	"github.com/mindloom/nudged/internal/store"
)

// The third-and-later completion inside the cooldown window stays silent.
// The limit is compared against the post-prune record count, so its
// effective width is tied to the configurable cooldown.
const completionBurstLimit = 2

var ErrInvalidSettingValue = errors.New("engine: invalid setting value")

type Config struct {
	Logger *zap.Logger
	Clock  Clock
	Rand   Rand
	// Presets unions user-defined threshold sets over the builtins.
	Presets map[string]settings.Settings
}

// Controller is the reminder state machine. One instance exists per session;
// every external entry point (key handler, bridge message, evaluation
// trigger) funnels through it and leaves the persisted state consistent
// before returning.
type Controller struct {
	store   *store.Store
	logger  *zap.Logger
	clock   Clock
	rand    Rand
	presets map[string]settings.Settings

	idleGap    time.Duration
	hasIdleGap bool
}

func New(st *store.Store, cfg Config) *Controller {
	c := &Controller{
		store:   st,
		logger:  cfg.Logger,
		clock:   cfg.Clock,
		rand:    cfg.Rand,
		presets: cfg.Presets,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.clock == nil {
		c.clock = SystemClock{}
	}
	if c.rand == nil {
		c.rand = NewRand()
	}

	// Consume lastSessionEnded once: it marks how long the previous session
	// has been gone and feeds the forced evaluation at startup.
	loaded := c.store.Load()
	if loaded.LastSessionEnded != nil {
		c.idleGap = c.clock.Now().Sub(*loaded.LastSessionEnded)
		c.hasIdleGap = true
		c.store.Update(state.Patch{ClearLastSessionEnded: true})
	}
	return c
}

func (c *Controller) State() state.ReminderState {
	return c.store.State()
}

// Evaluate runs the eligibility rules for the momentum and check-in
// reminders. The minute display tick does not call this; only the discrete
// triggers do.
func (c *Controller) Evaluate(trigger Trigger) []Presentation {
	now := c.clock.Now()
	st := c.store.State()

	// The daily check-in snooze resets automatically the first time an
	// evaluation runs on a new day.
	if st.CheckinSnoozedDay != "" && st.CheckinSnoozedDay != now.Format(state.DayLayout) {
		empty := ""
		st = c.store.Update(state.Patch{CheckinSnoozedDay: &empty})
	}

	var out []Presentation
	if p, ok := c.evalMomentum(now, st, trigger); ok {
		out = append(out, p)
	}
	if p, ok := c.evalCheckin(now, c.store.State()); ok {
		out = append(out, p)
	}
	return out
}

func (c *Controller) evalMomentum(now time.Time, st state.ReminderState, trigger Trigger) (Presentation, bool) {
	if st.StopForNow || st.ActiveTask != nil {
		return Presentation{}, false
	}
	if u := st.Snoozes.MomentumUntil; u != nil && now.Before(*u) {
		return Presentation{}, false
	}

	threshold := st.Settings.MomentumIdle()
	forced := trigger == TriggerStart
	if st.LastNextTaskRequest == nil && !forced {
		return Presentation{}, false
	}
	if st.LastNextTaskRequest != nil {
		if forced {
			if gap, ok := c.takeIdleGap(); ok {
				if gap < threshold {
					return Presentation{}, false
				}
			} else if now.Sub(*st.LastNextTaskRequest) < threshold {
				return Presentation{}, false
			}
		} else if now.Sub(*st.LastNextTaskRequest) < threshold {
			return Presentation{}, false
		}
	}
	if st.LastMomentumPrompt != nil && now.Sub(*st.LastMomentumPrompt) < threshold {
		return Presentation{}, false
	}

	c.store.Update(state.Patch{LastMomentumPrompt: &now})
	return Presentation{
		ID:    uuid.NewString(),
		Kind:  KindMomentum,
		Title: "Ready for the next task?",
		Body:  pickMessage(c.rand, momentumMessages),
		Actions: []QuickAction{
			{Label: "Snooze", Action: ActionSnooze},
			{Label: "Next task", Action: ActionNextTask},
		},
	}, true
}

func (c *Controller) evalCheckin(now time.Time, st state.ReminderState) (Presentation, bool) {
	task := st.ActiveTask
	if task == nil || st.StopForNow {
		return Presentation{}, false
	}
	if st.CheckinSnoozedDay == now.Format(state.DayLayout) {
		return Presentation{}, false
	}
	if task.CheckinNextAt == nil {
		t := *task
		next := now.Add(c.drawCheckinDelay(st.Settings))
		t.CheckinNextAt = &next
		c.store.SetActiveTask(&t)
		return Presentation{}, false
	}
	if now.Before(*task.CheckinNextAt) {
		return Presentation{}, false
	}
	// Overlapping triggers (focus plus start, say) must not double-fire.
	if task.LastNotificationAt != nil && now.Sub(*task.LastNotificationAt) < st.Settings.CheckinMin() {
		return Presentation{}, false
	}

	t := *task
	t.LastNotificationAt = &now
	next := now.Add(c.drawCheckinDelay(st.Settings))
	t.CheckinNextAt = &next
	c.store.SetActiveTask(&t)

	return Presentation{
		ID:     uuid.NewString(),
		Kind:   KindCheckin,
		TaskID: task.ID,
		Title:  fmt.Sprintf("Still working on %q?", task.Title),
		Body:   "Mark it done, keep at it, or switch to something else.",
		Actions: []QuickAction{
			{Label: "Done", Action: ActionDone},
			{Label: "Still going", Action: ActionStillGoing},
		},
	}, true
}

func (c *Controller) drawCheckinDelay(s settings.Settings) time.Duration {
	lo, hi := s.CheckinRange()
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(c.rand.Float64()*float64(hi-lo))
}

func (c *Controller) takeIdleGap() (time.Duration, bool) {
	if !c.hasIdleGap {
		return 0, false
	}
	c.hasIdleGap = false
	return c.idleGap, true
}

// HandleCompleted reacts to "task completed" events. The completion is
// always recorded; the celebration only fires outside the cooldown and while
// the pruned record count stays at or under the burst limit.
func (c *Controller) HandleCompleted(count int) []Presentation {
	if count < 1 {
		return nil
	}
	now := c.clock.Now()
	st := c.store.State()
	cooldown := st.Settings.CompletionCooldown()
	throttled := st.LastCompletionPrompt != nil && now.Sub(*st.LastCompletionPrompt) < cooldown

	records := append(append([]time.Time(nil), st.CompletionRecords...), now)
	st = c.store.Update(state.Patch{CompletionRecords: records})

	if throttled || len(st.CompletionRecords) > completionBurstLimit {
		return nil
	}
	c.store.Update(state.Patch{LastCompletionPrompt: &now})

	title := "Task complete"
	if count > 1 {
		title = fmt.Sprintf("%d tasks complete", count)
	}
	return []Presentation{{
		ID:    uuid.NewString(),
		Kind:  KindCompletion,
		Title: title,
		Body:  pickMessage(c.rand, completionMessages),
		Actions: []QuickAction{
			{Label: "Pause reminders", Action: ActionPause},
			{Label: "Next task", Action: ActionNextTask},
		},
	}}
}

// HandleAction dispatches a user response, whether it came from the in-page
// keys or from a system notification click relayed by the bridge.
func (c *Controller) HandleAction(msg ActionMessage) ([]Presentation, Effect) {
	switch msg.Kind {
	case KindMomentum:
		switch msg.Action {
		case ActionSnooze:
			c.SnoozeMomentum()
		case ActionNextTask:
			c.RecordNextTaskRequest()
			return nil, EffectRequestNextTask
		}
	case KindCompletion:
		switch msg.Action {
		case ActionPause, ActionStop:
			c.SetStopForNow(true)
		case ActionNextTask:
			c.RecordNextTaskRequest()
			return nil, EffectRequestNextTask
		}
	case KindCheckin:
		return c.handleCheckinAction(msg)
	default:
		c.logger.Debug("ignoring action for unknown reminder kind",
			zap.String("kind", string(msg.Kind)), zap.String("action", string(msg.Action)))
	}
	return nil, EffectNone
}

func (c *Controller) handleCheckinAction(msg ActionMessage) ([]Presentation, Effect) {
	now := c.clock.Now()
	st := c.store.State()
	task := st.ActiveTask
	if task == nil || (msg.TaskID != "" && task.ID != msg.TaskID) {
		// The notification may outlive the task it was about.
		c.logger.Debug("check-in action for a task that is no longer active",
			zap.String("taskId", msg.TaskID))
		return nil, EffectNone
	}

	switch msg.Action {
	case ActionDone:
		c.store.ClearActiveTask()
		return nil, EffectMarkDone
	case ActionStillGoing:
		t := *task
		t.LastActivityAt = now
		next := now.Add(c.drawCheckinDelay(st.Settings))
		t.CheckinNextAt = &next
		c.store.SetActiveTask(&t)
	case ActionSwitch:
		// Switching is an explicit ask for new work.
		c.RecordNextTaskRequest()
		return nil, EffectRequestNextTask
	case ActionStop:
		c.SetStopForNow(true)
		c.store.ClearActiveTask()
	}
	return nil, EffectNone
}

// RecordNextTaskRequest stamps the request time and lifts the global pause:
// asking for work is an explicit signal the user is back.
func (c *Controller) RecordNextTaskRequest() {
	now := c.clock.Now()
	resume := false
	c.store.Update(state.Patch{LastNextTaskRequest: &now, StopForNow: &resume})
}

// StartTask declares a new current focus, discarding any previous one.
func (c *Controller) StartTask(id, title, project, area string) *state.ActiveTask {
	now := c.clock.Now()
	return c.store.SetActiveTask(&state.ActiveTask{
		ID:             id,
		Title:          title,
		Project:        project,
		Area:           area,
		StartedAt:      now,
		LastActivityAt: now,
	})
}

func (c *Controller) SetStopForNow(v bool) {
	c.store.Update(state.Patch{StopForNow: &v})
}

func (c *Controller) ToggleStopForNow() bool {
	next := !c.store.State().StopForNow
	c.SetStopForNow(next)
	return next
}

// SnoozeMomentum suppresses momentum reminders for the configured snooze
// duration and returns the expiry.
func (c *Controller) SnoozeMomentum() time.Time {
	st := c.store.State()
	until := c.clock.Now().Add(st.Settings.MomentumSnooze())
	c.store.Update(state.Patch{MomentumSnoozeUntil: &until})
	return until
}

// SnoozeCheckinsToday suppresses check-ins for the rest of the calendar day.
func (c *Controller) SnoozeCheckinsToday() {
	day := c.clock.Now().Format(state.DayLayout)
	c.store.Update(state.Patch{CheckinSnoozedDay: &day})
}

// ApplyPreset replaces all five thresholds atomically and immediately
// re-evaluates under the new settings.
func (c *Controller) ApplyPreset(name string) ([]Presentation, error) {
	s, err := settings.Preset(name, c.presets)
	if err != nil {
		return nil, err
	}
	c.store.Update(state.Patch{ReplaceSettings: &s})
	return c.Evaluate(TriggerManual), nil
}

// UpdateSetting applies one threshold by its settings-input key. Invalid
// values are rejected and the stored value is kept.
func (c *Controller) UpdateSetting(key string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return fmt.Errorf("%w: %s=%v", ErrInvalidSettingValue, key, value)
	}
	p := settings.Patch{}
	switch key {
	case "momentum_idle":
		p.MomentumIdleMin = &value
	case "momentum_snooze":
		p.MomentumSnoozeMin = &value
	case "checkin_min":
		p.CheckinMinMin = &value
	case "checkin_max":
		p.CheckinMaxMin = &value
	case "completion_cooldown":
		p.CompletionCooldownMin = &value
	default:
		return fmt.Errorf("%w: unknown key %q", ErrInvalidSettingValue, key)
	}
	c.store.Update(state.Patch{Settings: &p})
	return nil
}

// SessionEnded stamps the shutdown time so the next session can detect the
// idle gap.
func (c *Controller) SessionEnded() {
	now := c.clock.Now()
	c.store.Update(state.Patch{LastSessionEnded: &now})
}
