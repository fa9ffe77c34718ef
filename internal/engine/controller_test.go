package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/mindloom/nudged/internal/state"
	"github.com/mindloom/nudged/internal/store"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type fakeRand struct {
	v float64
}

func (r fakeRand) Float64() float64 { return r.v }

func newTestController(t *testing.T) (*Controller, *store.Store, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)}
	st := store.New(store.NewMemoryBackend(), nil, clk.Now)
	c := New(st, Config{Clock: clk, Rand: fakeRand{v: 0.5}})
	return c, st, clk
}

func onlyKind(t *testing.T, ps []Presentation, kind Kind) Presentation {
	t.Helper()
	if len(ps) != 1 {
		t.Fatalf("expected exactly one presentation, got %d: %+v", len(ps), ps)
	}
	if ps[0].Kind != kind {
		t.Fatalf("expected kind %q, got %q", kind, ps[0].Kind)
	}
	return ps[0]
}

func TestMomentumFiresOnceAfterThreshold(t *testing.T) {
	c, _, clk := newTestController(t)
	c.RecordNextTaskRequest()
	clk.Advance(91 * time.Minute)

	onlyKind(t, c.Evaluate(TriggerFocus), KindMomentum)

	if ps := c.Evaluate(TriggerFocus); len(ps) != 0 {
		t.Fatalf("momentum fired twice inside threshold window: %+v", ps)
	}

	// The anti-spam window is the momentum threshold itself.
	clk.Advance(89 * time.Minute)
	if ps := c.Evaluate(TriggerFocus); len(ps) != 0 {
		t.Fatalf("momentum fired inside anti-spam window: %+v", ps)
	}
	clk.Advance(2 * time.Minute)
	onlyKind(t, c.Evaluate(TriggerFocus), KindMomentum)
}

func TestMomentumRequiresPriorRequestUnlessForced(t *testing.T) {
	c, _, _ := newTestController(t)
	if ps := c.Evaluate(TriggerFocus); len(ps) != 0 {
		t.Fatalf("momentum fired with no request ever recorded: %+v", ps)
	}
	onlyKind(t, c.Evaluate(TriggerStart), KindMomentum)
}

func TestMomentumSkipsWhileTaskActive(t *testing.T) {
	c, _, clk := newTestController(t)
	c.RecordNextTaskRequest()
	c.StartTask("t1", "Draft outline", "", "")
	clk.Advance(3 * time.Hour)
	for _, p := range c.Evaluate(TriggerFocus) {
		if p.Kind == KindMomentum {
			t.Fatalf("momentum fired with an active task: %+v", p)
		}
	}
}

func TestMomentumIdleGapGatesForcedEvaluation(t *testing.T) {
	// The user worked until one minute ago: a fresh session must not nag,
	// however old the last next-task request is.
	clk := &fakeClock{now: time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)}
	st := store.New(store.NewMemoryBackend(), nil, clk.Now)
	first := New(st, Config{Clock: clk, Rand: fakeRand{v: 0.5}})
	first.RecordNextTaskRequest()
	clk.Advance(200 * time.Minute)
	first.SessionEnded()

	clk.Advance(time.Minute)
	second := New(st, Config{Clock: clk, Rand: fakeRand{v: 0.5}})
	if ps := second.Evaluate(TriggerStart); len(ps) != 0 {
		t.Fatalf("momentum fired after a short idle gap: %+v", ps)
	}

	// A long gap does trigger idle recovery.
	third := New(st, Config{Clock: clk, Rand: fakeRand{v: 0.5}})
	third.SessionEnded()
	clk.Advance(200 * time.Minute)
	fourth := New(st, Config{Clock: clk, Rand: fakeRand{v: 0.5}})
	onlyKind(t, fourth.Evaluate(TriggerStart), KindMomentum)
}

func TestMomentumSnoozeGate(t *testing.T) {
	c, _, clk := newTestController(t)
	c.RecordNextTaskRequest()
	clk.Advance(91 * time.Minute)
	c.SnoozeMomentum() // default snooze: 30 minutes

	if ps := c.Evaluate(TriggerFocus); len(ps) != 0 {
		t.Fatalf("momentum fired while snoozed: %+v", ps)
	}
	clk.Advance(31 * time.Minute)
	onlyKind(t, c.Evaluate(TriggerFocus), KindMomentum)
}

func TestCheckinLifecycle(t *testing.T) {
	c, _, clk := newTestController(t)
	c.StartTask("1", "Draft outline", "writing", "work")

	// First evaluation only seeds checkinNextAt; the delay has not elapsed.
	if ps := c.Evaluate(TriggerFocus); len(ps) != 0 {
		t.Fatalf("check-in fired before its delay: %+v", ps)
	}
	task := c.State().ActiveTask
	if task == nil || task.CheckinNextAt == nil {
		t.Fatalf("checkinNextAt not initialized: %+v", task)
	}
	lo := clk.Now().Add(20 * time.Minute)
	hi := clk.Now().Add(40 * time.Minute)
	if task.CheckinNextAt.Before(lo) || task.CheckinNextAt.After(hi) {
		t.Fatalf("checkinNextAt %v outside [%v, %v]", task.CheckinNextAt, lo, hi)
	}

	clk.Advance(41 * time.Minute)
	p := onlyKind(t, c.Evaluate(TriggerFocus), KindCheckin)
	if p.Title != `Still working on "Draft outline"?` {
		t.Fatalf("unexpected check-in title: %q", p.Title)
	}
	if p.TaskID != "1" {
		t.Fatalf("check-in carries wrong task id: %q", p.TaskID)
	}

	// The reschedule draws a fresh delay from the same range.
	task = c.State().ActiveTask
	lo = clk.Now().Add(20 * time.Minute)
	hi = clk.Now().Add(40 * time.Minute)
	if task.CheckinNextAt.Before(lo) || task.CheckinNextAt.After(hi) {
		t.Fatalf("rescheduled checkinNextAt %v outside [%v, %v]", task.CheckinNextAt, lo, hi)
	}
	if ps := c.Evaluate(TriggerFocus); len(ps) != 0 {
		t.Fatalf("check-in double-fired: %+v", ps)
	}
}

func TestCheckinDoubleFireGuard(t *testing.T) {
	c, st, clk := newTestController(t)
	now := clk.Now()
	past := now.Add(-time.Minute)
	recent := now.Add(-time.Minute)
	st.SetActiveTask(&state.ActiveTask{
		ID: "1", Title: "Draft outline",
		StartedAt: now.Add(-time.Hour), LastActivityAt: now.Add(-time.Hour),
		CheckinNextAt: &past, LastNotificationAt: &recent,
	})
	if ps := c.Evaluate(TriggerFocus); len(ps) != 0 {
		t.Fatalf("check-in fired within the minimum-delay guard: %+v", ps)
	}
}

func TestCheckinDailySnooze(t *testing.T) {
	c, _, clk := newTestController(t)
	c.StartTask("1", "Draft outline", "", "")
	c.Evaluate(TriggerFocus)
	clk.Advance(41 * time.Minute)
	c.SnoozeCheckinsToday()

	if ps := c.Evaluate(TriggerFocus); len(ps) != 0 {
		t.Fatalf("check-in fired on a snoozed day: %+v", ps)
	}

	// The snooze resets automatically on the next day's first evaluation.
	clk.Advance(24 * time.Hour)
	onlyKind(t, c.Evaluate(TriggerFocus), KindCheckin)
}

func TestStopForNowSuppressesAndResumesWithoutReset(t *testing.T) {
	c, _, clk := newTestController(t)
	c.RecordNextTaskRequest()
	clk.Advance(91 * time.Minute)
	c.SetStopForNow(true)

	if ps := c.Evaluate(TriggerFocus); len(ps) != 0 {
		t.Fatalf("evaluation not suppressed while paused: %+v", ps)
	}

	c.SetStopForNow(false)
	onlyKind(t, c.Evaluate(TriggerFocus), KindMomentum)
}

func TestCompletionBurstIsRecordedButThrottled(t *testing.T) {
	c, _, clk := newTestController(t)

	presented := 0
	for i := 0; i < 3; i++ {
		if i > 0 {
			clk.Advance(10 * time.Second)
		}
		presented += len(c.HandleCompleted(1))
	}
	if presented != 1 {
		t.Fatalf("expected exactly one completion presentation, got %d", presented)
	}
	if got := len(c.State().CompletionRecords); got != 3 {
		t.Fatalf("expected all 3 completions recorded, got %d", got)
	}
}

func TestCompletionCountBelowOneIsNoOp(t *testing.T) {
	c, _, _ := newTestController(t)
	if ps := c.HandleCompleted(0); ps != nil {
		t.Fatalf("count 0 produced a presentation: %+v", ps)
	}
	if got := len(c.State().CompletionRecords); got != 0 {
		t.Fatalf("count 0 recorded a completion: %d", got)
	}
}

func TestCompletionRecordsPrunedToWindow(t *testing.T) {
	c, _, clk := newTestController(t)
	c.HandleCompleted(1)
	clk.Advance(6 * time.Minute) // past the 5-minute cooldown window
	c.HandleCompleted(1)
	if got := len(c.State().CompletionRecords); got != 1 {
		t.Fatalf("expected old record pruned, got %d records", got)
	}
}

func TestSprintPresetTightensMomentumThreshold(t *testing.T) {
	c, _, clk := newTestController(t)
	c.RecordNextTaskRequest()
	clk.Advance(16 * time.Minute)

	// Under the default 90-minute threshold nothing fires.
	if ps := c.Evaluate(TriggerFocus); len(ps) != 0 {
		t.Fatalf("momentum fired under default threshold at 16 minutes: %+v", ps)
	}

	ps, err := c.ApplyPreset("sprint")
	if err != nil {
		t.Fatalf("apply sprint preset: %v", err)
	}
	onlyKind(t, ps, KindMomentum)

	if _, err := c.ApplyPreset("nope"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestCheckinActionsRouteThroughHandlers(t *testing.T) {
	c, _, clk := newTestController(t)
	c.StartTask("1", "Draft outline", "", "")

	// A stale task id is ignored.
	if _, eff := c.HandleAction(ActionMessage{Kind: KindCheckin, Action: ActionDone, TaskID: "ghost"}); eff != EffectNone {
		t.Fatalf("stale task action produced effect %v", eff)
	}
	if c.State().ActiveTask == nil {
		t.Fatal("stale action cleared the active task")
	}

	// still-going refreshes activity and reschedules.
	clk.Advance(time.Hour)
	c.HandleAction(ActionMessage{Kind: KindCheckin, Action: ActionStillGoing, TaskID: "1"})
	task := c.State().ActiveTask
	if !task.LastActivityAt.Equal(clk.Now()) {
		t.Fatalf("still-going did not refresh activity: %+v", task)
	}
	if task.CheckinNextAt == nil || !task.CheckinNextAt.After(clk.Now()) {
		t.Fatalf("still-going did not reschedule the check-in: %+v", task)
	}

	// switch requests a new task without touching the current one yet, and
	// records the ask like any other next-task request.
	if _, eff := c.HandleAction(ActionMessage{Kind: KindCheckin, Action: ActionSwitch, TaskID: "1"}); eff != EffectRequestNextTask {
		t.Fatalf("switch effect = %v, want EffectRequestNextTask", eff)
	}
	if req := c.State().LastNextTaskRequest; req == nil || !req.Equal(clk.Now()) {
		t.Fatalf("switch did not record the next-task request: %v", req)
	}
	if c.State().ActiveTask == nil {
		t.Fatal("switch cleared the active task before a replacement arrived")
	}

	// done clears the task and delegates the completion to the host.
	if _, eff := c.HandleAction(ActionMessage{Kind: KindCheckin, Action: ActionDone, TaskID: "1"}); eff != EffectMarkDone {
		t.Fatalf("done effect = %v, want EffectMarkDone", eff)
	}
	if c.State().ActiveTask != nil {
		t.Fatal("done did not clear the active task")
	}
}

func TestCheckinStopPausesGlobally(t *testing.T) {
	c, _, _ := newTestController(t)
	c.StartTask("1", "Draft outline", "", "")
	c.HandleAction(ActionMessage{Kind: KindCheckin, Action: ActionStop, TaskID: "1"})
	st := c.State()
	if !st.StopForNow || st.ActiveTask != nil {
		t.Fatalf("stop did not pause and clear: %+v", st)
	}
}

func TestNotificationActionsShareHandlers(t *testing.T) {
	c, _, clk := newTestController(t)

	c.HandleAction(ActionMessage{Kind: KindMomentum, Action: ActionSnooze})
	if u := c.State().Snoozes.MomentumUntil; u == nil || !u.After(clk.Now()) {
		t.Fatalf("momentum snooze action not applied: %v", u)
	}

	c.HandleAction(ActionMessage{Kind: KindCompletion, Action: ActionPause})
	if !c.State().StopForNow {
		t.Fatal("completion pause action not applied")
	}

	if _, eff := c.HandleAction(ActionMessage{Kind: KindMomentum, Action: ActionNextTask}); eff != EffectRequestNextTask {
		t.Fatalf("momentum next-task effect = %v", eff)
	}
	if c.State().StopForNow {
		t.Fatal("next-task request did not lift the pause")
	}
}

func TestSessionEndedConsumedOnce(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)}
	st := store.New(store.NewMemoryBackend(), nil, clk.Now)
	first := New(st, Config{Clock: clk, Rand: fakeRand{v: 0.5}})
	first.SessionEnded()

	second := New(st, Config{Clock: clk, Rand: fakeRand{v: 0.5}})
	if second.State().LastSessionEnded != nil {
		t.Fatal("lastSessionEnded not consumed on load")
	}
}

func TestUpdateSettingRejectsInvalidInput(t *testing.T) {
	c, _, _ := newTestController(t)
	if err := c.UpdateSetting("momentum_idle", -5); !errors.Is(err, ErrInvalidSettingValue) {
		t.Fatalf("expected ErrInvalidSettingValue, got %v", err)
	}
	if err := c.UpdateSetting("bogus", 5); !errors.Is(err, ErrInvalidSettingValue) {
		t.Fatalf("expected ErrInvalidSettingValue for unknown key, got %v", err)
	}
	if got := c.State().Settings.MomentumIdleMin; got != 90 {
		t.Fatalf("rejected value persisted: %v", got)
	}
	if err := c.UpdateSetting("momentum_idle", 45); err != nil {
		t.Fatalf("valid update rejected: %v", err)
	}
	if got := c.State().Settings.MomentumIdleMin; got != 45 {
		t.Fatalf("valid value not persisted: %v", got)
	}
}
