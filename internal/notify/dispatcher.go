package notify

import (
	"time"

	"go.uber.org/zap"

	"github.com/mindloom/nudged/internal/engine"
)

// ToastTTL is how long a toast with quick actions stays on screen.
const ToastTTL = 12 * time.Second

// Toast is the inline fallback rendering of a reminder. It always exists,
// even when a system notification was also sent, so the reminder is visible
// when the OS suppresses notifications.
type Toast struct {
	ID        string
	Kind      engine.Kind
	Title     string
	Body      string
	TaskID    string
	Actions   []engine.QuickAction
	CreatedAt time.Time
	// Sticky toasts have no actions; they persist until dismissed.
	Sticky bool
}

// Dispatcher chooses the delivery channel per presentation: system
// notification when permitted and capable, inline toast always.
type Dispatcher struct {
	notifier Notifier
	logger   *zap.Logger
	clock    engine.Clock

	asked    bool
	pending  []Notification
	disabled bool
}

func NewDispatcher(notifier Notifier, logger *zap.Logger, clock engine.Clock) *Dispatcher {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = engine.SystemClock{}
	}
	return &Dispatcher{notifier: notifier, logger: logger, clock: clock}
}

// Deliver renders a presentation. The returned toast must be shown by the
// caller; the system notification side is handled here, best-effort.
func (d *Dispatcher) Deliver(p engine.Presentation) Toast {
	toast := Toast{
		ID:        p.ID,
		Kind:      p.Kind,
		Title:     p.Title,
		Body:      p.Body,
		TaskID:    p.TaskID,
		Actions:   clipActions(p.Actions),
		CreatedAt: d.clock.Now(),
		Sticky:    len(p.Actions) == 0,
	}

	if d.disabled {
		return toast
	}

	switch d.notifier.Permission() {
	case PermissionGranted:
		d.send(p)
	case PermissionUndetermined:
		// Ask once per session; deliver only on grant.
		if !d.asked {
			d.asked = true
			if d.notifier.RequestPermission() == PermissionGranted {
				d.send(p)
			}
		}
	case PermissionDenied:
		// Toast only.
	}
	return toast
}

func (d *Dispatcher) send(p engine.Presentation) {
	n := Notification{
		ID:      p.ID,
		Kind:    p.Kind,
		Title:   p.Title,
		Body:    p.Body,
		TaskID:  p.TaskID,
		Actions: p.Actions,
	}
	if len(p.Actions) > 0 && d.notifier.SupportsActions() {
		if !d.notifier.Ready() {
			// Hold actionable notifications until the relay is listening,
			// rather than sending buttons that lead nowhere.
			d.pending = append(d.pending, n)
			return
		}
	} else {
		n.Actions = nil
	}
	if err := d.notifier.Send(n); err != nil {
		d.logger.Debug("system notification failed, toast already covers it",
			zap.String("id", n.ID), zap.Error(err))
	}
}

// SetEnabled turns system notifications on or off at runtime. Toasts are
// unaffected; turning off also drops anything queued for the relay.
func (d *Dispatcher) SetEnabled(v bool) {
	d.disabled = !v
	if d.disabled {
		d.pending = nil
	}
}

func (d *Dispatcher) Enabled() bool {
	return !d.disabled
}

// FlushReady sends notifications queued while the action relay was not yet
// listening. Call it once the bridge reports readiness.
func (d *Dispatcher) FlushReady() {
	if len(d.pending) == 0 {
		return
	}
	queued := d.pending
	d.pending = nil
	for _, n := range queued {
		if err := d.notifier.Send(n); err != nil {
			d.logger.Debug("queued notification failed", zap.String("id", n.ID), zap.Error(err))
		}
	}
}

func (d *Dispatcher) Pending() int {
	return len(d.pending)
}

// Toasts show at most two quick actions; anything longer belongs in the
// full in-page action row.
func clipActions(actions []engine.QuickAction) []engine.QuickAction {
	if len(actions) <= 2 {
		return actions
	}
	return actions[:2]
}
