package notify

import (
	"errors"
	"testing"

	"github.com/mindloom/nudged/internal/engine"
)

type fakeNotifier struct {
	perm     Permission
	actions  bool
	ready    bool
	requests int
	sent     []Notification
	sendErr  error
}

func (f *fakeNotifier) Permission() Permission { return f.perm }

func (f *fakeNotifier) RequestPermission() Permission {
	f.requests++
	if f.perm == PermissionUndetermined {
		f.perm = PermissionGranted
	}
	return f.perm
}

func (f *fakeNotifier) SupportsActions() bool { return f.actions }
func (f *fakeNotifier) Ready() bool           { return f.ready }

func (f *fakeNotifier) Send(n Notification) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, n)
	return nil
}

func actionable() engine.Presentation {
	return engine.Presentation{
		ID:    "p1",
		Kind:  engine.KindCheckin,
		Title: `Still working on "Draft outline"?`,
		Actions: []engine.QuickAction{
			{Label: "Done", Action: engine.ActionDone},
			{Label: "Still going", Action: engine.ActionStillGoing},
		},
	}
}

func TestDeliverAlwaysReturnsMirrorToast(t *testing.T) {
	f := &fakeNotifier{perm: PermissionDenied}
	d := NewDispatcher(f, nil, nil)
	toast := d.Deliver(actionable())
	if toast.Title != `Still working on "Draft outline"?` || len(toast.Actions) != 2 {
		t.Fatalf("toast does not mirror presentation: %+v", toast)
	}
	if toast.Sticky {
		t.Fatal("toast with actions must auto-dismiss, not stick")
	}
	if len(f.sent) != 0 {
		t.Fatalf("denied permission still sent a notification: %+v", f.sent)
	}
}

func TestDeliverStickyToastWithoutActions(t *testing.T) {
	d := NewDispatcher(&fakeNotifier{perm: PermissionDenied}, nil, nil)
	toast := d.Deliver(engine.Presentation{ID: "p2", Kind: engine.KindMomentum, Title: "hi"})
	if !toast.Sticky {
		t.Fatal("actionless toast should persist until dismissed")
	}
}

func TestDeliverGrantedActionCapableAndReady(t *testing.T) {
	f := &fakeNotifier{perm: PermissionGranted, actions: true, ready: true}
	d := NewDispatcher(f, nil, nil)
	d.Deliver(actionable())
	if len(f.sent) != 1 || len(f.sent[0].Actions) != 2 {
		t.Fatalf("expected actionable notification, got %+v", f.sent)
	}
}

func TestDeliverStripsActionsWhenUnsupported(t *testing.T) {
	f := &fakeNotifier{perm: PermissionGranted, actions: false, ready: true}
	d := NewDispatcher(f, nil, nil)
	d.Deliver(actionable())
	if len(f.sent) != 1 || f.sent[0].Actions != nil {
		t.Fatalf("expected plain notification, got %+v", f.sent)
	}
}

func TestDeliverQueuesActionableUntilReady(t *testing.T) {
	f := &fakeNotifier{perm: PermissionGranted, actions: true, ready: false}
	d := NewDispatcher(f, nil, nil)
	d.Deliver(actionable())
	if len(f.sent) != 0 || d.Pending() != 1 {
		t.Fatalf("expected queued notification, sent=%d pending=%d", len(f.sent), d.Pending())
	}

	f.ready = true
	d.FlushReady()
	if len(f.sent) != 1 || d.Pending() != 0 {
		t.Fatalf("flush did not drain queue, sent=%d pending=%d", len(f.sent), d.Pending())
	}
}

func TestDeliverAsksPermissionOnce(t *testing.T) {
	f := &fakeNotifier{perm: PermissionUndetermined, ready: true}
	d := NewDispatcher(f, nil, nil)
	d.Deliver(actionable())
	d.Deliver(actionable())
	if f.requests != 1 {
		t.Fatalf("permission requested %d times, want 1", f.requests)
	}
	// Granted on the first ask, so the first presentation was delivered.
	if len(f.sent) == 0 {
		t.Fatal("granted permission did not deliver")
	}
}

func TestDisabledDispatcherStillToasts(t *testing.T) {
	f := &fakeNotifier{perm: PermissionGranted, actions: true, ready: true}
	d := NewDispatcher(f, nil, nil)

	d.SetEnabled(false)
	toast := d.Deliver(actionable())
	if toast.ID != "p1" {
		t.Fatalf("toast missing while disabled: %+v", toast)
	}
	if len(f.sent) != 0 {
		t.Fatalf("disabled dispatcher sent a notification: %+v", f.sent)
	}

	d.SetEnabled(true)
	d.Deliver(actionable())
	if len(f.sent) != 1 {
		t.Fatalf("re-enabled dispatcher did not send, sent=%d", len(f.sent))
	}
}

func TestDeliverSwallowsSendFailures(t *testing.T) {
	f := &fakeNotifier{perm: PermissionGranted, ready: true, sendErr: errors.New("no bus")}
	d := NewDispatcher(f, nil, nil)
	toast := d.Deliver(actionable())
	if toast.ID != "p1" {
		t.Fatalf("send failure leaked into toast: %+v", toast)
	}
}
