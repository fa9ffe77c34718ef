package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/mindloom/nudged/internal/bridge"
	"github.com/mindloom/nudged/internal/engine"
)

// Permission mirrors the three-way notification permission model: the user
// may have granted, denied, or never been asked.
type Permission string

const (
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
	PermissionUndetermined Permission = "undetermined"
)

type Notification struct {
	ID      string
	Kind    engine.Kind
	Title   string
	Body    string
	TaskID  string
	Actions []engine.QuickAction
}

// Notifier is the system notification channel. Ready reports whether the
// action-relay helper is listening yet; until then actionable notifications
// are queued by the dispatcher rather than degraded.
type Notifier interface {
	Permission() Permission
	RequestPermission() Permission
	SupportsActions() bool
	Ready() bool
	Send(n Notification) error
}

// NoopNotifier stands in when the platform has no notification capability.
type NoopNotifier struct{}

func (NoopNotifier) Permission() Permission        { return PermissionDenied }
func (NoopNotifier) RequestPermission() Permission { return PermissionDenied }
func (NoopNotifier) SupportsActions() bool         { return false }
func (NoopNotifier) Ready() bool                   { return false }
func (NoopNotifier) Send(Notification) error       { return nil }

// ExecNotifier shells out to the platform notifier, notify-send on Linux and
// osascript on macOS. Permission is undetermined until the first request
// probes for the binary.
type ExecNotifier struct {
	mu     sync.Mutex
	perm   Permission
	ready  bool
	socket string
}

// NewExecNotifier builds the exec-backed notifier. socket is the bridge
// socket path the chosen action is relayed back through.
func NewExecNotifier(socket string) *ExecNotifier {
	return &ExecNotifier{perm: PermissionUndetermined, socket: socket}
}

func (n *ExecNotifier) Permission() Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.perm
}

// RequestPermission probes once for a usable notifier binary; the result is
// cached for the session, so the user-facing prompt happens at most once.
func (n *ExecNotifier) RequestPermission() Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.perm != PermissionUndetermined {
		return n.perm
	}
	n.perm = PermissionDenied
	switch runtime.GOOS {
	case "linux":
		if _, err := exec.LookPath("notify-send"); err == nil {
			n.perm = PermissionGranted
		}
	case "darwin":
		if _, err := exec.LookPath("osascript"); err == nil {
			n.perm = PermissionGranted
		}
	}
	return n.perm
}

func (n *ExecNotifier) SupportsActions() bool {
	return runtime.GOOS == "linux"
}

// MarkReady flips once the bridge socket is accepting connections, the point
// at which action clicks can actually reach a running or future session.
func (n *ExecNotifier) MarkReady() {
	n.mu.Lock()
	n.ready = true
	n.mu.Unlock()
}

func (n *ExecNotifier) Ready() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ready
}

// Send hands the notification to the platform notifier without waiting for
// it. notify-send with --action flags stays alive until the user answers the
// notification or it expires; waiting here would stall the session loop for
// that whole time, so the command is started and reaped on a goroutine which
// relays the chosen action (printed on stdout) back through the bridge
// socket.
func (n *ExecNotifier) Send(msg Notification) error {
	switch runtime.GOOS {
	case "linux":
		args := []string{"--app-name=nudged", msg.Title, msg.Body}
		for _, a := range msg.Actions {
			args = append(args, fmt.Sprintf("--action=%s=%s", a.Action, a.Label))
		}
		cmd := exec.Command("notify-send", args...)
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Start(); err != nil {
			return err
		}
		go func() {
			if err := cmd.Wait(); err != nil {
				return
			}
			if len(msg.Actions) > 0 {
				n.relayAction(msg, strings.TrimSpace(out.String()))
			}
		}()
		return nil
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			escapeAppleScript(msg.Body), escapeAppleScript(msg.Title))
		cmd := exec.Command("osascript", "-e", script)
		if err := cmd.Start(); err != nil {
			return err
		}
		go func() { _ = cmd.Wait() }()
		return nil
	default:
		return nil
	}
}

// relayAction writes the clicked action to the bridge socket in the same
// envelope an external helper would use, so one inbound path serves both.
// An empty action means the notification expired or was dismissed.
func (n *ExecNotifier) relayAction(msg Notification, action string) {
	if action == "" || n.socket == "" {
		return
	}
	conn, err := net.Dial("unix", n.socket)
	if err != nil {
		return
	}
	defer conn.Close()

	raw, err := json.Marshal(bridge.Envelope{
		Type: bridge.EnvelopeType,
		Payload: engine.ActionMessage{
			Kind:   msg.Kind,
			Action: engine.Action(action),
			TaskID: msg.TaskID,
		},
	})
	if err != nil {
		return
	}
	_, _ = conn.Write(append(raw, '\n'))
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
