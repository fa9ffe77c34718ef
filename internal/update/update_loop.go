package update

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/mindloom/nudged/internal/engine"
	"github.com/mindloom/nudged/internal/notify"
	"github.com/mindloom/nudged/internal/planner"
	"github.com/mindloom/nudged/internal/views"
)

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		func() tea.Msg { return EvaluateMsg{Trigger: engine.TriggerStart} },
		minuteTickCmd(),
	}
	if m.Bridge != nil {
		cmds = append(cmds, waitForActionCmd(m.Bridge.C()))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(typed)

	case tea.FocusMsg:
		// Regaining focus is a wake source, like the tab becoming visible.
		return m, func() tea.Msg { return EvaluateMsg{Trigger: engine.TriggerFocus} }

	case EvaluateMsg:
		cmds := m.deliver(m.Controller.Evaluate(typed.Trigger))
		return m, tea.Batch(cmds...)

	case MinuteTickMsg:
		// Display refresh only; elapsed text is recomputed in View.
		return m, minuteTickCmd()

	case ToastExpiredMsg:
		m.removeToast(typed.ID)
		return m, nil

	case BridgeActionMsg:
		cmds := m.applyAction(typed.Msg)
		if m.Bridge != nil {
			cmds = append(cmds, waitForActionCmd(m.Bridge.C()))
		}
		return m, tea.Batch(cmds...)

	case NextTaskRequestMsg:
		return m, tea.Batch(m.startNextTaskRequest()...)

	case TaskCompletedMsg:
		cmds := m.deliver(m.Controller.HandleCompleted(typed.Count))
		return m, tea.Batch(cmds...)

	case PlanResultMsg:
		m.planning = false
		switch {
		case typed.Err != nil:
			m.Logger.Warn("next-task request failed", zap.Error(typed.Err))
			m.pushErrorToast("Couldn't fetch the next task. Try again in a bit.")
		case typed.Task == nil:
			m.Status = StatusBar{Text: "planner had no suggestion"}
		default:
			m.Controller.StartTask(typed.Task.ID, typed.Task.Title, typed.Task.Project, typed.Task.Area)
			m.Status = StatusBar{Text: fmt.Sprintf("now focusing on %q", typed.Task.Title)}
		}
		return m, nil

	case spinner.TickMsg:
		if m.planning {
			var cmd tea.Cmd
			m.planSpinner, cmd = m.planSpinner.Update(typed)
			return m, cmd
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.settingsOpen {
		return m.handleSettingsKey(msg)
	}

	switch msg.String() {
	case "ctrl+c", m.Keys.Quit:
		m.Quitting = true
		return *m, tea.Quit
	case m.Keys.Help:
		m.HelpVisible = !m.HelpVisible
		return *m, nil
	case "esc":
		m.dismissStickyToast()
		return *m, nil
	case m.Keys.NextTask:
		return *m, func() tea.Msg { return NextTaskRequestMsg{} }
	case m.Keys.Done:
		return *m, tea.Batch(m.checkinAction(engine.ActionDone)...)
	case m.Keys.StillGoing:
		return *m, tea.Batch(m.checkinAction(engine.ActionStillGoing)...)
	case m.Keys.Switch:
		return *m, tea.Batch(m.checkinAction(engine.ActionSwitch)...)
	case m.Keys.StopTask:
		return *m, tea.Batch(m.checkinAction(engine.ActionStop)...)
	case m.Keys.Pause:
		if m.Controller.ToggleStopForNow() {
			m.Status = StatusBar{Text: "reminders paused"}
		} else {
			m.Status = StatusBar{Text: "reminders resumed"}
			return *m, func() tea.Msg { return EvaluateMsg{Trigger: engine.TriggerManual} }
		}
		return *m, nil
	case m.Keys.Snooze:
		until := m.Controller.SnoozeMomentum()
		m.Status = StatusBar{Text: "momentum snoozed until " + until.Format("15:04")}
		return *m, nil
	case m.Keys.SnoozeDay:
		m.Controller.SnoozeCheckinsToday()
		m.Status = StatusBar{Text: "check-ins snoozed for today"}
		return *m, nil
	case m.Keys.Settings:
		m.openSettings()
		return *m, nil
	case m.Keys.Desktop:
		m.Dispatcher.SetEnabled(!m.Dispatcher.Enabled())
		if m.Dispatcher.Enabled() {
			m.Status = StatusBar{Text: "desktop notifications on"}
		} else {
			m.Status = StatusBar{Text: "desktop notifications off"}
		}
		return *m, nil
	case m.Keys.Evaluate:
		return *m, func() tea.Msg { return EvaluateMsg{Trigger: engine.TriggerManual} }
	}

	if preset, ok := presetKeys[msg.String()]; ok {
		ps, err := m.Controller.ApplyPreset(preset)
		if err != nil {
			m.Status = StatusBar{Text: err.Error(), IsError: true}
			return *m, nil
		}
		m.Status = StatusBar{Text: "preset applied: " + preset}
		return *m, tea.Batch(m.deliver(ps)...)
	}
	return *m, nil
}

// checkinAction routes an inline key press through the same handlers the
// notification bridge uses.
func (m *Model) checkinAction(action engine.Action) []tea.Cmd {
	task := m.Controller.State().ActiveTask
	if task == nil {
		m.Status = StatusBar{Text: "no active task"}
		return nil
	}
	return m.applyAction(engine.ActionMessage{Kind: engine.KindCheckin, Action: action, TaskID: task.ID})
}

func (m *Model) applyAction(msg engine.ActionMessage) []tea.Cmd {
	ps, effect := m.Controller.HandleAction(msg)
	cmds := m.deliver(ps)
	switch effect {
	case engine.EffectRequestNextTask:
		// The controller already recorded the request.
		cmds = append(cmds, m.fetchNextTask()...)
	case engine.EffectMarkDone:
		m.Status = StatusBar{Text: "task marked done"}
		cmds = append(cmds, func() tea.Msg { return TaskCompletedMsg{Count: 1} })
	}
	return cmds
}

func (m *Model) startNextTaskRequest() []tea.Cmd {
	m.Controller.RecordNextTaskRequest()
	return m.fetchNextTask()
}

func (m *Model) fetchNextTask() []tea.Cmd {
	if m.Planner == nil {
		m.pushErrorToast("No plan service configured; set plan_base_url to enable task suggestions.")
		return nil
	}
	m.planning = true
	m.Status = StatusBar{Text: "asking the planner for a task"}
	return []tea.Cmd{m.planSpinner.Tick, requestPlanCmd(m.Planner)}
}

func (m *Model) deliver(ps []engine.Presentation) []tea.Cmd {
	var cmds []tea.Cmd
	for _, p := range ps {
		toast := m.Dispatcher.Deliver(p)
		m.pushToast(toast)
		if !toast.Sticky {
			cmds = append(cmds, toastExpiryCmd(toast.ID))
		}
	}
	return cmds
}

func (m *Model) pushToast(t notify.Toast) {
	m.Toasts = append(m.Toasts, t)
	if len(m.Toasts) > maxToasts {
		m.Toasts = m.Toasts[len(m.Toasts)-maxToasts:]
	}
}

func (m *Model) pushErrorToast(text string) {
	m.pushToast(notify.Toast{
		ID:        fmt.Sprintf("err-%d", m.Clock.Now().UnixNano()),
		Title:     text,
		CreatedAt: m.Clock.Now(),
		Sticky:    true,
	})
}

func (m *Model) removeToast(id string) {
	kept := m.Toasts[:0]
	for _, t := range m.Toasts {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	m.Toasts = kept
}

func (m *Model) dismissStickyToast() {
	for i := len(m.Toasts) - 1; i >= 0; i-- {
		if m.Toasts[i].Sticky {
			m.Toasts = append(m.Toasts[:i], m.Toasts[i+1:]...)
			return
		}
	}
}

func (m Model) View() string {
	if m.Quitting {
		return "bye\n"
	}

	data := views.AppData{
		Header:      "nudged",
		TaskPane:    m.taskPane(),
		ToastPane:   m.toastPane(),
		StatusLine:  m.statusLine(),
		StatusError: m.Status.IsError,
		Footer:      m.footer(),
	}
	if m.settingsOpen {
		data.SettingsPane = m.settingsPane()
	}
	if m.HelpVisible {
		data.HelpOverlay = views.RenderMarkdown(helpText)
	}
	return views.RenderApp(data)
}

func (m Model) taskPane() string {
	st := m.Controller.State()
	now := m.Clock.Now()

	var b strings.Builder
	if st.StopForNow {
		b.WriteString("reminders paused (press p to resume)\n\n")
	}
	if task := st.ActiveTask; task != nil {
		b.WriteString("Current focus: " + task.Title + "\n")
		if task.Project != "" {
			b.WriteString("Project: " + task.Project + "\n")
		}
		b.WriteString("Working for " + elapsedText(task.StartedAt, now) + "\n")
	} else {
		b.WriteString("No active task.\n")
		b.WriteString("Press n to ask the planner for one.\n")
	}
	if m.planning {
		b.WriteString("\n" + m.planSpinner.View() + " fetching next task")
	}
	return b.String()
}

func (m Model) toastPane() string {
	if len(m.Toasts) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(m.Toasts))
	for _, t := range m.Toasts {
		labels := make([]string, 0, len(t.Actions))
		for _, a := range t.Actions {
			labels = append(labels, fmt.Sprintf("[%s] %s", keyForAction(m.Keys, a.Action), a.Label))
		}
		rendered = append(rendered, views.RenderToast(t.Title, t.Body, labels, t.Sticky))
	}
	return strings.Join(rendered, "\n")
}

func (m Model) statusLine() string {
	if m.Status.Text == "" {
		return "ready"
	}
	return m.Status.Text
}

func (m Model) footer() string {
	return "n next task  d done  g still going  w switch  x stop  p pause  z snooze  t desktop  s settings  ? help  q quit"
}

func keyForAction(keys GlobalKeyMap, a engine.Action) string {
	switch a {
	case engine.ActionDone:
		return keys.Done
	case engine.ActionStillGoing:
		return keys.StillGoing
	case engine.ActionSwitch:
		return keys.Switch
	case engine.ActionStop, engine.ActionPause:
		return keys.Pause
	case engine.ActionSnooze:
		return keys.Snooze
	case engine.ActionNextTask:
		return keys.NextTask
	default:
		return "?"
	}
}

func minuteTickCmd() tea.Cmd {
	return tea.Tick(time.Minute, func(time.Time) tea.Msg { return MinuteTickMsg{} })
}

func toastExpiryCmd(id string) tea.Cmd {
	return tea.Tick(notify.ToastTTL, func(time.Time) tea.Msg { return ToastExpiredMsg{ID: id} })
}

func waitForActionCmd(ch <-chan engine.ActionMessage) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return BridgeActionMsg{Msg: msg}
	}
}

func requestPlanCmd(client planner.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		task, err := client.NextTask(ctx)
		return PlanResultMsg{Task: task, Err: err}
	}
}
