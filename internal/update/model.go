package update

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"go.uber.org/zap"

	"github.com/mindloom/nudged/internal/bridge"
	"github.com/mindloom/nudged/internal/engine"
	"github.com/mindloom/nudged/internal/notify"
	"github.com/mindloom/nudged/internal/planner"
)

const maxToasts = 5

type StatusBar struct {
	Text    string
	IsError bool
}

type GlobalKeyMap struct {
	NextTask   string
	Done       string
	StillGoing string
	Switch     string
	StopTask   string
	Pause      string
	Snooze     string
	SnoozeDay  string
	Settings   string
	Desktop    string
	Evaluate   string
	Help       string
	Quit       string
}

func defaultKeys() GlobalKeyMap {
	return GlobalKeyMap{
		NextTask:   "n",
		Done:       "d",
		StillGoing: "g",
		Switch:     "w",
		StopTask:   "x",
		Pause:      "p",
		Snooze:     "z",
		SnoozeDay:  "Z",
		Settings:   "s",
		Desktop:    "t",
		Evaluate:   "e",
		Help:       "?",
		Quit:       "q",
	}
}

// settingKeys is the display and edit order of the threshold inputs.
var settingKeys = []string{
	"momentum_idle",
	"momentum_snooze",
	"checkin_min",
	"checkin_max",
	"completion_cooldown",
}

var settingLabels = map[string]string{
	"momentum_idle":       "Momentum idle",
	"momentum_snooze":     "Momentum snooze",
	"checkin_min":         "Check-in min",
	"checkin_max":         "Check-in max",
	"completion_cooldown": "Completion cooldown",
}

// presetKeys maps the number row to preset names.
var presetKeys = map[string]string{
	"1": "gentle",
	"2": "focused",
	"3": "sprint",
}

// Model hosts the reminder engine in a terminal session: it owns the toast
// stack and wires focus events, the minute tick, keys, and bridge messages
// into the controller.
type Model struct {
	Controller *engine.Controller
	Dispatcher *notify.Dispatcher
	Bridge     *bridge.Bridge
	Planner    planner.Client
	Logger     *zap.Logger
	Clock      engine.Clock

	Toasts      []notify.Toast
	Status      StatusBar
	Keys        GlobalKeyMap
	HelpVisible bool
	Quitting    bool

	settingsOpen   bool
	settingsCursor int
	settingInput   textinput.Model

	planSpinner spinner.Model
	planning    bool
}

type Deps struct {
	Controller *engine.Controller
	Dispatcher *notify.Dispatcher
	Bridge     *bridge.Bridge
	Planner    planner.Client
	Logger     *zap.Logger
	Clock      engine.Clock
}

func NewModel(deps Deps) Model {
	input := textinput.New()
	input.Placeholder = "minutes"
	input.CharLimit = 6
	input.Width = 10

	m := Model{
		Controller:   deps.Controller,
		Dispatcher:   deps.Dispatcher,
		Bridge:       deps.Bridge,
		Planner:      deps.Planner,
		Logger:       deps.Logger,
		Clock:        deps.Clock,
		Keys:         defaultKeys(),
		settingInput: input,
		planSpinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	if m.Logger == nil {
		m.Logger = zap.NewNop()
	}
	if m.Clock == nil {
		m.Clock = engine.SystemClock{}
	}
	return m
}

// Messages.

// EvaluateMsg asks for a full eligibility evaluation; the minute tick
// deliberately does not send it.
type EvaluateMsg struct {
	Trigger engine.Trigger
}

type MinuteTickMsg struct{}

type ToastExpiredMsg struct {
	ID string
}

// BridgeActionMsg carries a notification click relayed from outside.
type BridgeActionMsg struct {
	Msg engine.ActionMessage
}

// NextTaskRequestMsg mirrors the "user asked for the next task" event.
type NextTaskRequestMsg struct{}

// TaskCompletedMsg mirrors the "task completed" event.
type TaskCompletedMsg struct {
	Count int
}

type PlanResultMsg struct {
	Task *planner.Task
	Err  error
}

func elapsedText(since time.Time, now time.Time) string {
	d := now.Sub(since)
	if d < time.Minute {
		return "just now"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	switch {
	case h == 0 && m == 1:
		return "1 minute"
	case h == 0:
		return fmt.Sprintf("%d minutes", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}
