package engine

// Trigger names the event that caused an evaluation cycle.
type Trigger string

const (
	// TriggerStart is the forced evaluation at session start, covering
	// idle-gap recovery.
	TriggerStart Trigger = "start"
	// TriggerFocus fires when the terminal regains focus or becomes visible.
	TriggerFocus Trigger = "focus"
	// TriggerManual covers explicit re-evaluation, e.g. after a preset apply.
	TriggerManual Trigger = "manual"
)

type Kind string

const (
	KindMomentum   Kind = "momentum"
	KindCheckin    Kind = "checkin"
	KindCompletion Kind = "completion"
)

type Action string

const (
	ActionDone       Action = "done"
	ActionStillGoing Action = "still-going"
	ActionSwitch     Action = "switch"
	ActionStop       Action = "stop"
	ActionSnooze     Action = "snooze"
	ActionNextTask   Action = "next-task"
	ActionPause      Action = "pause"
)

type QuickAction struct {
	Label  string
	Action Action
}

// Presentation is one reminder ready for delivery. The dispatcher decides
// whether it becomes a system notification, a toast, or both.
type Presentation struct {
	ID      string
	Kind    Kind
	Title   string
	Body    string
	TaskID  string
	Actions []QuickAction
}

// ActionMessage is a user response to a delivered reminder. It arrives from
// the in-page handlers or, possibly much later, from the notification helper
// relaying a click made while no session was running.
type ActionMessage struct {
	Kind   Kind   `json:"type"`
	Action Action `json:"action"`
	TaskID string `json:"taskId,omitempty"`
}

// Effect tells the host what asynchronous follow-up an action requires.
// The controller never blocks on I/O itself.
type Effect int

const (
	EffectNone Effect = iota
	// EffectRequestNextTask asks the host to call the plan service and feed
	// the result back through StartTask.
	EffectRequestNextTask
	// EffectMarkDone asks the host to report the completion to the backend.
	EffectMarkDone
)
