package settings

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var ErrUnknownPreset = errors.New("settings: unknown preset")

// Defaults, in minutes.
const (
	DefaultMomentumIdleMin       = 90
	DefaultMomentumSnoozeMin     = 30
	DefaultCheckinMinMin         = 20
	DefaultCheckinMaxMin         = 40
	DefaultCompletionCooldownMin = 5
)

// Settings holds the five timing thresholds driving reminder decisions.
// All values are minutes. A stored value that is missing, non-finite, or
// negative is ignored by the accessors in favor of the compiled-in default.
type Settings struct {
	MomentumIdleMin       float64 `json:"momentumIdleMin" yaml:"momentum_idle_min"`
	MomentumSnoozeMin     float64 `json:"momentumSnoozeMin" yaml:"momentum_snooze_min"`
	CheckinMinMin         float64 `json:"checkinMinMin" yaml:"checkin_min_min"`
	CheckinMaxMin         float64 `json:"checkinMaxMin" yaml:"checkin_max_min"`
	CompletionCooldownMin float64 `json:"completionCooldownMin" yaml:"completion_cooldown_min"`
}

func Defaults() Settings {
	return Settings{
		MomentumIdleMin:       DefaultMomentumIdleMin,
		MomentumSnoozeMin:     DefaultMomentumSnoozeMin,
		CheckinMinMin:         DefaultCheckinMinMin,
		CheckinMaxMin:         DefaultCheckinMaxMin,
		CompletionCooldownMin: DefaultCompletionCooldownMin,
	}
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func pick(v, fallback float64) float64 {
	if valid(v) {
		return v
	}
	return fallback
}

func minutes(v float64) time.Duration {
	return time.Duration(v * float64(time.Minute))
}

// MomentumIdle is the idle window after which a momentum nudge becomes
// eligible, and also the anti-spam window between momentum prompts.
func (s Settings) MomentumIdle() time.Duration {
	return minutes(pick(s.MomentumIdleMin, DefaultMomentumIdleMin))
}

func (s Settings) MomentumSnooze() time.Duration {
	return minutes(pick(s.MomentumSnoozeMin, DefaultMomentumSnoozeMin))
}

// CheckinRange returns the bounds of the random check-in delay. A stored
// max below min collapses to a degenerate range at min rather than erroring.
func (s Settings) CheckinRange() (time.Duration, time.Duration) {
	lo := pick(s.CheckinMinMin, DefaultCheckinMinMin)
	hi := pick(s.CheckinMaxMin, DefaultCheckinMaxMin)
	if hi < lo {
		hi = lo
	}
	return minutes(lo), minutes(hi)
}

// CheckinMin is the minimum gap between notifications for the same active
// task, guarding against double-fire from overlapping triggers.
func (s Settings) CheckinMin() time.Duration {
	lo, _ := s.CheckinRange()
	return lo
}

func (s Settings) CompletionCooldown() time.Duration {
	return minutes(pick(s.CompletionCooldownMin, DefaultCompletionCooldownMin))
}

// Normalize replaces every invalid field with its default so the persisted
// snapshot never carries a value the accessors would reject.
func (s Settings) Normalize() Settings {
	d := Defaults()
	return Settings{
		MomentumIdleMin:       pick(s.MomentumIdleMin, d.MomentumIdleMin),
		MomentumSnoozeMin:     pick(s.MomentumSnoozeMin, d.MomentumSnoozeMin),
		CheckinMinMin:         pick(s.CheckinMinMin, d.CheckinMinMin),
		CheckinMaxMin:         pick(s.CheckinMaxMin, d.CheckinMaxMin),
		CompletionCooldownMin: pick(s.CompletionCooldownMin, d.CompletionCooldownMin),
	}
}

// Patch is a partial settings update; nil fields are left untouched and
// invalid values are rejected field by field, keeping the last valid value.
type Patch struct {
	MomentumIdleMin       *float64
	MomentumSnoozeMin     *float64
	CheckinMinMin         *float64
	CheckinMaxMin         *float64
	CompletionCooldownMin *float64
}

func (p Patch) Apply(s Settings) Settings {
	apply := func(dst *float64, src *float64) {
		if src != nil && valid(*src) {
			*dst = *src
		}
	}
	apply(&s.MomentumIdleMin, p.MomentumIdleMin)
	apply(&s.MomentumSnoozeMin, p.MomentumSnoozeMin)
	apply(&s.CheckinMinMin, p.CheckinMinMin)
	apply(&s.CheckinMaxMin, p.CheckinMaxMin)
	apply(&s.CompletionCooldownMin, p.CompletionCooldownMin)
	return s
}

// BuiltinPresets are the compiled-in full threshold sets. "focused" matches
// the defaults; "sprint" tightens every window for short-burst days.
func BuiltinPresets() map[string]Settings {
	return map[string]Settings{
		"gentle": {
			MomentumIdleMin:       120,
			MomentumSnoozeMin:     60,
			CheckinMinMin:         30,
			CheckinMaxMin:         60,
			CompletionCooldownMin: 10,
		},
		"focused": Defaults(),
		"sprint": {
			MomentumIdleMin:       15,
			MomentumSnoozeMin:     10,
			CheckinMinMin:         10,
			CheckinMaxMin:         20,
			CompletionCooldownMin: 3,
		},
	}
}

// Presets unions user-defined presets over the builtins; user definitions
// win on a name clash.
func Presets(user map[string]Settings) map[string]Settings {
	out := BuiltinPresets()
	for name, s := range user {
		out[name] = s.Normalize()
	}
	return out
}

func Preset(name string, user map[string]Settings) (Settings, error) {
	all := Presets(user)
	s, ok := all[name]
	if !ok {
		names := make([]string, 0, len(all))
		for n := range all {
			names = append(names, n)
		}
		sort.Strings(names)
		return Settings{}, fmt.Errorf("%w: %q (have %v)", ErrUnknownPreset, name, names)
	}
	return s, nil
}
