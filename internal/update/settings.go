package update

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mindloom/nudged/internal/views"
)

func (m *Model) openSettings() {
	m.settingsOpen = true
	m.settingsCursor = 0
	m.settingInput.SetValue("")
	m.settingInput.Blur()
}

func (m *Model) closeSettings() {
	m.settingsOpen = false
	m.settingInput.Blur()
}

func (m *Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.settingInput.Focused() {
		switch msg.String() {
		case "enter":
			m.commitSetting()
			return *m, nil
		case "esc":
			m.settingInput.Blur()
			m.settingInput.SetValue("")
			return *m, nil
		default:
			var cmd tea.Cmd
			m.settingInput, cmd = m.settingInput.Update(msg)
			return *m, cmd
		}
	}

	switch msg.String() {
	case "esc", m.Keys.Settings, m.Keys.Quit:
		m.closeSettings()
	case "up", "k":
		if m.settingsCursor > 0 {
			m.settingsCursor--
		}
	case "down", "j":
		if m.settingsCursor < len(settingKeys)-1 {
			m.settingsCursor++
		}
	case "enter":
		m.settingInput.SetValue("")
		m.settingInput.Focus()
	case "1", "2", "3":
		preset := presetKeys[msg.String()]
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

// commitSetting parses the edited value and hands it to the controller. A
// value the controller rejects leaves the stored setting untouched.
func (m *Model) commitSetting() {
	raw := strings.TrimSpace(m.settingInput.Value())
	key := settingKeys[m.settingsCursor]

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		m.Status = StatusBar{Text: fmt.Sprintf("%q is not a number of minutes", raw), IsError: true}
		m.settingInput.SetValue("")
		return
	}
	if err := m.Controller.UpdateSetting(key, value); err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		m.settingInput.SetValue("")
		return
	}
	m.Status = StatusBar{Text: settingLabels[key] + " updated"}
	m.settingInput.Blur()
	m.settingInput.SetValue("")
}

func (m Model) settingsPane() string {
	s := m.Controller.State().Settings

	values := map[string]float64{
		"momentum_idle":       s.MomentumIdleMin,
		"momentum_snooze":     s.MomentumSnoozeMin,
		"checkin_min":         s.CheckinMinMin,
		"checkin_max":         s.CheckinMaxMin,
		"completion_cooldown": s.CompletionCooldownMin,
	}

	var b strings.Builder
	b.WriteString("Reminder thresholds (minutes)\n\n")
	for i, key := range settingKeys {
		b.WriteString(views.RenderSetting(settingLabels[key], values[key], i == m.settingsCursor))
		b.WriteString("\n")
	}
	if m.settingInput.Focused() {
		b.WriteString("\nNew value: " + m.settingInput.View())
	} else {
		b.WriteString("\nenter edit  1/2/3 preset  esc close")
	}
	return b.String()
}
