package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

type AppData struct {
	Header       string
	TaskPane     string
	ToastPane    string
	SettingsPane string
	StatusLine   string
	StatusError  bool
	Footer       string
	HelpOverlay  string
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	toastStyle  = lipgloss.NewStyle().Border(lipgloss.ThickBorder()).Padding(0, 1).Foreground(lipgloss.Color("11"))
	stickyStyle = lipgloss.NewStyle().Border(lipgloss.ThickBorder()).Padding(0, 1).Foreground(lipgloss.Color("13"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	actionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

func RenderApp(data AppData) string {
	if data.HelpOverlay != "" {
		return data.HelpOverlay
	}

	row := panelStyle.Width(58).Render(data.TaskPane)
	if data.SettingsPane != "" {
		row = lipgloss.JoinHorizontal(lipgloss.Top, row, panelStyle.Width(44).Render(data.SettingsPane))
	}

	status := statusStyle.Render(data.StatusLine)
	if data.StatusError {
		status = errorStyle.Render(data.StatusLine)
	}

	lines := []string{
		headerStyle.Render(data.Header),
		row,
	}
	if data.ToastPane != "" {
		lines = append(lines, data.ToastPane)
	}
	lines = append(lines, status)
	if data.Footer != "" {
		lines = append(lines, footerStyle.Render(data.Footer))
	}
	return strings.Join(lines, "\n")
}

// RenderToast renders an inline reminder. Sticky toasts carry a dismiss hint
// instead of action keys.
func RenderToast(title, body string, actions []string, sticky bool) string {
	var b strings.Builder
	b.WriteString(title)
	if body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}
	if len(actions) > 0 {
		b.WriteString("\n")
		b.WriteString(actionStyle.Render(strings.Join(actions, "  ")))
	} else if sticky {
		b.WriteString("\n")
		b.WriteString(actionStyle.Render("[esc] dismiss"))
	}
	if sticky {
		return stickyStyle.Width(58).Render(b.String())
	}
	return toastStyle.Width(58).Render(b.String())
}

func RenderMarkdown(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	out, err := glamour.Render(md, "dark")
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}

func RenderSetting(label string, minutes float64, selected bool) string {
	line := fmt.Sprintf("%-20s %6.0f min", label, minutes)
	if selected {
		return headerStyle.Render("> " + line)
	}
	return "  " + line
}
