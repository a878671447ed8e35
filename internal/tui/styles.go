package tui

import "github.com/charmbracelet/lipgloss"

var (
	// TitleStyle styles the table title.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))

	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	blue   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	statusStyles = map[string]lipgloss.Style{
		StatusDownloaded: green,
		StatusInstalled:  green,
		StatusComplete:   green,
		StatusCurrent:    green,

		StatusDownloading: blue,
		StatusInstalling:  blue,
		StatusRunning:     blue,

		StatusOutdated: yellow,
		StatusSkipped:  yellow,

		StatusFailed: red,

		StatusPending: lipgloss.NewStyle().Faint(true),
	}
)

// Row statuses.
const (
	StatusPending     = "pending"
	StatusDownloading = "downloading"
	StatusDownloaded  = "downloaded"
	StatusInstalling  = "installing"
	StatusInstalled   = "installed"
	StatusRunning     = "running"
	StatusComplete    = "complete"
	StatusFailed      = "failed"
	StatusOutdated    = "outdated"
	StatusCurrent     = "current"
	StatusSkipped     = "skipped"
)

func isActive(status string) bool {
	switch status {
	case StatusDownloading, StatusInstalling, StatusRunning:
		return true
	}
	return false
}

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
