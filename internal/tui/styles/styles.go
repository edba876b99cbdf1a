package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple (violet-400)
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red (red-400)
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray (brighter for readability)
	SurfaceColor   = lipgloss.Color("#1F2937") // Dark surface
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray (gray-500)
	BlueColor      = lipgloss.Color("#60A5FA") // Blue

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	// Status colors for runs and tasks
	StatusRunning   = lipgloss.Color("#10B981") // Green
	StatusPending   = lipgloss.Color("#9CA3AF") // Gray
	StatusCompleted = lipgloss.Color("#A78BFA") // Purple
	StatusFailed    = lipgloss.Color("#F87171") // Red
	StatusIdle      = lipgloss.Color("#60A5FA") // Blue

	// Header
	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(BorderColor).
		MarginBottom(1).
		PaddingBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	// Stage tabs
	StageActive = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor).
			Background(PrimaryColor).
			Padding(0, 2)

	StageDone = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Padding(0, 2)

	StagePending = lipgloss.NewStyle().
			Foreground(MutedColor).
			Padding(0, 2)

	// Section titles inside the body
	SectionTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	// Task list
	TaskItem = lipgloss.NewStyle().
			Padding(0, 1)

	TaskDetail = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(4)

	// Log pane
	LogPane = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)

	// Final report
	ReportBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SecondaryColor).
			Padding(0, 1)

	// Help bar
	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(SecondaryColor)

	// Error message
	ErrorMsg = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	// Success message
	SuccessMsg = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)
)

// Layout constants used to size the log viewport.
const (
	// HeaderLines is text + PaddingBottom + BorderBottom + MarginBottom.
	HeaderLines = 4
	// HelpBarLines is MarginTop + text.
	HelpBarLines = 2
	// LogPaneChrome is the top and bottom border of LogPane.
	LogPaneChrome = 2
)

// StatusColor returns the color for a run or task status
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "running":
		return StatusRunning
	case "pending":
		return StatusPending
	case "completed":
		return StatusCompleted
	case "failed":
		return StatusFailed
	case "idle":
		return StatusIdle
	default:
		return MutedColor
	}
}

// StatusIcon returns an icon for a run or task status
func StatusIcon(status string) string {
	switch status {
	case "running":
		return "●"
	case "pending":
		return "○"
	case "completed":
		return "✓"
	case "failed":
		return "✗"
	case "idle":
		return "■"
	default:
		return "●"
	}
}
