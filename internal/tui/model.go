// Package tui renders a live research run in the terminal.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/dossier/internal/research"
	"github.com/Iron-Ham/dossier/internal/tui/styles"
	"github.com/Iron-Ham/dossier/internal/util"
)

// Options configures a Model.
type Options struct {
	// MaxLogLines caps the log pane; zero keeps every line.
	MaxLogLines int
	// RenderMarkdown renders the final report with glamour.
	RenderMarkdown bool
	// Start opens the run. It is called once from Init, off the update loop.
	Start func()
	// Stop closes the run without quitting. It is called off the update
	// loop because it waits for the reader to exit.
	Stop func()
}

// Model is the bubbletea model of one run.
type Model struct {
	opts Options

	state   research.RunState
	spinner spinner.Model
	logs    viewport.Model

	// report is the rendered form of state.Report.
	report string

	width      int
	height     int
	ready      bool
	stopReason string
	quitting   bool
}

// NewModel returns a model showing the idle state.
func NewModel(opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Primary

	return Model{
		opts:    opts,
		state:   research.Idle(),
		spinner: s,
		logs:    viewport.New(80, 5),
	}
}

// State returns the last snapshot the model received.
func (m Model) State() research.RunState {
	return m.state
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if start := m.opts.Start; start != nil {
		cmds = append(cmds, func() tea.Msg {
			start()
			return nil
		})
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeypress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		m.renderReport()
		return m, nil

	case StateMsg:
		m.state = msg.State
		m.refreshLogs()
		m.renderReport()
		return m, nil

	case StoppedMsg:
		m.stopReason = msg.Reason
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "s":
		if m.stopReason != "" || m.state.Status != research.StatusRunning || m.opts.Stop == nil {
			return m, nil
		}
		stop := m.opts.Stop
		return m, func() tea.Msg {
			stop()
			return nil
		}
	case "G", "end":
		m.logs.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.logs, cmd = m.logs.Update(msg)
	return m, cmd
}

// logHeight is the number of visible log lines for the current terminal.
func (m Model) logHeight() int {
	return max(3, m.height/4)
}

func (m *Model) resize() {
	m.logs.Width = max(10, m.width-4)
	m.logs.Height = m.logHeight()
	m.refreshLogs()
}

func (m *Model) refreshLogs() {
	follow := m.logs.AtBottom()
	lines := util.LastLines(m.state.Logs, m.opts.MaxLogLines)
	m.logs.SetContent(strings.Join(lines, "\n"))
	if follow {
		m.logs.GotoBottom()
	}
}

func (m *Model) renderReport() {
	if m.state.Report == "" {
		m.report = ""
		return
	}
	width := max(20, m.width-6)
	if m.opts.RenderMarkdown {
		m.report = RenderMarkdown(m.state.Report, width)
	} else {
		m.report = m.state.Report
	}
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	header := renderHeader(m.state, m.spinner.View(), m.width)
	stages := renderStages(m.state.Stage)
	logs := styles.LogPane.Width(max(10, m.width-2)).Render(m.logs.View())
	help := m.renderHelp()

	bodyHeight := m.height - styles.HeaderLines - 2 - (m.logHeight() + styles.LogPaneChrome) - styles.HelpBarLines
	body := renderBody(m.state, func(string) string { return m.report })
	body = lipgloss.NewStyle().MaxHeight(max(1, bodyHeight)).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, header, stages, "", body, logs, help)
}

func (m Model) renderHelp() string {
	key := func(k, desc string) string {
		return styles.HelpKey.Render(k) + " " + desc
	}
	parts := []string{key("q", "quit")}
	if m.state.Status == research.StatusRunning && m.stopReason == "" {
		parts = append(parts, key("s", "stop"))
	}
	parts = append(parts, key("↑/↓", "scroll logs"), key("G", "follow"))
	if m.stopReason != "" {
		parts = append(parts, fmt.Sprintf("connection closed (%s)", m.stopReason))
	}
	return styles.HelpBar.Render(strings.Join(parts, "  "))
}
