package tui

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/dossier/internal/research"
	"github.com/Iron-Ham/dossier/internal/wire"
)

var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func runningState() research.RunState {
	s := research.NewRunState("run-1", wire.StartParams{
		Topic:         "Coral reefs",
		KnowledgeBase: "ocean",
		PlanMode:      wire.PlanQuick,
	}, t0)
	s.Stage = research.StageResearching
	s.Researching = research.Researching{TotalBlocks: 2, CompletedBlocks: 1}
	s.Tasks = map[string]research.TaskState{
		"b1": {ID: "b1", Topic: "Bleaching", Status: research.TaskCompleted},
		"b2": {ID: "b2", Topic: "Restoration", Status: research.TaskRunning, Iteration: 1, MaxIterations: 3, CurrentAction: "searching", CurrentTool: "web_search"},
	}
	s.TaskOrder = []string{"b1", "b2"}
	s.Logs = []string{"log-line-1", "log-line-2", "log-line-3"}
	return s
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel_StartsIdle(t *testing.T) {
	m := NewModel(Options{})
	if m.State().Status != research.StatusIdle {
		t.Errorf("Status = %q, want idle", m.State().Status)
	}
	if got := m.View(); got != "Loading..." {
		t.Errorf("View() before size = %q, want Loading...", got)
	}
}

func TestModel_InitCallsStart(t *testing.T) {
	var started atomic.Int32
	m := NewModel(Options{Start: func() { started.Add(1) }})

	cmd := m.Init()
	if cmd == nil {
		t.Fatal("Init() returned nil cmd")
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatalf("Init() cmd produced %T, want tea.BatchMsg", cmd())
	}
	for _, c := range batch {
		if c != nil {
			c()
		}
	}
	if got := started.Load(); got != 1 {
		t.Errorf("Start called %d times, want 1", got)
	}
}

func TestModel_QuitKeys(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
	}{
		{"q", keyRunes("q")},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sized(t, NewModel(Options{}))
			m, cmd := update(t, m, tt.key)
			if cmd == nil {
				t.Fatal("expected quit cmd")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Errorf("cmd() = %T, want tea.QuitMsg", cmd())
			}
			if m.View() != "" {
				t.Errorf("View() after quit = %q, want empty", m.View())
			}
		})
	}
}

func TestModel_StopKey(t *testing.T) {
	var stops atomic.Int32
	m := sized(t, NewModel(Options{Stop: func() { stops.Add(1) }}))

	// Idle: nothing to stop.
	_, cmd := update(t, m, keyRunes("s"))
	if cmd != nil {
		t.Fatal("stop on idle run should be a no-op")
	}

	m, _ = update(t, m, StateMsg{State: runningState()})
	_, cmd = update(t, m, keyRunes("s"))
	if cmd == nil {
		t.Fatal("expected stop cmd")
	}
	if msg := cmd(); msg != nil {
		t.Errorf("stop cmd returned %v, want nil", msg)
	}
	if got := stops.Load(); got != 1 {
		t.Errorf("Stop called %d times, want 1", got)
	}

	// Once the connection closed the key does nothing.
	m, _ = update(t, m, StoppedMsg{Reason: "stopped"})
	if _, cmd = update(t, m, keyRunes("s")); cmd != nil {
		t.Error("stop after StoppedMsg should be a no-op")
	}
}

func TestModel_StateMsgRendersTasks(t *testing.T) {
	m := sized(t, NewModel(Options{}))
	m, _ = update(t, m, StateMsg{State: runningState()})

	view := m.View()
	for _, want := range []string{
		"Coral reefs",
		"kb ocean",
		"Research 1/2",
		"Bleaching",
		"Restoration (1/3) · searching [web_search]",
		"log-line-3",
		"s stop",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q\n%s", want, view)
		}
	}
}

func TestModel_LogTail(t *testing.T) {
	m := sized(t, NewModel(Options{MaxLogLines: 2}))
	m, _ = update(t, m, StateMsg{State: runningState()})

	logs := m.logs.View()
	if strings.Contains(logs, "log-line-1") {
		t.Errorf("log pane kept a line beyond the cap:\n%s", logs)
	}
	if !strings.Contains(logs, "log-line-2") || !strings.Contains(logs, "log-line-3") {
		t.Errorf("log pane missing recent lines:\n%s", logs)
	}
}

func TestModel_CompletedShowsReport(t *testing.T) {
	s := runningState()
	s.Status = research.StatusCompleted
	s.Stage = research.StageCompleted
	s.Report = "Final report body"
	s.FinishedAt = t0.Add(time.Minute)

	m := sized(t, NewModel(Options{RenderMarkdown: false}))
	m, _ = update(t, m, StateMsg{State: s})
	m, _ = update(t, m, StoppedMsg{Reason: "terminal"})

	view := m.View()
	for _, want := range []string{"Report ready", "Final report body", "connection closed (terminal)"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q\n%s", want, view)
		}
	}
	if strings.Contains(view, "s stop") {
		t.Error("completed run should not offer stop")
	}
}

func TestModel_FailedShowsError(t *testing.T) {
	s := runningState()
	s.Status = research.StatusIdle
	s.Stage = research.StageNone
	s.Error = "connection lost: unexpected EOF"

	m := sized(t, NewModel(Options{}))
	m, _ = update(t, m, StateMsg{State: s})

	if view := m.View(); !strings.Contains(view, "Run failed: connection lost: unexpected EOF") {
		t.Errorf("View() missing error\n%s", view)
	}
}
