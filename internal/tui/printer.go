package tui

import (
	"fmt"
	"io"
	"sync"

	"github.com/Iron-Ham/dossier/internal/event"
	"github.com/Iron-Ham/dossier/internal/research"
)

// Printer writes a run as plain incremental lines, for pipes and dumb
// terminals. It is safe for concurrent use.
type Printer struct {
	mu sync.Mutex
	w  io.Writer

	runID    string
	logs     int
	stage    research.Stage
	tasks    map[string]research.TaskStatus
	reported bool
	failed   bool
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, tasks: map[string]research.TaskStatus{}}
}

// Attach prints every state published on bus until the returned func is
// called.
func (p *Printer) Attach(bus *event.Bus) func() {
	id := bus.Subscribe(event.TopicStateChanged, func(ev event.Event) {
		if e, ok := ev.(event.StateChangedEvent); ok {
			p.Print(e.State)
		}
	})
	return func() { bus.Unsubscribe(id) }
}

// Print writes what changed since the previous state.
func (p *Printer) Print(s research.RunState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s.RunID != p.runID {
		p.runID = s.RunID
		p.logs = 0
		p.stage = research.StageNone
		p.tasks = map[string]research.TaskStatus{}
		p.reported = false
		p.failed = false
		if s.RunID != "" {
			p.printf("== %s\n", runTitle(s))
		}
	}

	// A new run starts with empty logs; anything shorter is a reset.
	if len(s.Logs) < p.logs {
		p.logs = 0
	}
	for _, line := range s.Logs[p.logs:] {
		p.printf("%s\n", line)
	}
	p.logs = len(s.Logs)

	if s.Stage != p.stage && s.Stage != research.StageNone {
		p.printf("-- %s\n", s.Stage)
	}
	p.stage = s.Stage

	for _, t := range s.OrderedTasks() {
		if prev, ok := p.tasks[t.ID]; ok && prev == t.Status {
			continue
		}
		p.tasks[t.ID] = t.Status
		p.printf("   %s\n", TaskLine(t))
	}

	if s.Status == research.StatusCompleted && !p.reported {
		p.reported = true
		if s.Report != "" {
			p.printf("\n%s\n", s.Report)
		}
	}
	if s.Status == research.StatusIdle && s.Error != "" && !p.failed {
		p.failed = true
		p.printf("error: %s\n", s.Error)
	}
}

func (p *Printer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

func runTitle(s research.RunState) string {
	title := s.Topic
	if title == "" {
		title = s.RunID
	}
	if s.PlanMode != "" {
		title = fmt.Sprintf("%s (%s)", title, s.PlanMode)
	}
	return title
}
