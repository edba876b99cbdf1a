package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/dossier/internal/event"
)

// App wraps the Bubbletea program
type App struct {
	program *tea.Program
	bus     *event.Bus
	subs    []string
}

// New creates a TUI application that follows the runs published on bus.
func New(model Model, bus *event.Bus, opts ...tea.ProgramOption) *App {
	a := &App{
		program: tea.NewProgram(model, opts...),
		bus:     bus,
	}
	a.subs = append(a.subs,
		bus.Subscribe(event.TopicStateChanged, func(ev event.Event) {
			if e, ok := ev.(event.StateChangedEvent); ok {
				a.program.Send(StateMsg{State: e.State})
			}
		}),
		bus.Subscribe(event.TopicRunStopped, func(ev event.Event) {
			if e, ok := ev.(event.RunStoppedEvent); ok {
				a.program.Send(StoppedMsg{Reason: e.Reason})
			}
		}),
	)
	return a
}

// Run starts the program and blocks until it quits. Bus subscriptions are
// removed on return.
func (a *App) Run() (Model, error) {
	defer func() {
		for _, id := range a.subs {
			a.bus.Unsubscribe(id)
		}
	}()
	final, err := a.program.Run()
	m, _ := final.(Model)
	return m, err
}

// Quit asks the program to exit. It is safe to call after Run returned.
func (a *App) Quit() {
	a.program.Quit()
}
