package tui

import "github.com/Iron-Ham/dossier/internal/research"

// StateMsg carries a new run snapshot into the program.
type StateMsg struct {
	State research.RunState
}

// StoppedMsg reports that the run's connection closed.
type StoppedMsg struct {
	Reason string
}
