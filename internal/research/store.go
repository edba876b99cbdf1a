package research

import (
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/dossier/internal/errors"
	"github.com/Iron-Ham/dossier/internal/logging"
	"github.com/Iron-Ham/dossier/internal/wire"
)

// Store is the single live RunState slot of an application session.
//
// Readers call Snapshot and never block writers. Reset replaces the whole
// state in one atomic swap, so no reader sees a half-reset run. Apply
// serializes writers and drops events addressed to a run that is no longer
// current.
type Store struct {
	mu     sync.Mutex
	state  atomic.Pointer[RunState]
	logger *logging.Logger
}

// NewStore creates a Store holding the idle state. A nil logger disables
// logging.
func NewStore(logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Store{logger: logger}
	idle := Idle()
	s.state.Store(&idle)
	return s
}

// Snapshot returns the current state. The value must be treated as
// read-only; it shares collections with later states.
func (s *Store) Snapshot() RunState {
	return *s.state.Load()
}

// Reset replaces the current state.
func (s *Store) Reset(next RunState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Store(&next)
}

// Apply folds ev into the state of runID. It returns the resulting state
// and false when runID is not the current run, in which case nothing changes.
func (s *Store) Apply(runID string, ev wire.Event) (RunState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	if cur.RunID != runID {
		s.logger.Debug("dropping event for stale run",
			"run_id", runID,
			"current_run_id", cur.RunID,
			"kind", string(ev.Kind()))
		return *cur, false
	}

	next, err := Step(*cur, ev)
	if err != nil {
		logger := s.logger.WithRun(runID).WithStage(next.Stage.String())
		var te *errors.TransitionError
		if errors.As(err, &te) {
			logger = logger.WithTask(te.TaskID)
		}
		logger.ErrorAt(err, "rejected task update")
	}
	s.state.Store(&next)
	return next, true
}
