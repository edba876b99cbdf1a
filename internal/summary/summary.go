// Package summary keeps the narrow view of the current run that the rest of
// the application shares: which run, whether it is going, what it is about,
// and the final report.
package summary

import (
	"sync"

	"github.com/Iron-Ham/dossier/internal/event"
	"github.com/Iron-Ham/dossier/internal/logging"
	"github.com/Iron-Ham/dossier/internal/research"
)

// Summary is derived from a research.RunState.
type Summary struct {
	RunID  string          `json:"run_id" yaml:"run_id"`
	Status research.Status `json:"status" yaml:"status"`
	Topic  string          `json:"topic" yaml:"topic"`
	Report string          `json:"report,omitempty" yaml:"report,omitempty"`
}

// FromState projects s onto a Summary.
func FromState(s research.RunState) Summary {
	return Summary{
		RunID:  s.RunID,
		Status: s.Status,
		Topic:  s.Topic,
		Report: s.Report,
	}
}

// Bridge listens for state.changed and republishes summary.changed when
// the summary actually differs from the last one seen.
type Bridge struct {
	bus    *event.Bus
	logger *logging.Logger
	subID  string

	// pubMu keeps summary.changed in the order states arrived.
	pubMu sync.Mutex

	mu      sync.RWMutex
	current Summary
}

// NewBridge subscribes to bus. The initial summary is the idle one.
func NewBridge(bus *event.Bus, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.NopLogger()
	}
	b := &Bridge{
		bus:     bus,
		logger:  logger,
		current: FromState(research.Idle()),
	}
	b.subID = bus.Subscribe(event.TopicStateChanged, b.handleStateChanged)
	return b
}

func (b *Bridge) handleStateChanged(e event.Event) {
	ev, ok := e.(event.StateChangedEvent)
	if !ok {
		return
	}
	next := FromState(ev.State)

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.Lock()
	if next == b.current {
		b.mu.Unlock()
		return
	}
	prev := b.current
	b.current = next
	b.mu.Unlock()

	if prev.Status != next.Status || prev.RunID != next.RunID {
		b.logger.Debug("summary changed",
			"run_id", next.RunID,
			"status", string(next.Status),
			"previous_status", string(prev.Status))
	}
	b.bus.Publish(event.NewSummaryChangedEvent(next.RunID, next.Status, next.Topic, next.Report))
}

// Snapshot returns the latest summary.
func (b *Bridge) Snapshot() Summary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Close stops listening. It is safe to call more than once.
func (b *Bridge) Close() {
	if b.subID == "" {
		return
	}
	b.bus.Unsubscribe(b.subID)
	b.subID = ""
}
