package event

import (
	"time"

	"github.com/Iron-Ham/dossier/internal/research"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns the topic, by convention "category.action".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Topics published on the bus.
const (
	TopicRunStarted     = "run.started"
	TopicRunStopped     = "run.stopped"
	TopicStateChanged   = "state.changed"
	TopicDecodeFailed   = "decode.failed"
	TopicSummaryChanged = "summary.changed"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Run Lifecycle Events
// -----------------------------------------------------------------------------

// RunStartedEvent is emitted once the start message has been sent.
type RunStartedEvent struct {
	baseEvent
	RunID string
	URL   string
	Topic string
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(runID, url, topic string) RunStartedEvent {
	return RunStartedEvent{
		baseEvent: newBaseEvent(TopicRunStarted),
		RunID:     runID,
		URL:       url,
		Topic:     topic,
	}
}

// RunStoppedEvent is emitted when the reader of a run exits.
type RunStoppedEvent struct {
	baseEvent
	RunID string
	// Reason is "terminal", "stopped" or "transport".
	Reason string
}

// NewRunStoppedEvent creates a RunStoppedEvent.
func NewRunStoppedEvent(runID, reason string) RunStoppedEvent {
	return RunStoppedEvent{
		baseEvent: newBaseEvent(TopicRunStopped),
		RunID:     runID,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// State Events
// -----------------------------------------------------------------------------

// StateChangedEvent carries the state after one event was applied. State is
// a snapshot and must not be modified.
type StateChangedEvent struct {
	baseEvent
	State research.RunState
}

// NewStateChangedEvent creates a StateChangedEvent.
func NewStateChangedEvent(state research.RunState) StateChangedEvent {
	return StateChangedEvent{
		baseEvent: newBaseEvent(TopicStateChanged),
		State:     state,
	}
}

// DecodeFailedEvent reports a dropped inbound frame.
type DecodeFailedEvent struct {
	baseEvent
	RunID string
	Err   error
}

// NewDecodeFailedEvent creates a DecodeFailedEvent.
func NewDecodeFailedEvent(runID string, err error) DecodeFailedEvent {
	return DecodeFailedEvent{
		baseEvent: newBaseEvent(TopicDecodeFailed),
		RunID:     runID,
		Err:       err,
	}
}

// SummaryChangedEvent carries the narrow run summary consumed by parts of
// the application that do not need per-task detail.
type SummaryChangedEvent struct {
	baseEvent
	RunID  string
	Status research.Status
	Topic  string
	Report string
}

// NewSummaryChangedEvent creates a SummaryChangedEvent.
func NewSummaryChangedEvent(runID string, status research.Status, topic, report string) SummaryChangedEvent {
	return SummaryChangedEvent{
		baseEvent: newBaseEvent(TopicSummaryChanged),
		RunID:     runID,
		Status:    status,
		Topic:     topic,
		Report:    report,
	}
}
