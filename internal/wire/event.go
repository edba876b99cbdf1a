// Package wire defines the event envelopes streamed by the research service
// and the outbound start message that opens a run.
//
// Inbound frames are decoded into a closed set of event records. Frames whose
// type is not recognized are still accepted and surface as UnknownEvent so
// that new server-side event kinds pass through as no-ops instead of
// failing the stream.
package wire

import "time"

// Kind discriminates the inbound event union.
type Kind string

// Event kinds understood by the reducer.
const (
	KindProgress Kind = "progress"
	KindLog      Kind = "log"
	KindResult   Kind = "result"
	KindError    Kind = "error"

	// KindConnected is never sent by the service. The connection manager
	// synthesizes it when the socket opens.
	KindConnected Kind = "connected"
)

// Event is one decoded inbound envelope.
type Event interface {
	Kind() Kind
	// At is the time the event was produced, taken from the envelope's
	// timestamp when present and otherwise from the decoder clock.
	At() time.Time
}

// Terminal reports whether ev ends a run.
func Terminal(ev Event) bool {
	switch ev.Kind() {
	case KindResult, KindError:
		return true
	default:
		return false
	}
}

// Envelope holds the fields shared by every event.
type Envelope struct {
	Time time.Time
}

// At returns the event time.
func (e Envelope) At() time.Time { return e.Time }

// SubTopic is one entry of the planning preview.
type SubTopic struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ProgressEvent carries stage transitions and per-task telemetry. Events are
// sparse: every optional field is a pointer so that an absent field can be
// told apart from an explicit zero.
type ProgressEvent struct {
	Envelope

	// Status is the fine-grained status tag, e.g. "tool_calling".
	Status string
	// Stage is the resolved pipeline stage, or "" when the event does not
	// declare one.
	Stage string
	// TaskID is the block id when the event is task-scoped.
	TaskID string

	SubTopic      *string
	Iteration     *int
	MaxIterations *int
	CurrentAction *string
	CurrentTool   *string
	ToolType      *string
	Query         *string
	Thought       *string
	Error         *string

	OriginalTopic  *string
	OptimizedTopic *string
	SubTopics      []SubTopic
	ActiveTaskIDs  []string

	TotalBlocks     *int
	CompletedBlocks *int
	CurrentBlock    *int

	SectionTitle  *string
	SectionIndex  *int
	TotalSections *int
	WordCount     *int
	Outline       []string

	// Raw holds the full decoded envelope.
	Raw map[string]any
}

func (ProgressEvent) Kind() Kind { return KindProgress }

// LogEvent is one free-text diagnostic line.
type LogEvent struct {
	Envelope
	Content string
}

func (LogEvent) Kind() Kind { return KindLog }

// NewLogEvent builds a log event outside the decoder, e.g. for a
// cancellation note.
func NewLogEvent(content string, at time.Time) LogEvent {
	return LogEvent{Envelope: Envelope{Time: at}, Content: content}
}

// ResultEvent is the terminal success event carrying the final report.
type ResultEvent struct {
	Envelope
	Report     string
	WordCount  *int
	Sections   *int
	Statistics map[string]any
}

func (ResultEvent) Kind() Kind { return KindResult }

// ErrorEvent is a terminal failure. Synthetic is set when the connection
// manager produced it from a transport condition rather than the service.
type ErrorEvent struct {
	Envelope
	Message   string
	Synthetic bool
}

func (ErrorEvent) Kind() Kind { return KindError }

// NewErrorEvent builds a synthetic error event.
func NewErrorEvent(message string, at time.Time) ErrorEvent {
	return ErrorEvent{Envelope: Envelope{Time: at}, Message: message, Synthetic: true}
}

// ConnectedEvent marks the socket opening.
type ConnectedEvent struct {
	Envelope
	URL string
}

func (ConnectedEvent) Kind() Kind { return KindConnected }

// NewConnectedEvent builds the event applied when a connection opens.
func NewConnectedEvent(url string, at time.Time) ConnectedEvent {
	return ConnectedEvent{Envelope: Envelope{Time: at}, URL: url}
}

// UnknownEvent is a well-formed envelope of an unrecognized type.
type UnknownEvent struct {
	Envelope
	Type string
	Raw  map[string]any
}

func (e UnknownEvent) Kind() Kind { return Kind(e.Type) }
