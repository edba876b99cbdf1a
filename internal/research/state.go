// Package research holds the state of one research run and the pure reducer
// that folds decoded wire events into it.
//
// A RunState is treated as an immutable value. Reduce never mutates its
// input; collections it touches are copied first, so a snapshot handed to a
// renderer stays valid while later events are applied.
package research

import (
	"slices"
	"time"

	"github.com/Iron-Ham/dossier/internal/wire"
)

// Status is the coarse lifecycle flag of a run.
type Status string

// Run statuses.
const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// TaskStatus is the execution state of one task.
type TaskStatus string

// Task statuses. The only allowed path is pending, running, then completed
// or failed.
const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// IsTerminal returns true for completed and failed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// ThoughtType classifies an audit trail entry.
type ThoughtType string

// Thought types.
const (
	ThoughtPlan        ThoughtType = "plan"
	ThoughtToolCall    ThoughtType = "tool_call"
	ThoughtSufficiency ThoughtType = "sufficiency"
	ThoughtNote        ThoughtType = "note"
	ThoughtError       ThoughtType = "error"
)

// ThoughtEntry is one item of a task's audit trail.
type ThoughtEntry struct {
	Type    ThoughtType `json:"type" yaml:"type"`
	Content string      `json:"content" yaml:"content"`
	At      time.Time   `json:"timestamp" yaml:"timestamp"`
}

// TaskState is the execution detail of one sub-topic.
type TaskState struct {
	ID            string         `json:"id" yaml:"id"`
	Topic         string         `json:"topic" yaml:"topic"`
	Status        TaskStatus     `json:"status" yaml:"status"`
	Iteration     int            `json:"iteration" yaml:"iteration"`
	MaxIterations int            `json:"max_iterations" yaml:"max_iterations"`
	CurrentAction string         `json:"current_action,omitempty" yaml:"current_action,omitempty"`
	CurrentTool   string         `json:"current_tool,omitempty" yaml:"current_tool,omitempty"`
	ToolsUsed     []string       `json:"tools_used" yaml:"tools_used"`
	Thoughts      []ThoughtEntry `json:"thoughts" yaml:"thoughts"`
}

// UsedTool reports whether name is in ToolsUsed.
func (t TaskState) UsedTool(name string) bool {
	return slices.Contains(t.ToolsUsed, name)
}

// Planning holds the artifacts of the planning stage.
type Planning struct {
	OriginalTopic  string          `json:"original_topic,omitempty" yaml:"original_topic,omitempty"`
	OptimizedTopic string          `json:"optimized_topic,omitempty" yaml:"optimized_topic,omitempty"`
	SubTopics      []wire.SubTopic `json:"sub_topics,omitempty" yaml:"sub_topics,omitempty"`
}

// Researching holds the aggregate counters of the researching stage.
type Researching struct {
	TotalBlocks     int `json:"total_blocks" yaml:"total_blocks"`
	CompletedBlocks int `json:"completed_blocks" yaml:"completed_blocks"`
	CurrentBlock    int `json:"current_block" yaml:"current_block"`
}

// Reporting holds the progress of the reporting stage.
type Reporting struct {
	CurrentSectionTitle string   `json:"current_section_title,omitempty" yaml:"current_section_title,omitempty"`
	SectionIndex        int      `json:"section_index" yaml:"section_index"`
	TotalSections       int      `json:"total_sections" yaml:"total_sections"`
	WordCount           int      `json:"word_count" yaml:"word_count"`
	Outline             []string `json:"outline,omitempty" yaml:"outline,omitempty"`
}

// RunState is the full renderable state of one run.
type RunState struct {
	RunID         string        `json:"run_id" yaml:"run_id"`
	Status        Status        `json:"status" yaml:"status"`
	Stage         Stage         `json:"stage" yaml:"stage"`
	Topic         string        `json:"topic" yaml:"topic"`
	KnowledgeBase string        `json:"knowledge_base" yaml:"knowledge_base"`
	PlanMode      wire.PlanMode `json:"plan_mode" yaml:"plan_mode"`
	Report        string        `json:"report,omitempty" yaml:"report,omitempty"`
	Logs          []string      `json:"logs" yaml:"logs"`

	Planning    Planning    `json:"planning" yaml:"planning"`
	Researching Researching `json:"researching" yaml:"researching"`
	Reporting   Reporting   `json:"reporting" yaml:"reporting"`

	Tasks map[string]TaskState `json:"tasks" yaml:"tasks"`
	// TaskOrder lists task ids in order of first reference.
	TaskOrder []string `json:"task_order" yaml:"task_order"`
	// ActiveTaskIDs is advisory: absence does not mean a task finished.
	ActiveTaskIDs []string `json:"active_task_ids" yaml:"active_task_ids"`

	// Error is the message of the error event that ended the run, if any.
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero" yaml:"finished_at,omitempty"`
}

// Idle returns the state at application start, before any run.
func Idle() RunState {
	return RunState{
		Status: StatusIdle,
		Stage:  StageNone,
		Tasks:  map[string]TaskState{},
	}
}

// NewRunState returns a fresh state for a run that is about to start.
func NewRunState(runID string, params wire.StartParams, startedAt time.Time) RunState {
	s := Idle()
	s.RunID = runID
	s.Status = StatusRunning
	s.Topic = params.Topic
	s.KnowledgeBase = params.KnowledgeBase
	s.PlanMode = params.PlanMode
	s.StartedAt = startedAt
	return s
}

// Task returns the task with id and whether it exists.
func (s RunState) Task(id string) (TaskState, bool) {
	t, ok := s.Tasks[id]
	return t, ok
}

// OrderedTasks returns tasks in order of first reference.
func (s RunState) OrderedTasks() []TaskState {
	out := make([]TaskState, 0, len(s.TaskOrder))
	for _, id := range s.TaskOrder {
		if t, ok := s.Tasks[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// IsActive reports whether id is currently flagged in flight.
func (s RunState) IsActive(id string) bool {
	return slices.Contains(s.ActiveTaskIDs, id)
}

// TaskCounts tallies tasks by status.
func (s RunState) TaskCounts() map[TaskStatus]int {
	counts := make(map[TaskStatus]int, 4)
	for _, t := range s.Tasks {
		counts[t.Status]++
	}
	return counts
}

// Finished reports whether the run reached a terminal state.
func (s RunState) Finished() bool {
	return !s.FinishedAt.IsZero()
}
