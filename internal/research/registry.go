package research

import (
	"maps"
	"slices"

	"github.com/Iron-Ham/dossier/internal/errors"
)

// ValidTaskTransitions defines the allowed status changes for a task.
// pending -> running -> {completed | failed}; completed and failed are
// terminal.
var ValidTaskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending: {
		TaskRunning,
	},
	TaskRunning: {
		TaskCompleted,
		TaskFailed,
	},
	TaskCompleted: {},
	TaskFailed:    {},
}

// CanTransitionTask checks whether a task may move from one status to another.
func CanTransitionTask(from, to TaskStatus) bool {
	targets, ok := ValidTaskTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(targets, to)
}

// TaskPatch is a sparse update to one task. Nil fields are left untouched.
// ToolsUsed is unioned into the task and Thoughts are appended.
type TaskPatch struct {
	Topic         *string
	Status        *TaskStatus
	Iteration     *int
	MaxIterations *int
	CurrentAction *string
	CurrentTool   *string
	ToolsUsed     []string
	Thoughts      []ThoughtEntry
}

// Empty reports whether the patch would change nothing on an existing task.
func (p TaskPatch) Empty() bool {
	return p.Topic == nil && p.Status == nil && p.Iteration == nil &&
		p.MaxIterations == nil && p.CurrentAction == nil && p.CurrentTool == nil &&
		len(p.ToolsUsed) == 0 && len(p.Thoughts) == 0
}

func newTask(id string) TaskState {
	return TaskState{
		ID:        id,
		Status:    TaskPending,
		ToolsUsed: []string{},
		Thoughts:  []ThoughtEntry{},
	}
}

// UpsertTask applies patch to the task with id, creating it with default
// values on first reference. It returns new collections and never mutates
// tasks or order.
//
// Scalars are replaced only when present in the patch; collections grow by
// append or union. A status change outside ValidTaskTransitions or an
// iteration moving backwards is not applied and is reported as a
// *errors.TransitionError, while the rest of the patch still applies.
func UpsertTask(tasks map[string]TaskState, order []string, id string, patch TaskPatch) (map[string]TaskState, []string, error) {
	next := maps.Clone(tasks)
	if next == nil {
		next = make(map[string]TaskState, 1)
	}

	task, exists := next[id]
	if !exists {
		task = newTask(id)
		order = append(slices.Clip(order), id)
	}

	var errs []error

	// Topic is fixed once known.
	if patch.Topic != nil && task.Topic == "" {
		task.Topic = *patch.Topic
	}

	if patch.Status != nil && *patch.Status != task.Status {
		// A sparse stream can finish a task whose start was never seen.
		if task.Status == TaskPending && patch.Status.IsTerminal() {
			task.Status = TaskRunning
		}
		if CanTransitionTask(task.Status, *patch.Status) {
			task.Status = *patch.Status
		} else {
			errs = append(errs, errors.NewTransitionError(id, string(task.Status), string(*patch.Status)))
		}
	}

	if patch.Iteration != nil {
		if *patch.Iteration >= task.Iteration {
			task.Iteration = *patch.Iteration
		} else {
			errs = append(errs, errors.NewIterationError(id, task.Iteration, *patch.Iteration))
		}
	}
	if patch.MaxIterations != nil {
		task.MaxIterations = *patch.MaxIterations
	}
	if patch.CurrentAction != nil {
		task.CurrentAction = *patch.CurrentAction
	}
	if patch.CurrentTool != nil {
		task.CurrentTool = *patch.CurrentTool
	}

	for _, tool := range patch.ToolsUsed {
		if tool != "" && !slices.Contains(task.ToolsUsed, tool) {
			task.ToolsUsed = append(slices.Clip(task.ToolsUsed), tool)
		}
	}
	if len(patch.Thoughts) > 0 {
		task.Thoughts = append(slices.Clip(task.Thoughts), patch.Thoughts...)
	}

	next[id] = task
	return next, order, errors.Join(errs...)
}
