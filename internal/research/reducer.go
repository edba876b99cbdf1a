package research

import (
	"fmt"
	"slices"

	"github.com/Iron-Ham/dossier/internal/wire"
)

// Reduce folds one event into s and returns the new state. It is pure and
// total: unknown events return s unchanged and rejected task transitions are
// dropped silently. Use Step to observe rejections.
func Reduce(s RunState, ev wire.Event) RunState {
	next, _ := Step(s, ev)
	return next
}

// Fold applies events in order starting from s.
func Fold(s RunState, events []wire.Event) RunState {
	for _, ev := range events {
		s = Reduce(s, ev)
	}
	return s
}

// Step is Reduce that also reports task transitions it refused to apply.
// The returned state is the same whether or not err is nil.
func Step(s RunState, ev wire.Event) (RunState, error) {
	switch e := ev.(type) {
	case wire.ProgressEvent:
		return reduceProgress(s, e)
	case wire.LogEvent:
		return appendLog(s, e.Content), nil
	case wire.ResultEvent:
		return reduceResult(s, e), nil
	case wire.ErrorEvent:
		return reduceError(s, e), nil
	case wire.ConnectedEvent:
		return appendLog(s, "Connected to "+e.URL), nil
	default:
		return s, nil
	}
}

func appendLog(s RunState, line string) RunState {
	s.Logs = append(slices.Clip(s.Logs), line)
	return s
}

// emptyReportNote is logged when a result arrives without report text.
const emptyReportNote = "Result received without a report"

func reduceResult(s RunState, e wire.ResultEvent) RunState {
	if e.Report == "" {
		s = appendLog(s, emptyReportNote)
	}
	s.Report = e.Report
	s.Stage = StageCompleted
	s.Status = StatusCompleted
	if e.WordCount != nil {
		s.Reporting.WordCount = *e.WordCount
	}
	if e.Sections != nil {
		s.Reporting.TotalSections = *e.Sections
	}
	s.ActiveTaskIDs = nil
	s.FinishedAt = e.At()
	return s
}

func reduceError(s RunState, e wire.ErrorEvent) RunState {
	s = appendLog(s, "Error: "+e.Message)
	if s.Stage == StageCompleted {
		// The report is final; a late error is only recorded.
		return s
	}
	s.Stage = StageNone
	s.Status = StatusIdle
	s.Error = e.Message
	s.FinishedAt = e.At()
	return s
}

func reduceProgress(s RunState, e wire.ProgressEvent) (RunState, error) {
	if stage, ok := ParseStage(e.Stage); ok && !s.Finished() {
		s.Stage, _ = AdvanceStage(s.Stage, stage)
	}

	if e.OriginalTopic != nil {
		s.Planning.OriginalTopic = *e.OriginalTopic
	}
	if e.OptimizedTopic != nil {
		s.Planning.OptimizedTopic = *e.OptimizedTopic
	}
	if e.SubTopics != nil {
		s.Planning.SubTopics = slices.Clone(e.SubTopics)
	}

	setInt(&s.Researching.TotalBlocks, e.TotalBlocks)
	setInt(&s.Researching.CompletedBlocks, e.CompletedBlocks)
	setInt(&s.Researching.CurrentBlock, e.CurrentBlock)

	if e.SectionTitle != nil {
		s.Reporting.CurrentSectionTitle = *e.SectionTitle
	}
	setInt(&s.Reporting.SectionIndex, e.SectionIndex)
	setInt(&s.Reporting.TotalSections, e.TotalSections)
	setInt(&s.Reporting.WordCount, e.WordCount)
	if e.Outline != nil {
		s.Reporting.Outline = slices.Clone(e.Outline)
	}

	if e.ActiveTaskIDs != nil {
		s.ActiveTaskIDs = dedupe(e.ActiveTaskIDs)
	}

	if e.TaskID == "" {
		return s, nil
	}

	patch := taskPatch(s.Tasks[e.TaskID], e)
	if _, exists := s.Tasks[e.TaskID]; exists && patch.Empty() {
		return s, nil
	}
	var err error
	s.Tasks, s.TaskOrder, err = UpsertTask(s.Tasks, s.TaskOrder, e.TaskID, patch)
	return s, err
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// workingStatuses imply a task is running once it reports them.
var workingStatuses = map[string]bool{
	wire.StatusIterationStarted:    true,
	wire.StatusCheckingSufficiency: true,
	wire.StatusKnowledgeSufficient: true,
	wire.StatusGeneratingQuery:     true,
	wire.StatusToolCalling:         true,
	wire.StatusToolCompleted:       true,
	wire.StatusNoteGenerated:       true,
}

// taskPatch maps the fine-grained status of a task-scoped progress event to
// a sparse task update.
func taskPatch(current TaskState, e wire.ProgressEvent) TaskPatch {
	p := TaskPatch{
		Topic:         e.SubTopic,
		Iteration:     e.Iteration,
		MaxIterations: e.MaxIterations,
		CurrentAction: e.CurrentAction,
		CurrentTool:   e.CurrentTool,
	}
	thought := func(t ThoughtType, content string) {
		p.Thoughts = append(p.Thoughts, ThoughtEntry{Type: t, Content: content, At: e.At()})
	}
	action := func(text string) {
		if p.CurrentAction == nil {
			p.CurrentAction = &text
		}
	}
	status := func(s TaskStatus) {
		p.Status = &s
	}

	if workingStatuses[e.Status] && (current.Status == TaskPending || current.Status == "") {
		status(TaskRunning)
	}

	switch e.Status {
	case wire.StatusBlockStarted:
		status(TaskRunning)
		action("Starting research")
	case wire.StatusBlockCompleted:
		status(TaskCompleted)
		action("Completed")
	case wire.StatusBlockFailed:
		status(TaskFailed)
		thought(ThoughtError, firstOf("task failed", e.Error, e.Thought))
		action("Failed")
	case wire.StatusIterationStarted:
		// A regressed iteration is rejected by UpsertTask, so it gets no
		// action text either.
		if e.Iteration != nil && *e.Iteration >= current.Iteration {
			if e.MaxIterations != nil {
				action(fmt.Sprintf("Iteration %d/%d", *e.Iteration, *e.MaxIterations))
			} else {
				action(fmt.Sprintf("Iteration %d", *e.Iteration))
			}
		}
	case wire.StatusCheckingSufficiency:
		thought(ThoughtSufficiency, firstOf("Checking knowledge sufficiency", e.Thought))
		action("Checking sufficiency")
	case wire.StatusKnowledgeSufficient:
		thought(ThoughtSufficiency, firstOf("Knowledge is sufficient", e.Thought))
	case wire.StatusGeneratingQuery:
		thought(ThoughtPlan, firstOf("Generating query", e.Query, e.Thought))
		action("Generating query")
	case wire.StatusToolCalling:
		tool := firstOf("", e.ToolType, e.CurrentTool)
		content := tool
		if e.Query != nil && *e.Query != "" {
			content = fmt.Sprintf("%s: %s", tool, *e.Query)
		}
		thought(ThoughtToolCall, content)
		if tool != "" {
			p.ToolsUsed = []string{tool}
			if p.CurrentTool == nil {
				p.CurrentTool = &tool
			}
			action("Calling " + tool)
		}
	case wire.StatusNoteGenerated:
		thought(ThoughtNote, firstOf("Note recorded", e.Thought))
	default:
		if e.Error != nil && *e.Error != "" {
			thought(ThoughtError, *e.Error)
		}
	}
	return p
}

// firstOf returns the first non-empty value, or fallback.
func firstOf(fallback string, values ...*string) string {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v
		}
	}
	return fallback
}
