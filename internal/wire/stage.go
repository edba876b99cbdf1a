package wire

// Pipeline stage names as they appear on the wire.
const (
	StagePlanning    = "planning"
	StageResearching = "researching"
	StageReporting   = "reporting"
	StageCompleted   = "completed"
)

// Fine-grained progress statuses that carry per-task meaning.
const (
	StatusBlockStarted        = "block_started"
	StatusBlockCompleted      = "block_completed"
	StatusBlockFailed         = "block_failed"
	StatusIterationStarted    = "iteration_started"
	StatusCheckingSufficiency = "checking_sufficiency"
	StatusKnowledgeSufficient = "knowledge_sufficient"
	StatusGeneratingQuery     = "generating_query"
	StatusToolCalling         = "tool_calling"
	StatusToolCompleted       = "tool_completed"
	StatusNoteGenerated       = "note_generated"
	StatusWritingSection      = "writing_section"
)

var statusStages = map[string]string{
	"planning_started":    StagePlanning,
	"rephrase_completed":  StagePlanning,
	"decompose_completed": StagePlanning,
	"planning_completed":  StagePlanning,

	"researching_started":     StageResearching,
	StatusBlockStarted:        StageResearching,
	StatusBlockCompleted:      StageResearching,
	StatusBlockFailed:         StageResearching,
	StatusIterationStarted:    StageResearching,
	StatusCheckingSufficiency: StageResearching,
	StatusKnowledgeSufficient: StageResearching,
	StatusGeneratingQuery:     StageResearching,
	StatusToolCalling:         StageResearching,
	StatusToolCompleted:       StageResearching,
	StatusNoteGenerated:       StageResearching,
	"parallel_status_update":  StageResearching,
	"researching_completed":   StageResearching,

	"reporting_started":     StageReporting,
	"deduplicate_completed": StageReporting,
	"outline_completed":     StageReporting,
	StatusWritingSection:    StageReporting,
	"writing_completed":     StageReporting,
	"reporting_completed":   StageReporting,
}

// IsStage reports whether s names a pipeline stage.
func IsStage(s string) bool {
	switch s {
	case StagePlanning, StageResearching, StageReporting, StageCompleted:
		return true
	default:
		return false
	}
}

// ResolveStage picks the stage a progress event declares. An explicit stage
// field wins, then a status that is itself a stage name, then the status
// table. Unknown statuses resolve to "".
func ResolveStage(stage, status string) string {
	if IsStage(stage) {
		return stage
	}
	if IsStage(status) {
		return status
	}
	return statusStages[status]
}
