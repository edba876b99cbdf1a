package research

import "github.com/Iron-Ham/dossier/internal/wire"

// Stage is the coarse pipeline phase of a run.
type Stage string

const (
	// StageNone is the stage before planning starts and after an error.
	StageNone Stage = "none"
	// StagePlanning rephrases the topic and decomposes it into sub-topics.
	StagePlanning Stage = wire.StagePlanning
	// StageResearching runs one task per sub-topic, possibly in parallel.
	StageResearching Stage = wire.StageResearching
	// StageReporting deduplicates notes, outlines and writes the report.
	StageReporting Stage = wire.StageReporting
	// StageCompleted is reached only through a result event.
	StageCompleted Stage = wire.StageCompleted
)

// AllStages returns every stage in pipeline order.
func AllStages() []Stage {
	return []Stage{StageNone, StagePlanning, StageResearching, StageReporting, StageCompleted}
}

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// stageRank orders stages along the only path a run may take.
var stageRank = map[Stage]int{
	StageNone:        0,
	StagePlanning:    1,
	StageResearching: 2,
	StageReporting:   3,
	StageCompleted:   4,
}

// ParseStage converts a wire stage name. Unknown names map to StageNone
// with ok=false.
func ParseStage(name string) (Stage, bool) {
	s := Stage(name)
	if _, ok := stageRank[s]; !ok || s == StageNone {
		return StageNone, false
	}
	return s, true
}

// AdvanceStage returns the stage after a progress event claims next.
// Stages only move forward: a claim at or behind the current stage leaves
// it unchanged. Completed is never entered this way because only a result
// event may complete a run.
func AdvanceStage(current, next Stage) (Stage, bool) {
	if next == StageCompleted {
		return current, false
	}
	cur, ok := stageRank[current]
	if !ok {
		cur = 0
	}
	n, ok := stageRank[next]
	if !ok || n <= cur {
		return current, false
	}
	return next, true
}
