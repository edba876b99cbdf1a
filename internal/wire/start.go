package wire

import (
	"encoding/json"
	"strings"

	"github.com/Iron-Ham/dossier/internal/errors"
)

// PlanMode selects how deeply the service plans a run.
type PlanMode string

// Plan modes accepted by the service.
const (
	PlanQuick  PlanMode = "quick"
	PlanMedium PlanMode = "medium"
	PlanDeep   PlanMode = "deep"
	PlanAuto   PlanMode = "auto"
)

// PlanModes lists every valid mode in display order.
func PlanModes() []PlanMode {
	return []PlanMode{PlanQuick, PlanMedium, PlanDeep, PlanAuto}
}

// Valid reports whether m is a known mode.
func (m PlanMode) Valid() bool {
	switch m {
	case PlanQuick, PlanMedium, PlanDeep, PlanAuto:
		return true
	default:
		return false
	}
}

// ParsePlanMode parses a mode name case-insensitively.
func ParsePlanMode(s string) (PlanMode, error) {
	m := PlanMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", errors.NewValidationError("unknown plan mode").WithField("plan_mode").WithValue(s)
	}
	return m, nil
}

// StartParams is the single outbound message that opens a run.
type StartParams struct {
	Topic         string   `json:"topic" yaml:"topic"`
	KnowledgeBase string   `json:"kb_name" yaml:"kb_name"`
	PlanMode      PlanMode `json:"plan_mode" yaml:"plan_mode"`
	EnabledTools  []string `json:"enabled_tools" yaml:"enabled_tools"`
	SkipRephrase  bool     `json:"skip_rephrase" yaml:"skip_rephrase"`
}

// Validate checks the parameters before they are sent.
func (p StartParams) Validate() error {
	if strings.TrimSpace(p.Topic) == "" {
		return errors.NewValidationError("topic must not be empty").WithField("topic").WithValue(p.Topic)
	}
	if !p.PlanMode.Valid() {
		return errors.NewValidationError("unknown plan mode").WithField("plan_mode").WithValue(string(p.PlanMode))
	}
	return nil
}

// MarshalJSON always emits enabled_tools as a list, never null.
func (p StartParams) MarshalJSON() ([]byte, error) {
	type plain StartParams
	out := plain(p)
	if out.EnabledTools == nil {
		out.EnabledTools = []string{}
	}
	return json.Marshal(out)
}
