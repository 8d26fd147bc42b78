package stage

import (
	"log/slog"

	"github.com/lucasnoah/orbitqc/internal/config"
	"github.com/lucasnoah/orbitqc/internal/ledger"
	"github.com/lucasnoah/orbitqc/internal/response"
)

// Stage is one named step in the configured pipeline.
type Stage interface {
	// Identifier is the stage's name in the configured stage list and the
	// ledger.
	Identifier() string
	// MeasurementTag addresses the stage's section in an entity's response
	// document.
	MeasurementTag() string
	// Run executes the stage against the shared environment.
	Run(env *Env) error
}

// Factory instantiates a stage. It fails with *DependencyError when the
// stage's external requirements are not met.
type Factory func(cfg *config.Config) (Stage, error)

// Registration couples a stage factory with the one-line description the
// CLI prints when listing available stages.
type Registration struct {
	Description string
	New         Factory
}

// Registry maps stage identifiers to registrations. It is built explicitly
// at startup; there is no runtime discovery.
type Registry map[string]Registration

// Env is the shared environment the orchestrator hands to every stage.
// The stage runner is the only component that reads from the ledger and
// writes to the composer; the two stores stay decoupled.
type Env struct {
	Config    *config.Config
	Ledger    *ledger.Ledger
	Composer  *response.Composer
	Responses *ResponseSet
	Log       *slog.Logger
}

// PreviousStage returns the stage preceding id in the configured list.
// The first stage has no predecessor and must supply its own entity
// enumeration.
func PreviousStage(stages []string, id string) (string, error) {
	idx := -1
	for i, s := range stages {
		if s == id {
			idx = i
			break
		}
	}
	if idx < 1 {
		return "", &CriticalError{Stage: id, Msg: "no previous stage defined"}
	}
	return stages[idx-1], nil
}
