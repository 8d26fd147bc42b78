package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasnoah/orbitqc/internal/config"
	"github.com/lucasnoah/orbitqc/internal/ledger"
	"github.com/lucasnoah/orbitqc/internal/response"
	"github.com/lucasnoah/orbitqc/internal/stage"
)

// Orchestrator drives one pipeline job: it resolves the configured stage
// list against the registry, opens the job in the ledger, runs the stages
// in order over a shared environment, and closes the job with its outcome.
type Orchestrator struct {
	cfg      *config.Config
	ledger   *ledger.Ledger
	registry stage.Registry
	log      *slog.Logger
}

// New creates an orchestrator over an open ledger.
func New(cfg *config.Config, ldg *ledger.Ledger, registry stage.Registry, log *slog.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, ledger: ldg, registry: registry, log: log}
}

// resolve instantiates the stages to run. With an empty override the full
// configured list runs; an override must name configured stages.
func (o *Orchestrator) resolve(override []string) ([]stage.Stage, error) {
	names := o.cfg.Stages
	if len(override) > 0 {
		names = override
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no stages configured")
	}

	stages := make([]stage.Stage, 0, len(names))
	for _, name := range names {
		reg, ok := o.registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown stage %q", name)
		}
		if len(override) > 0 && !contains(o.cfg.Stages, name) {
			return nil, fmt.Errorf("stage %q is not in the configured pipeline", name)
		}
		st, err := reg.New(o.cfg)
		if err != nil {
			return nil, fmt.Errorf("initialize stage %q: %w", name, err)
		}
		stages = append(stages, st)
	}
	return stages, nil
}

// Run executes one job over the given stage subset (nil for the full
// configured pipeline). Per-entity failures are absorbed by the stages;
// only job-level errors surface here, and they close the job unsuccessful.
func (o *Orchestrator) Run(override []string) error {
	stages, err := o.resolve(override)
	if err != nil {
		return err
	}

	jobID, err := o.ledger.JobID()
	if err != nil {
		return err
	}

	// Memoize the previous successful job before this one enters the
	// store, so cross-job lookups resolve against the right baseline.
	if _, _, err := o.ledger.LastSuccessfulJob(o.cfg.Stages[0]); err != nil {
		return err
	}

	composer, err := response.NewComposer(o.cfg.Logging.Directory, jobID, o.log)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := o.ledger.StartJob(start); err != nil {
		return err
	}
	o.log.Info("job started",
		"job", ledger.JobName(jobID), "project", o.cfg.Project.Name,
		"stages", len(stages))

	env := &stage.Env{
		Config:    o.cfg,
		Ledger:    o.ledger,
		Composer:  composer,
		Responses: stage.NewResponseSet(),
		Log:       o.log,
	}

	for _, st := range stages {
		env.Responses.Rewind()
		o.log.Info("stage starting", "stage", st.Identifier())

		if err := st.Run(env); err != nil {
			return o.abort(st.Identifier(), err)
		}
		if err := o.persist(env, st.Identifier()); err != nil {
			return o.abort(st.Identifier(), err)
		}
	}

	if err := o.ledger.CloseJob(true, "completed"); err != nil {
		return err
	}
	o.log.Info("job finished",
		"job", ledger.JobName(jobID), "entities", env.Responses.Len(),
		"elapsed", time.Since(start))
	return nil
}

// persist writes every response document after a stage: the incremental
// per-stage copy plus the authoritative per-entity file.
func (o *Orchestrator) persist(env *stage.Env, stageID string) error {
	for _, d := range env.Responses.Documents() {
		if err := env.Composer.SaveDocument(d, stageID); err != nil {
			return err
		}
	}
	return nil
}

// abort closes the job unsuccessful with the error's description and
// reports the severity that stopped it.
func (o *Orchestrator) abort(stageID string, err error) error {
	var dep *stage.DependencyError
	var crit *stage.CriticalError
	switch {
	case errors.As(err, &dep):
		o.log.Error("stage dependency not met, job aborted",
			"stage", stageID, "error", err)
	case errors.As(err, &crit):
		o.log.Error("critical pipeline error, job aborted",
			"stage", stageID, "error", err)
	default:
		o.log.Error("job aborted", "stage", stageID, "error", err)
	}
	if cerr := o.ledger.CloseJob(false, err.Error()); cerr != nil {
		o.log.Error("closing failed job", "error", cerr)
	}
	return err
}

// ValidateResponses checks every authoritative response document of a job
// against the schema and returns the paths that fail.
func ValidateResponses(cfg *config.Config, jobID int, log *slog.Logger) ([]string, error) {
	composer, err := response.NewComposer(cfg.Logging.Directory, jobID, log)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(composer.TargetDir())
	if err != nil {
		return nil, fmt.Errorf("read response directory: %w", err)
	}

	var invalid []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(composer.TargetDir(), entry.Name())
		if !composer.IsValid(path) {
			invalid = append(invalid, path)
		}
	}
	return invalid, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
