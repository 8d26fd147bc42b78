package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasnoah/orbitqc/internal/ledger"
	"github.com/lucasnoah/orbitqc/internal/response"
)

// ComputeFunc is the external compute callback a stage plugs into the
// runner: given the entity's provider metadata, its data directory, and the
// stage's output directory, it returns the stage's response fragment. A nil
// fragment with nil error means "no usable output" and is treated as a soft
// failure; an empty fragment means "ran, nothing to report".
type ComputeFunc func(meta map[string]any, dataDir, outputDir string) (response.Fragment, error)

// RunnerSpec configures one incremental stage runner.
type RunnerSpec struct {
	Identifier string
	Tag        string   // measurement tag owned by the stage
	TagKeys    []string // optional projection of cached fragment sub-keys
	Artifacts  []string // output filenames the stage is responsible for
	Role       ledger.Role
	Profile    Profile
	Compute    ComputeFunc
}

// Runner applies the per-entity incremental decision logic for one
// (stage, platform) pair: skip with cached result, recompute, or carry a
// rejection forward.
type Runner struct {
	spec     RunnerSpec
	env      *Env
	produced map[string]struct{}
}

// NewRunner creates a runner over the shared stage environment.
func NewRunner(spec RunnerSpec, env *Env) *Runner {
	return &Runner{spec: spec, env: env, produced: make(map[string]struct{})}
}

// Produced returns the artifact paths this runner computed or found, for
// end-of-stage reporting.
func (r *Runner) Produced() map[string]struct{} {
	return r.produced
}

// Run iterates the entity set the preceding stage produced for the current
// job and decides, per entity, whether to invoke compute or reuse cached
// output. Outcomes are merged into the shared response documents and
// recorded in the ledger.
func (r *Runner) Run() error {
	start := time.Now()

	prev, err := PreviousStage(r.env.Config.Stages, r.spec.Identifier)
	if err != nil {
		return err
	}
	jobID, err := r.env.Ledger.JobID()
	if err != nil {
		return err
	}

	var ops []ledger.Operation
	if r.spec.Role == ledger.RoleUnknown {
		ops, err = r.env.Ledger.Operations(prev, jobID)
	} else {
		ops, err = r.env.Ledger.OperationsByRole(prev, jobID, r.spec.Role)
	}
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		r.env.Log.Warn("no entities to process", "stage", r.spec.Identifier, "previous", prev)
	}

	for i, op := range ops {
		r.env.Responses.Advance()
		r.env.Log.Info("processing entity",
			"stage", r.spec.Identifier, "entity", op.Entity,
			"n", i+1, "of", len(ops))

		if err := r.runEntity(op); err != nil {
			return err
		}
	}

	r.logSummary(time.Since(start))
	return nil
}

func (r *Runner) runEntity(op ledger.Operation) error {
	// Resolve the historical status: an unchanged upstream defers to what
	// this stage recorded in the last successful job.
	ipStatus := op.Status
	ipKnown := true
	if op.Status == ledger.StatusUnchanged {
		ipStatus, ipKnown = ledger.StatusUnchanged, false
		if st, ok, err := r.env.Ledger.LastKnownStatus(r.spec.Identifier, op.Entity); err != nil {
			return err
		} else if ok {
			ipStatus, ipKnown = st, true
		}
	}

	// An entity rejected upstream never reaches compute. Its last persisted
	// fragment is carried forward when present; absence is tolerated.
	if ipKnown && ipStatus == ledger.StatusRejected {
		r.env.Log.Info("entity rejected upstream, skipping",
			"stage", r.spec.Identifier, "entity", op.Entity)
		if err := r.recordOperation(op.Entity, ledger.StatusRejected); err != nil {
			return err
		}
		frag, err := r.lastFragment(op.Entity, true)
		if err != nil {
			return err
		}
		if frag != nil {
			doc, err := r.env.Responses.Current()
			if err != nil {
				return r.critical(err)
			}
			doc.SetStatus(ledger.StatusRejected)
			r.env.Composer.Merge(doc, r.spec.Tag, frag)
		}
		return nil
	}

	doc, err := r.env.Responses.Current()
	if err != nil {
		return r.critical(err)
	}
	doc.SetStatus(op.Status)

	outputDir := r.OutputDir(op.Entity)
	exists := r.artifactsExist(outputDir)

	// Force recompute on explicit operator override, on a first-ever run,
	// and when the ledger says unchanged but the filesystem disagrees.
	force := op.Status == ledger.StatusForced ||
		!ipKnown ||
		(op.Status == ledger.StatusUnchanged && !exists)

	var frag response.Fragment
	switch {
	case op.Status == ledger.StatusAdded ||
		op.Status == ledger.StatusUpdated ||
		op.Status == ledger.StatusFailed ||
		force:
		if force {
			if !exists {
				r.env.Log.Debug("missing results", "stage", r.spec.Identifier, "entity", op.Entity)
			}
			r.env.Log.Debug("operation forced", "stage", r.spec.Identifier, "entity", op.Entity)
		}
		frag = r.compute(op.Entity, outputDir, doc)
	default:
		frag, err = r.lastFragment(op.Entity, false)
		if err != nil {
			return err
		}
	}

	if frag != nil {
		r.env.Composer.Merge(doc, r.spec.Tag, frag)
	}

	final, _ := doc.Status()
	return r.recordOperation(op.Entity, final)
}

// compute runs the stage's callback for one entity. Failures are local to
// the entity: the status becomes failed and the pipeline moves on.
func (r *Runner) compute(entity, outputDir string, doc *response.Document) response.Fragment {
	meta, err := r.Metadata(entity)
	if err != nil {
		r.env.Log.Error("reading entity metadata failed",
			"stage", r.spec.Identifier, "entity", entity, "error", err)
		doc.SetStatus(ledger.StatusFailed)
		return nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		r.env.Log.Error("creating output directory failed",
			"stage", r.spec.Identifier, "entity", entity, "error", err)
		doc.SetStatus(ledger.StatusFailed)
		return nil
	}

	frag, err := r.spec.Compute(meta, r.DataDir(entity), outputDir)
	if err != nil {
		r.env.Log.Error("stage computation failed",
			"stage", r.spec.Identifier, "entity", entity, "error", err)
		doc.SetStatus(ledger.StatusFailed)
		return nil
	}
	if frag == nil {
		r.env.Log.Error("stage produced no usable output",
			"stage", r.spec.Identifier, "entity", entity)
		doc.SetStatus(ledger.StatusFailed)
		return nil
	}

	for _, name := range r.spec.Artifacts {
		r.produced[filepath.Join(outputDir, r.artifactName(name))] = struct{}{}
	}
	return frag
}

// lastFragment reads the entity's authoritative document from the last
// successful job and extracts the section this stage owns, projected to the
// allow-listed sub-keys. With tolerateMissing (the rejected short-circuit)
// absence yields nil; otherwise a missing document is a critical error.
func (r *Runner) lastFragment(entity string, tolerateMissing bool) (response.Fragment, error) {
	first := r.env.Config.Stages[0]
	jobID, ok, err := r.env.Ledger.LastSuccessfulJob(first)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.env.Log.Debug("no previous job, nothing cached", "entity", entity)
		return nil, nil
	}

	path := filepath.Join(r.env.Config.Logging.Directory, ledger.JobName(jobID), entity+".json")
	doc, err := r.env.Composer.Load(path)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		if tolerateMissing {
			return nil, nil
		}
		return nil, &CriticalError{
			Stage: r.spec.Identifier,
			Msg:   fmt.Sprintf("response file %s not found", path),
		}
	}

	section := doc.Get(r.spec.Tag)
	if section == nil {
		if r.env.Config.Strict.Enabled {
			return nil, &CriticalError{
				Stage: r.spec.Identifier,
				Msg:   fmt.Sprintf("no %s section cached for %s", r.spec.Tag, entity),
			}
		}
		return response.Fragment{}, nil
	}
	return response.TagSubset(section, r.spec.TagKeys), nil
}

// Metadata reads the entity's provider metadata file.
func (r *Runner) Metadata(entity string) (map[string]any, error) {
	return response.ReadJSONMeta(filepath.Join(r.env.Config.MetaDir(), entity+".geojson"))
}

// DataDir returns the entity's product data directory.
func (r *Runner) DataDir(entity string) string {
	return filepath.Join(r.env.Config.DataDir(), entity+r.spec.Profile.DirSuffix)
}

// OutputDir returns the directory this stage writes its results for an
// entity.
func (r *Runner) OutputDir(entity string) string {
	return filepath.Join(r.DataDir(entity), "QC")
}

func (r *Runner) artifactName(name string) string {
	return r.spec.Identifier + "_" + name
}

// artifactsExist reports whether every expected output artifact is already
// present. A stage without declared artifacts falls back to the output
// directory's existence.
func (r *Runner) artifactsExist(outputDir string) bool {
	if len(r.spec.Artifacts) == 0 {
		_, err := os.Stat(outputDir)
		return err == nil
	}
	found := 0
	for _, name := range r.spec.Artifacts {
		if _, err := os.Stat(filepath.Join(outputDir, r.artifactName(name))); err == nil {
			found++
		}
	}
	r.env.Log.Debug("expected artifacts",
		"stage", r.spec.Identifier, "found", found, "expected", len(r.spec.Artifacts))
	return found == len(r.spec.Artifacts)
}

func (r *Runner) recordOperation(entity string, status ledger.Status) error {
	return r.env.Ledger.RecordOperation(
		r.spec.Identifier, entity, status, time.Now(), r.spec.Role,
	)
}

// critical tags a response-set cursor error with this runner's stage.
func (r *Runner) critical(err error) error {
	if ce, ok := err.(*CriticalError); ok && ce.Stage == "" {
		return &CriticalError{Stage: r.spec.Identifier, Msg: ce.Msg}
	}
	return err
}

func (r *Runner) logSummary(elapsed time.Duration) {
	tally := r.env.Ledger.Tally(r.spec.Identifier)
	parts := make([]string, 0, len(tally))
	for _, st := range ledger.AllStatuses() {
		if n := tally[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", st, n))
		}
	}
	r.env.Log.Info("stage finished",
		"stage", r.spec.Identifier, "role", r.spec.Role.String(),
		"result", strings.Join(parts, " "), "elapsed", elapsed)
}
