package stages

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasnoah/orbitqc/internal/config"
	"github.com/lucasnoah/orbitqc/internal/ledger"
	"github.com/lucasnoah/orbitqc/internal/response"
	"github.com/lucasnoah/orbitqc/internal/stage"
)

const searchTag = "feasibilityControlMetric"

// timestampTolerance absorbs filesystem mtime rounding when comparing a
// product's modification time against the ledger.
const timestampTolerance = time.Second

// Search is the pipeline's entity enumerator. It has no predecessor: it
// asks the connector for the current product set per configured platform,
// classifies every product against the previous job, appends one response
// document per entity, and records the job's first round of operations.
type Search struct {
	connector Connector
}

// NewSearch builds the search stage with the local directory connector.
func NewSearch(cfg *config.Config) (stage.Stage, error) {
	return &Search{connector: DirectoryConnector{}}, nil
}

// Identifier implements Stage.
func (s *Search) Identifier() string { return "search" }

// MeasurementTag implements Stage.
func (s *Search) MeasurementTag() string { return searchTag }

// Run implements Stage.
func (s *Search) Run(env *stage.Env) error {
	start := time.Now()

	total := 0
	for _, role := range []ledger.Role{ledger.RolePrimary, ledger.RoleSupplementary} {
		name := env.Config.Platform(role.String())
		if name == "" {
			env.Log.Debug("platform role not configured, skipped",
				"stage", s.Identifier(), "role", role.String())
			continue
		}
		sensor, err := stage.ParseSensor(name)
		if err != nil {
			return &stage.CriticalError{Stage: s.Identifier(), Msg: err.Error()}
		}

		products, err := s.connector.Find(env.Config, sensor)
		if err != nil {
			return &stage.DependencyError{Stage: s.Identifier(), Err: err}
		}
		if len(products) == 0 {
			env.Log.Warn("no products found",
				"stage", s.Identifier(), "platform", name)
		}
		for i, p := range products {
			env.Log.Info("processing entity",
				"stage", s.Identifier(), "entity", p.Identifier,
				"n", i+1, "of", len(products))
			if err := s.runProduct(env, p, role); err != nil {
				return err
			}
		}
		total += len(products)
	}

	if total == 0 {
		env.Log.Warn("no entities enumerated, downstream stages will idle",
			"stage", s.Identifier())
	}
	s.logSummary(env, time.Since(start))
	return nil
}

// runProduct classifies one product, builds or reuses its response
// document, and records the operation. A metadata persistence failure is
// local to the product; it enters the job as failed.
func (s *Search) runProduct(env *stage.Env, p Product, role ledger.Role) error {
	status, doc, err := s.classify(env, p)
	if err != nil {
		return err
	}

	if doc == nil {
		doc = response.NewForEntity(p.Identifier)
		doc.SetStatus(status)
		env.Composer.Merge(doc, searchTag, s.fragment(p))
	} else {
		doc.SetStatus(status)
	}
	env.Responses.Add(doc)

	if p.Meta != nil && (status == ledger.StatusAdded || status == ledger.StatusUpdated) {
		if err := s.saveMetadata(env, p); err != nil {
			env.Log.Error("persisting product metadata failed",
				"stage", s.Identifier(), "entity", p.Identifier, "error", err)
			doc.SetStatus(ledger.StatusFailed)
			env.Composer.Merge(doc, searchTag, response.Fragment{"value": false})
		}
	}

	final, _ := doc.Status()
	return env.Ledger.RecordOperation(s.Identifier(), p.Identifier, final, p.Modified, role)
}

// classify decides the product's entry status for this job. A non-nil
// document means the previous job's response is reused as-is.
func (s *Search) classify(env *stage.Env, p Product) (ledger.Status, *response.Document, error) {
	op, known, err := env.Ledger.LastKnownOperation(s.Identifier(), p.Identifier)
	if err != nil {
		return 0, nil, err
	}

	switch {
	case !known:
		return ledger.StatusAdded, nil, nil
	case !p.Selected:
		// Screened out; the last response is carried forward when readable.
		doc, err := s.lastDocument(env, p.Identifier)
		return ledger.StatusRejected, doc, err
	case op.Status == ledger.StatusRejected:
		// Screened back in after a rejection.
		return ledger.StatusUpdated, nil, nil
	case p.Modified.After(op.Modified.Add(timestampTolerance)):
		return ledger.StatusUpdated, nil, nil
	}

	doc, err := s.lastDocument(env, p.Identifier)
	if err != nil {
		return 0, nil, err
	}
	if doc == nil {
		env.Log.Debug("previous response unreadable, forcing recompute",
			"stage", s.Identifier(), "entity", p.Identifier)
		return ledger.StatusForced, nil, nil
	}
	if v, ok := doc.Value(searchTag); ok && v == false {
		return ledger.StatusRejected, doc, nil
	}
	return ledger.StatusUnchanged, doc, nil
}

// lastDocument loads the entity's authoritative response from the last
// successful job. Absence or malformed content yields nil.
func (s *Search) lastDocument(env *stage.Env, entity string) (*response.Document, error) {
	jobID, ok, err := env.Ledger.LastSuccessfulJob(env.Config.Stages[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	path := filepath.Join(env.Config.Logging.Directory, ledger.JobName(jobID), entity+".json")
	return env.Composer.Load(path)
}

// fragment builds the feasibility section for a fresh document.
func (s *Search) fragment(p Product) response.Fragment {
	frag := response.Fragment{
		"value":      p.Selected,
		"mission":    p.Sensor.String(),
		"searchDate": time.Now(),
	}
	props, _ := p.Meta["properties"].(map[string]any)
	for _, key := range []string{"title", "beginPosition", "cloudCoverPercentage"} {
		if v, ok := props[key]; ok {
			frag[key] = v
		}
	}
	return frag
}

// saveMetadata writes the product's provider metadata next to its siblings
// in the project metadata directory. A file already carrying the product's
// modification time is left alone so its mtime stays stable across jobs.
func (s *Search) saveMetadata(env *stage.Env, p Product) error {
	path := filepath.Join(env.Config.MetaDir(), p.Identifier+".geojson")
	if info, err := os.Stat(path); err == nil && info.ModTime().Equal(p.Modified) {
		return nil
	}
	data, err := json.MarshalIndent(p.Meta, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal metadata for %s: %w", p.Identifier, err)
	}
	return response.WriteAtomic(path, append(data, '\n'))
}

func (s *Search) logSummary(env *stage.Env, elapsed time.Duration) {
	tally := env.Ledger.Tally(s.Identifier())
	parts := make([]string, 0, len(tally))
	for _, st := range ledger.AllStatuses() {
		if n := tally[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", st, n))
		}
	}
	env.Log.Info("stage finished",
		"stage", s.Identifier(), "result", strings.Join(parts, " "), "elapsed", elapsed)
}
