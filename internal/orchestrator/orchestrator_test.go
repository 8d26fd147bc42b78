package orchestrator

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/lucasnoah/orbitqc/internal/config"
	"github.com/lucasnoah/orbitqc/internal/ledger"
	"github.com/lucasnoah/orbitqc/internal/stage"
	"github.com/lucasnoah/orbitqc/internal/stages"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		Project: config.Project{
			Name:     "p",
			Path:     filepath.Join(root, "proj"),
			Metapath: "meta",
			Downpath: "data",
		},
		Logging: config.Logging{
			DB:        filepath.Join(root, "qc.db"),
			Directory: filepath.Join(root, "logs"),
		},
		ImageProducts: config.ImageProducts{PrimaryPlatform: "Sentinel-2"},
		Stages:        []string{"search", "template"},
	}
	for _, dir := range []string{cfg.MetaDir(), cfg.DataDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

func writeProduct(t *testing.T, cfg *config.Config, id string) {
	t.Helper()
	meta := map[string]any{
		"properties": map[string]any{
			"identifier": id,
			"platform":   "Sentinel-2",
			"title":      "scene " + id,
		},
	}
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfg.MetaDir(), id+".geojson")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func openLedger(t *testing.T, cfg *config.Config) *ledger.Ledger {
	t.Helper()
	ldg, err := ledger.Open(cfg.Logging.DB, cfg.Project.Name)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { ldg.Close() })
	return ldg
}

func TestRunFullPipeline(t *testing.T) {
	cfg := testConfig(t)
	writeProduct(t, cfg, "e1")
	writeProduct(t, cfg, "e2")

	ldg := openLedger(t, cfg)
	o := New(cfg, ldg, stages.All(), discardLogger())
	if err := o.Run(nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	jobs, err := ldg.Jobs()
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].Success == nil || !*jobs[0].Success {
		t.Fatalf("jobs = %+v", jobs)
	}

	// Both stages recorded both entities.
	for _, stageName := range cfg.Stages {
		ops, err := ldg.Operations(stageName, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(ops) != 2 {
			t.Errorf("%s recorded %d operations, want 2", stageName, len(ops))
		}
	}

	// Authoritative and incremental response files exist for each entity.
	jobDir := filepath.Join(cfg.Logging.Directory, "00001")
	for _, entity := range []string{"e1", "e2"} {
		for _, path := range []string{
			filepath.Join(jobDir, entity+".json"),
			filepath.Join(jobDir, "search", entity+".json"),
			filepath.Join(jobDir, "template", entity+".json"),
		} {
			if _, err := os.Stat(path); err != nil {
				t.Errorf("missing response file %s", path)
			}
		}
	}

	invalid, err := ValidateResponses(cfg, 1, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(invalid) != 0 {
		t.Errorf("invalid responses: %v", invalid)
	}
}

func TestRunSecondJobSkipsWork(t *testing.T) {
	cfg := testConfig(t)
	writeProduct(t, cfg, "e1")

	ldg1 := openLedger(t, cfg)
	if err := New(cfg, ldg1, stages.All(), discardLogger()).Run(nil); err != nil {
		t.Fatalf("first run: %v", err)
	}

	ldg2 := openLedger(t, cfg)
	if err := New(cfg, ldg2, stages.All(), discardLogger()).Run(nil); err != nil {
		t.Fatalf("second run: %v", err)
	}

	for _, stageName := range cfg.Stages {
		ops, err := ldg2.Operations(stageName, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(ops) != 1 || ops[0].Status != ledger.StatusUnchanged {
			t.Errorf("%s job 2 ops = %+v, want unchanged", stageName, ops)
		}
	}
}

func TestResolveErrors(t *testing.T) {
	cfg := testConfig(t)
	ldg := openLedger(t, cfg)

	cfg.Stages = nil
	o := New(cfg, ldg, stages.All(), discardLogger())
	if err := o.Run(nil); err == nil {
		t.Error("expected error for empty stage list")
	}

	cfg.Stages = []string{"search", "mystery"}
	if err := o.Run(nil); err == nil {
		t.Error("expected error for unregistered stage")
	}

	cfg.Stages = []string{"search", "template"}
	if err := o.Run([]string{"download"}); err == nil {
		t.Error("expected error for override outside the configured pipeline")
	}

	// Nothing above should have opened a job.
	jobs, _ := ldg.Jobs()
	if len(jobs) != 0 {
		t.Errorf("jobs = %+v, want none", jobs)
	}
}

type stubStage struct {
	err error
}

func (s stubStage) Identifier() string     { return "boom" }
func (s stubStage) MeasurementTag() string { return "boomMetric" }
func (s stubStage) Run(env *stage.Env) error {
	return s.err
}

func TestRunClosesFailedJob(t *testing.T) {
	cfg := testConfig(t)
	cfg.Stages = []string{"boom"}
	ldg := openLedger(t, cfg)

	registry := stage.Registry{
		"boom": {
			Description: "always fails",
			New: func(cfg *config.Config) (stage.Stage, error) {
				return stubStage{err: &stage.CriticalError{Stage: "boom", Msg: "broken"}}, nil
			},
		},
	}
	o := New(cfg, ldg, registry, discardLogger())
	err := o.Run(nil)
	if err == nil {
		t.Fatal("expected run to fail")
	}

	jobs, _ := ldg.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("jobs = %+v", jobs)
	}
	j := jobs[0]
	if j.Success == nil || *j.Success {
		t.Error("job should be closed unsuccessful")
	}
	if j.Reason == "" {
		t.Error("failure reason not recorded")
	}
}

func TestValidateResponsesFlagsBadDocument(t *testing.T) {
	cfg := testConfig(t)
	writeProduct(t, cfg, "e1")

	ldg := openLedger(t, cfg)
	if err := New(cfg, ldg, stages.All(), discardLogger()).Run(nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	bad := filepath.Join(cfg.Logging.Directory, "00001", "e9.json")
	if err := os.WriteFile(bad, []byte(`{"type": "Feature"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	invalid, err := ValidateResponses(cfg, 1, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(invalid) != 1 || invalid[0] != bad {
		t.Errorf("invalid = %v, want just %s", invalid, bad)
	}
}
