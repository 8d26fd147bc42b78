package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const baseYAML = `
project:
  name: demo
  path: proj
  metapath: meta
  downpath: data
logging:
  db: qc.db
  directory: logs
  level: info
image_products:
  primary_platform: Sentinel-2
stages:
  - search
  - download
`

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "base.yaml", baseYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Project.Name != "demo" {
		t.Errorf("name = %q", cfg.Project.Name)
	}
	if cfg.Project.Path != filepath.Join(dir, "proj") {
		t.Errorf("path not absolutized: %q", cfg.Project.Path)
	}
	if cfg.Logging.DB != filepath.Join(dir, "qc.db") {
		t.Errorf("db not absolutized: %q", cfg.Logging.DB)
	}
	if got := cfg.MetaDir(); got != filepath.Join(dir, "proj", "meta") {
		t.Errorf("meta dir = %q", got)
	}
	if len(cfg.Stages) != 2 || cfg.Stages[0] != "search" {
		t.Errorf("stages = %v", cfg.Stages)
	}
}

func TestLoadMergesLeftToRight(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", baseYAML)
	override := writeFile(t, dir, "site.yaml", `
logging:
  level: debug
image_products:
  supplementary_platform: Landsat-8
stages:
  - search
`)

	cfg, err := Load(base, override)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Scalar override wins, sibling keys survive the nested merge.
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Logging.DB != filepath.Join(dir, "qc.db") {
		t.Errorf("db lost in merge: %q", cfg.Logging.DB)
	}
	if cfg.ImageProducts.PrimaryPlatform != "Sentinel-2" ||
		cfg.ImageProducts.SupplementaryPlatform != "Landsat-8" {
		t.Errorf("platforms = %+v", cfg.ImageProducts)
	}
	// Lists replace wholesale.
	if len(cfg.Stages) != 1 || cfg.Stages[0] != "search" {
		t.Errorf("stages = %v", cfg.Stages)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Error("expected error with no config files")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := writeFile(t, t.TempDir(), "bad.yaml", "stages: [unclosed")
	if _, err := Load(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestStore(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "base.yaml", baseYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := cfg.Store(); err != nil {
		t.Fatalf("store: %v", err)
	}
	stored := filepath.Join(cfg.Project.Path, "config.yaml")
	if _, err := os.Stat(stored); err != nil {
		t.Errorf("stored config missing: %v", err)
	}
}
