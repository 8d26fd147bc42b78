package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and merges one or more YAML config files left to right: later
// files override scalar keys, maps merge recursively, lists replace. After
// merging, project and logging paths are made absolute relative to the
// first file's directory.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no config files given")
	}

	merged := make(map[string]any)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing config YAML %s: %w", path, err)
		}
		mergeMaps(merged, raw)
	}

	out, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("re-marshal merged config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(out, &cfg); err != nil {
		return nil, fmt.Errorf("decoding merged config: %w", err)
	}

	base, err := filepath.Abs(filepath.Dir(paths[0]))
	if err != nil {
		return nil, fmt.Errorf("resolve config base dir: %w", err)
	}
	cfg.Project.Path = absPath(base, cfg.Project.Path)
	cfg.Logging.DB = absPath(base, cfg.Logging.DB)
	cfg.Logging.Directory = absPath(base, cfg.Logging.Directory)

	return &cfg, nil
}

// mergeMaps merges src into dst: nested maps merge recursively, everything
// else (scalars and lists) replaces.
func mergeMaps(dst, src map[string]any) {
	for key, val := range src {
		srcMap, srcIsMap := val.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeMaps(dstMap, srcMap)
			continue
		}
		dst[key] = val
	}
}

func absPath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func joinProject(projectPath, sub string) string {
	if filepath.IsAbs(sub) {
		return sub
	}
	return filepath.Join(projectPath, sub)
}

// Store writes the merged configuration into the project directory for the
// audit trail, creating the directory if needed.
func (c *Config) Store() error {
	if err := os.MkdirAll(c.Project.Path, 0o755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := filepath.Join(c.Project.Path, "config.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store config to %s: %w", path, err)
	}
	return nil
}
