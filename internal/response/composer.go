package response

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lucasnoah/orbitqc/internal/ledger"
)

//go:embed schema.json
var schemaJSON string

// Composer builds, merges, persists, and validates per-entity metadata
// documents under the current job's target directory.
type Composer struct {
	targetDir string
	schema    *jsonschema.Schema
	log       *slog.Logger
}

// NewComposer creates the composer for one job, creating the job's response
// directory (<dir>/NNNNN) if needed.
func NewComposer(dir string, jobID int, log *slog.Logger) (*Composer, error) {
	schema, err := jsonschema.CompileString("schema.json", schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}
	targetDir := filepath.Join(dir, ledger.JobName(jobID))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, fmt.Errorf("create response directory: %w", err)
	}
	return &Composer{targetDir: targetDir, schema: schema, log: log}, nil
}

// TargetDir returns the job's response directory.
func (c *Composer) TargetDir() string {
	return c.targetDir
}

// Render serializes a document canonically: indented JSON with embedded
// timestamps in the fixed millisecond-Z convention.
func (c *Composer) Render(d *Document) ([]byte, error) {
	data, err := json.MarshalIndent(normalizeTimestamps(d.Content()), "", "    ")
	if err != nil {
		return nil, fmt.Errorf("render document %s: %w", d.Identifier(), err)
	}
	return append(data, '\n'), nil
}

// Filename returns the deterministic path of a document. When stage is
// non-empty the path nests one level deeper: the incremental, per-stage
// copy. When empty it is the authoritative per-entity file.
func (c *Composer) Filename(d *Document, stage string) string {
	return filepath.Join(c.targetDir, stage, d.Identifier()+".json")
}

// Save writes rendered content to path, creating parent directories as
// needed.
func (c *Composer) Save(content []byte, path string) error {
	return WriteAtomic(path, content)
}

// SaveDocument persists a document twice: the incremental per-stage copy
// and the authoritative per-entity file. A crash between the two writes
// self-heals on the next successful merge for the entity.
func (c *Composer) SaveDocument(d *Document, stage string) error {
	content, err := c.Render(d)
	if err != nil {
		return err
	}
	if stage != "" {
		if err := c.Save(content, c.Filename(d, stage)); err != nil {
			return err
		}
	}
	return c.Save(content, c.Filename(d, ""))
}

// Load reads and parses a persisted document. A missing file yields nil
// (logged); malformed content is logged but never raised.
func (c *Composer) Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.log.Warn("response file not found", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	var content map[string]any
	if err := json.Unmarshal(data, &content); err != nil {
		c.log.Error("response file is not valid JSON", "path", path, "error", err)
		return nil, nil
	}
	d, err := New(content)
	if err != nil {
		c.log.Error("response file is malformed", "path", path, "error", err)
		return nil, nil
	}
	return d, nil
}

// IsValid validates the authoritative document at path against the response
// schema. Only valid documents are eligible for external dispatch.
func (c *Composer) IsValid(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		c.log.Error("response file not readable", "path", path, "error", err)
		return false
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		c.log.Error("response file is not valid JSON", "path", path, "error", err)
		return false
	}
	if err := c.schema.Validate(v); err != nil {
		c.log.Error("schema validation failed", "path", path, "error", err)
		return false
	}
	c.log.Debug("response is valid", "path", path)
	return true
}

// Merge applies a stage's fragment to the document's section for tag and
// then repairs value/status consistency. The repair runs after any
// stage-specific logic, as a final guard: a false value forces the status
// to rejected, and a rejected or failed status forces the value to false.
func (c *Composer) Merge(d *Document, tag string, frag Fragment) {
	if _, ok := frag["lineage"]; !ok {
		frag["lineage"] = Lineage
	}
	d.Update(tag, frag)

	status, ok := d.Status()
	value, _ := d.Value(tag)
	if value == false && (!ok || !status.Terminal()) {
		c.log.Warn("value/status inconsistency, forcing status to rejected",
			"entity", d.Identifier(), "tag", tag, "status", status.String())
		d.SetStatus(ledger.StatusRejected)
	}
	if status, ok = d.Status(); ok && status.Terminal() && value != false {
		c.log.Warn("value/status inconsistency, forcing value to false",
			"entity", d.Identifier(), "tag", tag, "status", status.String())
		d.SetValue(tag, false)
	}
}

// TagSubset filters a cached section to the keys a stage is allowed to
// carry forward: the identifying keys plus the stage's own sub-keys.
func TagSubset(section map[string]any, keys []string) Fragment {
	if len(keys) == 0 {
		return section
	}
	out := make(Fragment)
	for k, v := range section {
		if k == "isMeasurementOf" || k == "value" || k == "lineage" {
			out[k] = v
			continue
		}
		for _, allowed := range keys {
			if k == allowed || strings.HasPrefix(k, allowed+".") {
				out[k] = v
				break
			}
		}
	}
	return out
}
