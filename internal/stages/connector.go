package stages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasnoah/orbitqc/internal/config"
	"github.com/lucasnoah/orbitqc/internal/response"
	"github.com/lucasnoah/orbitqc/internal/stage"
)

// Product is one candidate image product a connector yields for the search
// stage.
type Product struct {
	Identifier string
	Sensor     stage.Sensor
	// Selected reports whether the product passed the provider-side
	// feasibility screening. Unselected products enter the pipeline as
	// rejected.
	Selected bool
	// Meta is the provider metadata, persisted to <metapath>/<id>.geojson
	// for downstream stages. May be nil when the metadata file already
	// exists on disk.
	Meta map[string]any
	// Modified is the provider-side modification timestamp used for
	// change detection across jobs.
	Modified time.Time
}

// Connector is the provider boundary of the search stage: it answers "which
// products exist for this platform right now". Implementations talk to a
// catalog API or, for local runs, to the filesystem.
type Connector interface {
	Find(cfg *config.Config, sensor stage.Sensor) ([]Product, error)
}

// DirectoryConnector enumerates products from metadata files already
// dropped into the project's metadata directory. The file's base name is
// the entity identifier and its mtime drives change detection.
type DirectoryConnector struct{}

// Find implements Connector.
func (DirectoryConnector) Find(cfg *config.Config, sensor stage.Sensor) ([]Product, error) {
	dir := cfg.MetaDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read metadata directory %s: %w", dir, err)
	}

	var products []Product
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".geojson") {
			continue
		}
		path := filepath.Join(dir, name)
		meta, err := response.ReadJSONMeta(path)
		if err != nil {
			return nil, fmt.Errorf("read product metadata %s: %w", path, err)
		}
		if metaPlatform(meta) != sensor.String() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat product metadata %s: %w", path, err)
		}
		products = append(products, Product{
			Identifier: strings.TrimSuffix(name, ".geojson"),
			Sensor:     sensor,
			Selected:   metaSelected(meta),
			Meta:       meta,
			Modified:   info.ModTime(),
		})
	}
	return products, nil
}

// metaPlatform reads the platform name from a product's properties.
func metaPlatform(meta map[string]any) string {
	props, _ := meta["properties"].(map[string]any)
	if props == nil {
		return ""
	}
	platform, _ := props["platform"].(string)
	return platform
}

// metaSelected reads the screening flag from a product's properties. A
// missing flag counts as selected.
func metaSelected(meta map[string]any) bool {
	props, _ := meta["properties"].(map[string]any)
	if props == nil {
		return true
	}
	selected, ok := props["selected"].(bool)
	if !ok {
		return true
	}
	return selected
}
