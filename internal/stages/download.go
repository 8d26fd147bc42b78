package stages

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasnoah/orbitqc/internal/config"
	"github.com/lucasnoah/orbitqc/internal/response"
	"github.com/lucasnoah/orbitqc/internal/stage"
)

const downloadTag = "deliveryControlMetric"

// NewDownload builds the delivery-control stage. It verifies that each
// entity's product data landed under the project data directory, inventories
// the raster files, and writes a manifest artifact the cache check keys on.
func NewDownload(cfg *config.Config) (stage.Stage, error) {
	return &stage.Multi{
		ID:      "download",
		Tag:     downloadTag,
		TagKeys: []string{"deliveryTime", "dataVolume", "rasterFiles"},
		Artifacts: []string{
			"manifest.json",
		},
		Variants: map[stage.Sensor]stage.ComputeFunc{
			stage.SensorSentinel2: downloadCompute(stage.ProfileFor(stage.SensorSentinel2)),
			stage.SensorLandsat8:  downloadCompute(stage.ProfileFor(stage.SensorLandsat8)),
		},
	}, nil
}

// downloadCompute inventories one entity's product directory using the
// sensor's file conventions.
func downloadCompute(p stage.Profile) stage.ComputeFunc {
	return func(meta map[string]any, dataDir, outputDir string) (response.Fragment, error) {
		info, err := os.Stat(dataDir)
		if err != nil {
			return nil, fmt.Errorf("product data missing at %s: %w", dataDir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("product data at %s is not a directory", dataDir)
		}

		var files int
		var volume int64
		err = filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), p.DataExtension) {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			files++
			volume += fi.Size()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("inventory product data at %s: %w", dataDir, err)
		}
		if files == 0 {
			return nil, fmt.Errorf("no %s raster files under %s", p.DataExtension, dataDir)
		}

		manifest := map[string]any{
			"dataDir":     dataDir,
			"rasterFiles": files,
			"dataVolume":  volume,
		}
		data, err := json.MarshalIndent(manifest, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("marshal manifest: %w", err)
		}
		path := filepath.Join(outputDir, "download_manifest.json")
		if err := response.WriteAtomic(path, append(data, '\n')); err != nil {
			return nil, err
		}

		return response.Fragment{
			"value":        true,
			"deliveryTime": time.Now(),
			"dataVolume":   volume,
			"rasterFiles":  files,
		}, nil
	}
}
