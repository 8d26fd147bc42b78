package stages

import (
	"time"

	"github.com/lucasnoah/orbitqc/internal/config"
	"github.com/lucasnoah/orbitqc/internal/response"
	"github.com/lucasnoah/orbitqc/internal/stage"
)

const templateTag = "templateControlMetric"

// NewTemplate builds the skeleton stage new quality checks start from. It
// exercises the full incremental contract without touching product data:
// copy it, rename the identifier and tag, and fill in the compute callback.
func NewTemplate(cfg *config.Config) (stage.Stage, error) {
	return &stage.Multi{
		ID:  "template",
		Tag: templateTag,
		Variants: map[stage.Sensor]stage.ComputeFunc{
			stage.SensorSentinel2: templateCompute,
			stage.SensorLandsat8:  templateCompute,
		},
	}, nil
}

func templateCompute(meta map[string]any, dataDir, outputDir string) (response.Fragment, error) {
	frag := response.Fragment{
		"value":       true,
		"processedAt": time.Now(),
	}
	if props, ok := meta["properties"].(map[string]any); ok {
		if title, ok := props["title"].(string); ok {
			frag["title"] = title
		}
	}
	return frag, nil
}
