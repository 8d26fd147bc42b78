package stages

import "github.com/lucasnoah/orbitqc/internal/stage"

// All returns the built-in stage registry. Deployments extend the pipeline
// by adding entries here; the configured stage list selects and orders a
// subset of them.
func All() stage.Registry {
	return stage.Registry{
		"search": {
			Description: "enumerate candidate products and screen feasibility",
			New:         NewSearch,
		},
		"download": {
			Description: "verify delivered product data and inventory rasters",
			New:         NewDownload,
		},
		"template": {
			Description: "skeleton quality check for new stage development",
			New:         NewTemplate,
		},
	}
}
