package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/orbitqc/internal/config"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var configPaths []string

var rootCmd = &cobra.Command{
	Use:   "qcmanager",
	Short: "qcmanager — incremental quality control for satellite imagery",
	Long: `qcmanager runs a configurable pipeline of quality-control stages over
satellite image products. Each run is a job: entities enter through the
search stage, later stages skip work whose inputs did not change, and every
outcome lands in a per-project SQLite ledger plus per-entity JSON response
documents.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configPaths, "config", "c",
		[]string{"config.yaml"}, "YAML config files, merged left to right")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(stagesCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig merges the --config files and rejects invalid configurations
// with every problem listed.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPaths...)
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		lines := make([]string, len(errs))
		for i, e := range errs {
			lines[i] = "  " + e.Error()
		}
		return nil, fmt.Errorf("invalid configuration:\n%s", strings.Join(lines, "\n"))
	}
	return cfg, nil
}
