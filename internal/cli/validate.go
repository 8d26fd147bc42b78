package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/orbitqc/internal/ledger"
	"github.com/lucasnoah/orbitqc/internal/orchestrator"
)

var validateJob int

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a job's response documents against the schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		jobID := validateJob
		if jobID == 0 {
			ldg, err := ledger.Open(cfg.Logging.DB, cfg.Project.Name)
			if err != nil {
				return err
			}
			defer ldg.Close()
			id, ok, err := ldg.LastSuccessfulJob("")
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no successful job to validate")
			}
			jobID = id
		}

		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: parseLevel(cfg.Logging.Level),
		}))
		invalid, err := orchestrator.ValidateResponses(cfg, jobID, log)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(invalid) == 0 {
			fmt.Fprintf(w, "job %s: all responses valid\n", ledger.JobName(jobID))
			return nil
		}
		fmt.Fprintf(w, "job %s: %d invalid response document(s)\n",
			ledger.JobName(jobID), len(invalid))
		for _, path := range invalid {
			fmt.Fprintf(w, "  %s\n", path)
		}
		return fmt.Errorf("validation failed")
	},
}

func init() {
	validateCmd.Flags().IntVar(&validateJob, "job", 0,
		"job id to validate (default: last successful job)")
}
