package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/orbitqc/internal/config"
	"github.com/lucasnoah/orbitqc/internal/ledger"
	"github.com/lucasnoah/orbitqc/internal/orchestrator"
	"github.com/lucasnoah/orbitqc/internal/stages"
)

var runCmd = &cobra.Command{
	Use:   "run [stage...]",
	Short: "Run the pipeline as one job",
	Long: `Run executes the configured stage list as a single job. Naming stages
restricts the job to that subset, in the given order; they must be part of
the configured pipeline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Store(); err != nil {
			return err
		}

		ldg, err := ledger.Open(cfg.Logging.DB, cfg.Project.Name)
		if err != nil {
			return err
		}
		defer ldg.Close()

		jobID, err := ldg.JobID()
		if err != nil {
			return err
		}
		log, closeLog, err := newJobLogger(cfg, jobID)
		if err != nil {
			return err
		}
		defer closeLog()

		orch := orchestrator.New(cfg, ldg, stages.All(), log)
		if err := orch.Run(args); err != nil {
			return err
		}

		invalid, err := orchestrator.ValidateResponses(cfg, jobID, log)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "job %s completed\n", ledger.JobName(jobID))
		if len(invalid) > 0 {
			fmt.Fprintf(w, "%d response document(s) failed schema validation:\n", len(invalid))
			for _, path := range invalid {
				fmt.Fprintf(w, "  %s\n", path)
			}
		}
		return nil
	},
}

// newJobLogger builds the job's logger: structured output to stderr and a
// plain copy in the job's NNNNN.log file.
func newJobLogger(cfg *config.Config, jobID int) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(cfg.Logging.Directory, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create logging directory: %w", err)
	}
	path := filepath.Join(cfg.Logging.Directory, ledger.JobName(jobID)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open job log %s: %w", path, err)
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stderr, f), &slog.HandlerOptions{
		Level: parseLevel(cfg.Logging.Level),
	})
	return slog.New(h), func() { f.Close() }, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
