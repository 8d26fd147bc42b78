package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/orbitqc/internal/ledger"
)

var (
	cleanupJob int
	cleanupAll bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove recorded jobs and their artifacts",
	Long: `Cleanup deletes job state: the ledger rows, the job's log file, and its
response directory. With --all the entire ledger database and logging
directory are removed and the project starts over.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cleanupJob == 0 && !cleanupAll {
			return fmt.Errorf("nothing to do: pass --job or --all")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ldg, err := ledger.Open(cfg.Logging.DB, cfg.Project.Name)
		if err != nil {
			return err
		}
		defer ldg.Close()

		w := cmd.OutOrStdout()
		if cleanupAll {
			if err := ldg.DeleteAll(); err != nil {
				return err
			}
			ldg.Close()
			if err := os.Remove(cfg.Logging.DB); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove ledger database: %w", err)
			}
			if err := os.RemoveAll(cfg.Logging.Directory); err != nil {
				return fmt.Errorf("remove logging directory: %w", err)
			}
			fmt.Fprintln(w, "all jobs removed")
			return nil
		}

		if err := ldg.DeleteJob(cleanupJob); err != nil {
			return err
		}
		name := ledger.JobName(cleanupJob)
		if err := os.Remove(filepath.Join(cfg.Logging.Directory, name+".log")); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove job log: %w", err)
		}
		if err := os.RemoveAll(filepath.Join(cfg.Logging.Directory, name)); err != nil {
			return fmt.Errorf("remove job responses: %w", err)
		}
		fmt.Fprintf(w, "job %s removed\n", name)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupJob, "job", 0, "job id to remove")
	cleanupCmd.Flags().BoolVar(&cleanupAll, "all", false, "remove every job and the ledger itself")
}
