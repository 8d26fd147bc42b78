package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/orbitqc/internal/ledger"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the project's recorded jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ldg, err := ledger.Open(cfg.Logging.DB, cfg.Project.Name)
		if err != nil {
			return err
		}
		defer ldg.Close()

		jobs, err := ldg.Jobs()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(jobs) == 0 {
			fmt.Fprintln(w, "No jobs recorded.")
			return nil
		}

		fmt.Fprintf(w, "%-8s %-24s %-24s %-8s %s\n", "JOB", "START", "END", "RESULT", "REASON")
		fmt.Fprintf(w, "%-8s %-24s %-24s %-8s %s\n",
			strings.Repeat("-", 8),
			strings.Repeat("-", 24),
			strings.Repeat("-", 24),
			strings.Repeat("-", 8),
			strings.Repeat("-", 6))
		for _, j := range jobs {
			end, result := "-", "running"
			if j.End != nil {
				end = j.End.Format("2006-01-02 15:04:05")
			}
			if j.Success != nil {
				if *j.Success {
					result = "ok"
				} else {
					result = "failed"
				}
			}
			fmt.Fprintf(w, "%-8s %-24s %-24s %-8s %s\n",
				ledger.JobName(j.ID),
				j.Start.Format("2006-01-02 15:04:05"),
				end, result, j.Reason)
		}
		return nil
	},
}
