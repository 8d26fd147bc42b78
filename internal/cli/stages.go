package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/orbitqc/internal/stages"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the available pipeline stages",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := stages.All()
		names := make([]string, 0, len(registry))
		for name := range registry {
			names = append(names, name)
		}
		sort.Strings(names)

		w := cmd.OutOrStdout()
		for _, name := range names {
			fmt.Fprintf(w, "%-12s %s\n", name, registry[name].Description)
		}
		return nil
	},
}
