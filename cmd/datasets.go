package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom/internal/dashboard"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List available dashboards and the columns they need",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, def := range dashboard.Definitions() {
			fmt.Fprintf(out, "- %s: %s\n", def.Name, def.Title)
			src := sourceFor(def, nil)
			if src == "" {
				src = "(built-in sample)"
			}
			fmt.Fprintf(out, "  source: %s\n", src)
			fmt.Fprintf(out, "  requires: %s\n", strings.Join(def.Required, ", "))
			names := make([]string, len(def.Filters))
			for i, f := range def.Filters {
				names[i] = fmt.Sprintf("%s (%s)", f.Name, f.Kind)
			}
			fmt.Fprintf(out, "  filters: %s\n", strings.Join(names, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
}
