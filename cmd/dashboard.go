package cmd

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom/internal/pipeline"
	"github.com/KaramelBytes/dashloom/internal/utils"
)

var (
	dashFilters []string
	dashFormat  string
	dashOutput  string
	dashRows    int
	dashOptions bool
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard <dataset> [file]",
	Short: "Render a dashboard for one filter selection",
	Long: `Loads the dataset, applies the --filter selections and prints every panel.
Filters not given default to All. Use --options to list the valid choices.`,
	Example: `  dashloom dashboard odi ODI_Match_info.csv --filter season=2011 --filter team=India
  dashloom dashboard playstore --filter category=GAME --filter min_rating=4.2 --format json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := openDataset(args)
		if err != nil {
			return err
		}

		if dashOptions {
			opts, err := ds.Options()
			if err != nil {
				return err
			}
			if strings.EqualFold(dashFormat, "markdown") {
				out := cmd.OutOrStdout()
				for _, o := range opts {
					fmt.Fprintf(out, "- %s (%s): ", o.Name, o.Label)
					if o.Min != nil {
						fmt.Fprintf(out, "%g .. %g\n", *o.Min, *o.Max)
						continue
					}
					fmt.Fprintln(out, strings.Join(o.Choices, ", "))
				}
				return nil
			}
			b, err := encode(opts, dashFormat)
			if err != nil {
				return err
			}
			return emit(cmd, b, dashOutput, "options")
		}

		sel, err := pipeline.ParseSelection(dashFilters)
		if err != nil {
			return err
		}
		rep, err := ds.Refresh(context.Background(), sel)
		if err != nil {
			return err
		}
		var b []byte
		if strings.EqualFold(dashFormat, "markdown") {
			b = []byte(rep.Markdown(dashRows))
		} else if b, err = encode(rep, dashFormat); err != nil {
			return err
		}
		return emit(cmd, b, dashOutput, "dashboard")
	},
}

// emit writes b to path, or to stdout when path is empty.
func emit(cmd *cobra.Command, b []byte, path, what string) error {
	if path == "" {
		if !bytes.HasSuffix(b, []byte("\n")) {
			b = append(b, '\n')
		}
		_, err := cmd.OutOrStdout().Write(b)
		return err
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s to %s\n", what, path)
	return nil
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().StringArrayVarP(&dashFilters, "filter", "f", nil, "filter selection as name=value (repeatable)")
	dashboardCmd.Flags().StringVar(&dashFormat, "format", "markdown", "output format: markdown|json|yaml")
	dashboardCmd.Flags().StringVarP(&dashOutput, "output", "o", "", "write output to a file instead of stdout")
	dashboardCmd.Flags().IntVar(&dashRows, "rows", 20, "markdown: max rows shown per table panel (0 = all)")
	dashboardCmd.Flags().BoolVar(&dashOptions, "options", false, "list filter choices instead of rendering")
}
