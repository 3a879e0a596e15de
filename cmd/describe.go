package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom/internal/analysis"
	"github.com/KaramelBytes/dashloom/internal/pipeline"
)

var (
	descFilters    []string
	descOutput     string
	descFormat     string
	descSampleRows int
	descGroupBy    []string
	descCorr       bool
	descOutliers   bool
	descOutlierThr float64
)

var describeCmd = &cobra.Command{
	Use:   "describe <dataset> [file]",
	Short: "Profile the columns of a (filtered) dataset",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := openDataset(args)
		if err != nil {
			return err
		}
		sel, err := pipeline.ParseSelection(descFilters)
		if err != nil {
			return err
		}
		view, err := ds.View(sel)
		if err != nil {
			return err
		}

		opt := analysis.DefaultOptions()
		if descSampleRows >= 0 {
			opt.SampleRows = descSampleRows
		}
		opt.GroupBy = descGroupBy
		opt.Correlations = descCorr
		if cmd.Flags().Changed("outliers") {
			opt.Outliers = descOutliers
		}
		if descOutlierThr > 0 {
			opt.OutlierThreshold = descOutlierThr
		}
		rep, err := analysis.Profile(ds.Source(), view, opt)
		if err != nil {
			return err
		}

		var b []byte
		if strings.EqualFold(descFormat, "markdown") {
			b = []byte(rep.Markdown())
		} else if b, err = encode(rep, descFormat); err != nil {
			return err
		}
		return emit(cmd, b, descOutput, "profile")
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringArrayVarP(&descFilters, "filter", "f", nil, "filter selection as name=value (repeatable)")
	describeCmd.Flags().StringVarP(&descOutput, "output", "o", "", "optional path to write the profile")
	describeCmd.Flags().StringVar(&descFormat, "format", "markdown", "output format: markdown|json|yaml")
	describeCmd.Flags().IntVar(&descSampleRows, "sample-rows", 5, "number of sample rows to include")
	describeCmd.Flags().StringSliceVar(&descGroupBy, "group-by", nil, "comma-separated column names to group by (repeatable)")
	describeCmd.Flags().BoolVar(&descCorr, "correlations", false, "compute Pearson correlations among numeric columns")
	describeCmd.Flags().BoolVar(&descOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	describeCmd.Flags().Float64Var(&descOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
}
