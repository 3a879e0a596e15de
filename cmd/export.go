package cmd

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/dashloom/internal/pipeline"
	"github.com/KaramelBytes/dashloom/internal/table"
)

var (
	expFilters []string
	expOutput  string
	expFormat  string
	expLimit   int
)

var exportCmd = &cobra.Command{
	Use:   "export <dataset> [file]",
	Short: "Write the filtered, enriched rows to a file or stdout",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := openDataset(args)
		if err != nil {
			return err
		}
		sel, err := pipeline.ParseSelection(expFilters)
		if err != nil {
			return err
		}
		view, err := ds.View(sel)
		if err != nil {
			return err
		}
		if expLimit > 0 {
			view = view.Head(expLimit)
		}

		format := expFormat
		if format == "" {
			format = strings.TrimPrefix(strings.ToLower(filepath.Ext(expOutput)), ".")
		}
		if format == "" {
			format = "csv"
		}
		var b []byte
		switch format {
		case "csv":
			b, err = encodeCSV(view)
		case "xlsx":
			b, err = encodeXLSX(view, ds.Definition().Name)
		default:
			b, err = encode(view.Maps(), format)
		}
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"dataset": ds.Definition().Name, "rows": view.Len(), "format": format}).Debug("export")
		return emit(cmd, b, expOutput, fmt.Sprintf("%d rows", view.Len()))
	},
}

func encodeCSV(t *table.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Schema().Names()); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows()); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeXLSX writes one sheet named after the dataset. Numbers stay numeric;
// missing cells are left blank.
func encodeXLSX(t *table.Table, sheet string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	header := make([]interface{}, 0, t.Schema().Len())
	for _, n := range t.Schema().Names() {
		header = append(header, n)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("xlsx header: %w", err)
	}
	for i, r := range t.Records() {
		row := make([]interface{}, 0, t.Schema().Len())
		for _, v := range r.Values() {
			switch {
			case v.IsMissing():
				row = append(row, nil)
			case v.Kind() == table.Int:
				row = append(row, v.IntVal())
			case v.Kind() == table.Float:
				row = append(row, v.FloatVal())
			default:
				row = append(row, v.StringVal())
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", i+1, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringArrayVarP(&expFilters, "filter", "f", nil, "filter selection as name=value (repeatable)")
	exportCmd.Flags().StringVarP(&expOutput, "output", "o", "", "output file; format follows the extension unless --format is set")
	exportCmd.Flags().StringVar(&expFormat, "format", "", "csv|json|yaml|xlsx (default: from --output extension, else csv)")
	exportCmd.Flags().IntVar(&expLimit, "limit", 0, "maximum rows to export (0 = all)")
}
