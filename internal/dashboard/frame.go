package dashboard

import (
	"errors"
	"fmt"
	"math"

	"github.com/KaramelBytes/dashloom/internal/assets"
	"github.com/KaramelBytes/dashloom/internal/pipeline"
	"github.com/KaramelBytes/dashloom/internal/table"
)

// Frame is what a Build function sees during one refresh: the full prepared
// table, the filtered view and the selection that produced it. Build adds
// metrics, panels and notices through it.
type Frame struct {
	Full      *table.Table
	View      *table.Table
	Selection pipeline.Selection
	Options   Options

	report *Report
}

// Metric records a headline number.
func (f *Frame) Metric(label string, v table.Value) {
	f.report.Metrics = append(f.report.Metrics, Metric{Label: label, Value: v})
}

// Add appends a panel.
func (f *Frame) Add(p Panel) {
	f.report.Panels = append(f.report.Panels, p)
}

// Notice appends a message shown with the report.
func (f *Frame) Notice(level, format string, args ...interface{}) {
	f.report.Notices = append(f.report.Notices, Notice{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Asset looks up an optional image in the assets directory. When it is absent
// the miss is recorded as a notice at the given level and false is returned.
func (f *Frame) Asset(caption, name, level string, exts ...string) bool {
	a, err := assets.Lookup(f.Options.AssetsDir, name, exts...)
	if err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			f.Notice(level, "No image found for %s", caption)
		} else {
			f.Notice(Warning, "Image for %s unavailable: %v", caption, err)
		}
		return false
	}
	f.report.Images = append(f.report.Images, Image{Caption: caption, Name: a.Name, DataURI: a.DataURI()})
	return true
}

// CountPanel turns value counts into a series.
func CountPanel(title string, kind PanelKind, counts []pipeline.Count) Panel {
	s := make([]Point, len(counts))
	for i, c := range counts {
		s[i] = Point{Label: c.Key, Value: float64(c.Count)}
	}
	return Panel{Title: title, Kind: kind, Series: s}
}

// SharePanel turns percentage shares into a series.
func SharePanel(title string, shares []pipeline.Share) Panel {
	s := make([]Point, len(shares))
	for i, sh := range shares {
		s[i] = Point{Label: sh.Key, Value: sh.Percent}
	}
	return Panel{Title: title, Kind: Pie, Series: s}
}

// MeanPanel turns group means into a bar series.
func MeanPanel(title string, means []pipeline.GroupMean) Panel {
	s := make([]Point, len(means))
	for i, m := range means {
		s[i] = Point{Label: m.Key, Value: m.Mean}
	}
	return Panel{Title: title, Kind: Bar, Series: s}
}

// HistogramPanel labels each bin by its bounds.
func HistogramPanel(title, xlabel string, bins []pipeline.Bin) Panel {
	s := make([]Point, len(bins))
	for i, b := range bins {
		s[i] = Point{Label: fmt.Sprintf("%.3g–%.3g", b.Lo, b.Hi), Value: float64(b.Count)}
	}
	return Panel{Title: title, Kind: Histogram, XLabel: xlabel, YLabel: "count", Series: s}
}

// MatrixPanel wraps a crosstab.
func MatrixPanel(title string, ct *pipeline.Crosstab) Panel {
	return Panel{Title: title, Kind: Heatmap, Matrix: ct}
}

// TablePanel copies the named columns of t into a panel.
func TablePanel(title string, kind PanelKind, t *table.Table, cols ...string) (Panel, error) {
	for _, c := range cols {
		if _, err := t.Schema().Column(c); err != nil {
			return Panel{}, err
		}
	}
	rows := make([][]table.Value, 0, t.Len())
	for _, r := range t.Records() {
		row := make([]table.Value, len(cols))
		for i, c := range cols {
			row[i] = r.Get(c)
		}
		rows = append(rows, row)
	}
	return Panel{Title: title, Kind: kind, Columns: cols, Rows: rows}, nil
}

// PairPanel lays out two-key counts as rows, e.g. one line per team over seasons.
func PairPanel(title string, kind PanelKind, a, b, count string, pairs []pipeline.PairCount) Panel {
	rows := make([][]table.Value, len(pairs))
	for i, p := range pairs {
		rows[i] = []table.Value{table.Str(p.A), table.Str(p.B), table.IntValue(int64(p.Count))}
	}
	return Panel{Title: title, Kind: kind, XLabel: a, YLabel: count, Columns: []string{a, b, count}, Rows: rows}
}

// Round2 rounds to two decimals for display.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func headCounts(c []pipeline.Count, n int) []pipeline.Count {
	if n > 0 && len(c) > n {
		return c[:n]
	}
	return c
}

func headMeans(m []pipeline.GroupMean, n int) []pipeline.GroupMean {
	if n > 0 && len(m) > n {
		return m[:n]
	}
	return m
}
