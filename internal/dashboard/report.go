package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/dashloom/internal/pipeline"
	"github.com/KaramelBytes/dashloom/internal/table"
)

// PanelKind tells a renderer how to draw a panel.
type PanelKind string

const (
	Bar       PanelKind = "bar"
	Pie       PanelKind = "pie"
	Histogram PanelKind = "histogram"
	Heatmap   PanelKind = "heatmap"
	Line      PanelKind = "line"
	Scatter   PanelKind = "scatter"
	Grid      PanelKind = "table"
)

// Point is one labelled value of a series.
type Point struct {
	Label string  `json:"label" yaml:"label"`
	Value float64 `json:"value" yaml:"value"`
}

// Panel is plain tabular data for one chart or table. Exactly one of Series,
// Matrix or Columns/Rows is populated.
type Panel struct {
	Title   string             `json:"title" yaml:"title"`
	Kind    PanelKind          `json:"kind" yaml:"kind"`
	XLabel  string             `json:"x_label,omitempty" yaml:"x_label,omitempty"`
	YLabel  string             `json:"y_label,omitempty" yaml:"y_label,omitempty"`
	Series  []Point            `json:"series,omitempty" yaml:"series,omitempty"`
	Matrix  *pipeline.Crosstab `json:"matrix,omitempty" yaml:"matrix,omitempty"`
	Columns []string           `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows    [][]table.Value    `json:"rows,omitempty" yaml:"rows,omitempty"`
}

// Empty reports whether the panel has nothing to draw.
func (p Panel) Empty() bool {
	switch {
	case p.Matrix != nil:
		return len(p.Matrix.Rows) == 0
	case p.Columns != nil:
		return len(p.Rows) == 0
	default:
		return len(p.Series) == 0
	}
}

// Metric is a single headline number.
type Metric struct {
	Label string      `json:"label" yaml:"label"`
	Value table.Value `json:"value" yaml:"value"`
}

// Notice levels.
const (
	Info    = "info"
	Warning = "warning"
)

// Notice is a non-fatal message shown with the report.
type Notice struct {
	Level   string `json:"level" yaml:"level"`
	Message string `json:"message" yaml:"message"`
}

// Image is an inline asset shown with the report.
type Image struct {
	Caption string `json:"caption" yaml:"caption"`
	Name    string `json:"name" yaml:"name"`
	DataURI string `json:"data_uri" yaml:"data_uri"`
}

// Report is the result of one refresh.
type Report struct {
	ID          string            `json:"id" yaml:"id"`
	Dataset     string            `json:"dataset" yaml:"dataset"`
	Title       string            `json:"title" yaml:"title"`
	Source      string            `json:"source" yaml:"source"`
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	Selection   map[string]string `json:"selection" yaml:"selection"`
	// Total is the size of the prepared dataset, Rows the size of the view.
	Total   int      `json:"total" yaml:"total"`
	Rows    int      `json:"rows" yaml:"rows"`
	Metrics []Metric `json:"metrics" yaml:"metrics"`
	Panels  []Panel  `json:"panels" yaml:"panels"`
	Images  []Image  `json:"images,omitempty" yaml:"images,omitempty"`
	Notices []Notice `json:"notices,omitempty" yaml:"notices,omitempty"`
}

// Panel returns the panel with the given title.
func (r *Report) Panel(title string) (Panel, bool) {
	for _, p := range r.Panels {
		if p.Title == title {
			return p, true
		}
	}
	return Panel{}, false
}

// Metric returns the metric with the given label.
func (r *Report) Metric(label string) (table.Value, bool) {
	for _, m := range r.Metrics {
		if m.Label == label {
			return m.Value, true
		}
	}
	return table.Value{}, false
}

// Markdown renders the report for the terminal. Long tabular panels are cut
// to maxRows rows; 0 prints everything.
func (r *Report) Markdown(maxRows int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# %s\n\n", r.Title))
	b.WriteString("[DASHBOARD]\n")
	b.WriteString(fmt.Sprintf("Dataset: %s", r.Dataset))
	if r.Source != "" {
		b.WriteString(fmt.Sprintf(" (%s)", r.Source))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Refresh: %s\n", r.ID))
	b.WriteString(fmt.Sprintf("Filters: %s\n", selectionLine(r.Selection)))
	b.WriteString(fmt.Sprintf("Rows: %d of %d\n", r.Rows, r.Total))

	if len(r.Metrics) > 0 {
		b.WriteString("\n[METRICS]\n")
		for _, m := range r.Metrics {
			b.WriteString(fmt.Sprintf("- %s: %s\n", m.Label, metricText(m.Value)))
		}
	}

	for _, p := range r.Panels {
		b.WriteString(fmt.Sprintf("\n## %s (%s)\n", p.Title, p.Kind))
		if p.Empty() {
			b.WriteString("(no data)\n")
			continue
		}
		switch {
		case p.Matrix != nil:
			writeMatrix(&b, p.Matrix)
		case p.Columns != nil:
			writeRows(&b, p.Columns, p.Rows, maxRows)
		default:
			for _, pt := range p.Series {
				b.WriteString(fmt.Sprintf("- %s: %s\n", cell(pt.Label), fmtNum(pt.Value)))
			}
		}
	}

	if len(r.Images) > 0 {
		b.WriteString("\n[IMAGES]\n")
		for _, img := range r.Images {
			b.WriteString(fmt.Sprintf("- %s: %s\n", img.Caption, img.Name))
		}
	}
	if len(r.Notices) > 0 {
		b.WriteString("\n[NOTICES]\n")
		for _, n := range r.Notices {
			mark := "ℹ"
			if n.Level == Warning {
				mark = "⚠"
			}
			b.WriteString(fmt.Sprintf("%s %s\n", mark, n.Message))
		}
	}
	return b.String()
}

func selectionLine(sel map[string]string) string {
	if len(sel) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(sel))
	for k := range sel {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + sel[k]
	}
	return strings.Join(parts, ", ")
}

func writeMatrix(b *strings.Builder, m *pipeline.Crosstab) {
	b.WriteString("| |")
	for _, c := range m.Cols {
		b.WriteString(" " + cell(c) + " |")
	}
	b.WriteString("\n|---|")
	b.WriteString(strings.Repeat("---|", len(m.Cols)))
	b.WriteString("\n")
	for i, row := range m.Rows {
		b.WriteString("| " + cell(row) + " |")
		for _, n := range m.Counts[i] {
			b.WriteString(fmt.Sprintf(" %d |", n))
		}
		b.WriteString("\n")
	}
}

func writeRows(b *strings.Builder, cols []string, rows [][]table.Value, maxRows int) {
	b.WriteString("|")
	for _, c := range cols {
		b.WriteString(" " + cell(c) + " |")
	}
	b.WriteString("\n|")
	b.WriteString(strings.Repeat("---|", len(cols)))
	b.WriteString("\n")
	n := len(rows)
	if maxRows > 0 && n > maxRows {
		n = maxRows
	}
	for _, row := range rows[:n] {
		b.WriteString("|")
		for _, v := range row {
			b.WriteString(" " + cell(v.Text()) + " |")
		}
		b.WriteString("\n")
	}
	if n < len(rows) {
		b.WriteString(fmt.Sprintf("… %d more rows\n", len(rows)-n))
	}
}

func metricText(v table.Value) string {
	if v.IsMissing() {
		return "n/a"
	}
	if v.Kind() == table.Float {
		return fmtNum(v.FloatVal())
	}
	return v.Text()
}

func fmtNum(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.2f", f)
}

func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
}
