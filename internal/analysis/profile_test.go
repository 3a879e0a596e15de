package analysis

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/dashloom/internal/table"
)

func fixture(t *testing.T) *table.Table {
	t.Helper()
	s, err := table.NewSchema(
		table.Column{Name: "Group", Kind: table.String},
		table.Column{Name: "Score", Kind: table.Float},
		table.Column{Name: "Temp", Kind: table.Int},
		table.Column{Name: "Note", Kind: table.String},
	)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	scores := []float64{10, 11, 9.5, 10.5, 9.8, 10.2, 8.8, 9.7, 50, 10.1}
	temps := []int64{70, 71, 69, 75, 74, 73, 68, 76, 95, 72}
	notes := []string{"first", "second", "third", "fourth", "fifth", "sixth", "seventh", "eighth", "ninth", "tenth"}
	groups := []string{"A", "A", "A", "B", "B", "B", "A", "B", "A", "B"}
	rows := make([][]table.Value, len(scores))
	for i := range scores {
		rows[i] = []table.Value{table.Str(groups[i]), table.FloatValue(scores[i]), table.IntValue(temps[i]), table.Str(notes[i])}
	}
	rows[3][2] = table.Missing(table.Int)
	tbl, err := table.FromRows(s, rows)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	return tbl
}

func column(t *testing.T, r *Report, name string) ColumnSummary {
	t.Helper()
	for _, c := range r.Cols {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("column %s not in report", name)
	return ColumnSummary{}
}

func TestProfileColumnKindsAndStats(t *testing.T) {
	opt := DefaultOptions()
	opt.Correlations = true
	opt.GroupBy = []string{"Group"}
	rep, err := Profile("fixture", fixture(t), opt)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if rep.Rows != 10 || len(rep.Cols) != 4 || len(rep.Samples) != 5 {
		t.Fatalf("rows=%d cols=%d samples=%d", rep.Rows, len(rep.Cols), len(rep.Samples))
	}

	score := column(t, rep, "Score")
	if score.Kind != "numeric" || score.Min != 8.8 || score.Max != 50 {
		t.Fatalf("score summary = %+v", score)
	}
	if math.Abs(score.Mean-13.96) > 1e-9 {
		t.Fatalf("mean = %v", score.Mean)
	}
	if score.OutliersCount != 1 || score.OutliersMaxAbsZ <= opt.OutlierThreshold {
		t.Fatalf("outliers = %d (max |z| %.2f)", score.OutliersCount, score.OutliersMaxAbsZ)
	}

	temp := column(t, rep, "Temp")
	if temp.NonNull != 9 || temp.Missing != 1 {
		t.Fatalf("temp counts = %+v", temp)
	}

	group := column(t, rep, "Group")
	if group.Kind != "categorical" || len(group.TopValues) != 2 || group.TopValues[0] != (CategoryCount{"A", 5}) {
		t.Fatalf("group summary = %+v", group)
	}

	if len(rep.Groups) != 2 || rep.Groups[0].Key != "A" || rep.Groups[0].Metrics["Score"].Count != 5 {
		t.Fatalf("groups = %+v", rep.Groups)
	}
	if rep.Corr == nil || len(rep.Corr.Columns) != 2 || rep.Corr.Values[0][1] <= 0.9 {
		t.Fatalf("corr = %+v", rep.Corr)
	}

	md := rep.Markdown()
	for _, want := range []string{"[DATASET SUMMARY]", "Dataset: fixture", "- Score: numeric", "[GROUP-BY SUMMARY]", "[CORRELATIONS]", "[HEAD AND SAMPLE ROWS]"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if _, err := json.Marshal(rep); err != nil {
		t.Fatalf("json: %v", err)
	}
}

func TestProfileEmptyView(t *testing.T) {
	empty := fixture(t).Select(func(table.Record) bool { return false })
	rep, err := Profile("empty", empty, DefaultOptions())
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if column(t, rep, "Score").Kind != "unknown" {
		t.Fatalf("empty numeric column should be unknown")
	}
	if len(rep.Warnings) != 1 || !strings.Contains(rep.Markdown(), "[NOTES]") {
		t.Fatalf("expected a note for the empty view")
	}
}

func TestProfileRejectsUnknownGroupColumn(t *testing.T) {
	opt := DefaultOptions()
	opt.GroupBy = []string{"Nope"}
	if _, err := Profile("x", fixture(t), opt); err == nil {
		t.Fatalf("expected error for unknown group column")
	}
}
