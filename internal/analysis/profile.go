// Package analysis profiles a table column by column for the describe command.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/dashloom/internal/table"
)

// Options controls profiling.
type Options struct {
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// TopValues caps the top values listed for categorical columns.
	TopValues int
	// GroupBy computes per-group summaries keyed by these columns.
	GroupBy []string
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// Outlier detection via robust Z-score (MAD). If Outliers is true, counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{
		SampleRows:       5,
		TopValues:        8,
		Outliers:         true,
		OutlierThreshold: 3.5,
	}
}

// Report is a markdown-friendly profile of a table.
type Report struct {
	Name     string          `json:"name" yaml:"name"`
	Rows     int             `json:"rows" yaml:"rows"`
	Cols     []ColumnSummary `json:"columns" yaml:"columns"`
	Samples  [][]string      `json:"samples,omitempty" yaml:"samples,omitempty"`
	Warnings []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Groups   []GroupResult   `json:"groups,omitempty" yaml:"groups,omitempty"`
	Corr     *CorrMatrix     `json:"correlations,omitempty" yaml:"correlations,omitempty"`
}

// ColumnSummary captures the kind and statistics of one column.
type ColumnSummary struct {
	Name    string `json:"name" yaml:"name"`
	Kind    string `json:"kind" yaml:"kind"` // numeric|categorical|text|unknown
	NonNull int    `json:"non_null" yaml:"non_null"`
	Missing int    `json:"missing" yaml:"missing"`
	Unique  int    `json:"unique" yaml:"unique"`
	// Numeric stats
	Min  float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max  float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Mean float64 `json:"mean,omitempty" yaml:"mean,omitempty"`
	Std  float64 `json:"std,omitempty" yaml:"std,omitempty"`
	// Outliers (robust Z via MAD)
	OutliersCount    int     `json:"outliers,omitempty" yaml:"outliers,omitempty"`
	OutliersMaxAbsZ  float64 `json:"outliers_max_abs_z,omitempty" yaml:"outliers_max_abs_z,omitempty"`
	OutlierThreshold float64 `json:"outlier_threshold,omitempty" yaml:"outlier_threshold,omitempty"`
	// Categorical top values
	TopValues    []CategoryCount `json:"top_values,omitempty" yaml:"top_values,omitempty"`
	ExampleTexts []string        `json:"examples,omitempty" yaml:"examples,omitempty"`
}

type CategoryCount struct {
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
}

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key     string                `json:"key" yaml:"key"`
	Size    int                   `json:"size" yaml:"size"`
	Metrics map[string]NumSummary `json:"metrics" yaml:"metrics"` // by column name
}

type NumSummary struct {
	Count int     `json:"count" yaml:"count"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Mean  float64 `json:"mean" yaml:"mean"`
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string    `json:"columns" yaml:"columns"`
	Values  [][]float64 `json:"values" yaml:"values"` // row-major, Values[i][j]
}

// Profile summarizes every column of t. name labels the report.
func Profile(name string, t *table.Table, opt Options) (*Report, error) {
	if opt.TopValues <= 0 {
		opt.TopValues = 8
	}
	schema := t.Schema()
	rep := &Report{Name: name, Rows: t.Len()}

	var numeric []string
	for _, col := range schema.Columns() {
		vals, err := t.Column(col.Name)
		if err != nil {
			return nil, err
		}
		s := summarize(col, vals, opt)
		if s.Kind == "numeric" {
			numeric = append(numeric, col.Name)
		}
		rep.Cols = append(rep.Cols, s)
	}

	if len(opt.GroupBy) > 0 {
		groups, err := groupBy(t, opt.GroupBy, numeric)
		if err != nil {
			return nil, err
		}
		rep.Groups = groups
	}
	if opt.Correlations && len(numeric) >= 2 {
		rep.Corr = correlations(t, numeric)
	}
	if opt.SampleRows > 0 {
		rep.Samples = t.Head(opt.SampleRows).Rows()
	}
	if t.Len() == 0 {
		rep.Warnings = append(rep.Warnings, "no rows match the current filters")
	}
	return rep, nil
}

func summarize(col table.Column, vals []table.Value, opt Options) ColumnSummary {
	s := ColumnSummary{Name: col.Name}
	counts := map[string]int{}
	var nums []float64
	var examples []string
	// Welford running mean/variance
	var n int
	var mean, m2 float64
	for _, v := range vals {
		if v.IsMissing() {
			s.Missing++
			continue
		}
		s.NonNull++
		key := v.Text()
		if counts[key] == 0 && len(examples) < 3 {
			examples = append(examples, key)
		}
		counts[key]++
		if x, ok := v.Number(); ok {
			nums = append(nums, x)
			n++
			d := x - mean
			mean += d / float64(n)
			m2 += d * (x - mean)
		}
	}
	s.Unique = len(counts)

	switch {
	case s.NonNull == 0:
		s.Kind = "unknown"
	case col.Kind != table.String:
		s.Kind = "numeric"
		s.Min, s.Max = nums[0], nums[0]
		for _, x := range nums {
			s.Min = math.Min(s.Min, x)
			s.Max = math.Max(s.Max, x)
		}
		s.Mean = mean
		if n > 1 {
			s.Std = math.Sqrt(m2 / float64(n-1))
		}
		if opt.Outliers && len(nums) >= 8 {
			thr := opt.OutlierThreshold
			if thr <= 0 {
				thr = 3.5
			}
			s.OutlierThreshold = thr
			s.OutliersCount, s.OutliersMaxAbsZ = robustOutliers(nums, thr)
		}
	case s.Unique <= 20 || s.Unique*2 <= s.NonNull:
		s.Kind = "categorical"
		tops := make([]CategoryCount, 0, len(counts))
		for k, c := range counts {
			tops = append(tops, CategoryCount{Value: k, Count: c})
		}
		sort.Slice(tops, func(i, j int) bool {
			if tops[i].Count == tops[j].Count {
				return tops[i].Value < tops[j].Value
			}
			return tops[i].Count > tops[j].Count
		})
		if len(tops) > opt.TopValues {
			tops = tops[:opt.TopValues]
		}
		s.TopValues = tops
	default:
		s.Kind = "text"
		s.ExampleTexts = examples
	}
	return s
}

// robustOutliers counts values whose robust z-score exceeds thr.
func robustOutliers(vals []float64, thr float64) (count int, maxAbsZ float64) {
	median, mad := medianMAD(vals)
	if mad == 0 {
		return 0, 0
	}
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			count++
		}
		if az > maxAbsZ {
			maxAbsZ = az
		}
	}
	return count, maxAbsZ
}

type groupAcc struct {
	size    int
	metrics map[string]*NumSummary
}

func groupBy(t *table.Table, keys, numeric []string) ([]GroupResult, error) {
	for _, k := range keys {
		if _, err := t.Schema().Column(k); err != nil {
			return nil, fmt.Errorf("group by: %w", err)
		}
	}
	groups := map[string]*groupAcc{}
	for _, r := range t.Records() {
		parts := make([]string, len(keys))
		for i, k := range keys {
			v := r.Get(k)
			if v.IsMissing() {
				parts[i] = "(missing)"
			} else {
				parts[i] = v.Text()
			}
		}
		key := strings.Join(parts, " / ")
		g := groups[key]
		if g == nil {
			g = &groupAcc{metrics: map[string]*NumSummary{}}
			groups[key] = g
		}
		g.size++
		for _, c := range numeric {
			x, ok := r.Get(c).Number()
			if !ok {
				continue
			}
			m := g.metrics[c]
			if m == nil {
				m = &NumSummary{Min: x, Max: x}
				g.metrics[c] = m
			}
			m.Count++
			m.Mean += (x - m.Mean) / float64(m.Count)
			m.Min = math.Min(m.Min, x)
			m.Max = math.Max(m.Max, x)
		}
	}
	out := make([]GroupResult, 0, len(groups))
	for k, g := range groups {
		gr := GroupResult{Key: k, Size: g.size, Metrics: make(map[string]NumSummary, len(g.metrics))}
		for c, m := range g.metrics {
			gr.Metrics[c] = *m
		}
		out = append(out, gr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	return out, nil
}

// correlations uses pairwise-complete observations. Undefined pairs are 0.
func correlations(t *table.Table, cols []string) *CorrMatrix {
	n := len(cols)
	cm := &CorrMatrix{Columns: cols, Values: make([][]float64, n)}
	for i := range cm.Values {
		cm.Values[i] = make([]float64, n)
		cm.Values[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var cnt, sx, sy, sxx, syy, sxy float64
			for _, r := range t.Records() {
				x, okx := r.Get(cols[i]).Number()
				y, oky := r.Get(cols[j]).Number()
				if !okx || !oky {
					continue
				}
				cnt++
				sx += x
				sy += y
				sxx += x * x
				syy += y * y
				sxy += x * y
			}
			r := 0.0
			if cnt >= 2 {
				num := cnt*sxy - sx*sy
				den := math.Sqrt(cnt*sxx-sx*sx) * math.Sqrt(cnt*syy-sy*sy)
				if den > 0 {
					r = num / den
				}
			}
			cm.Values[i][j], cm.Values[j][i] = r, r
		}
	}
	return cm
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
