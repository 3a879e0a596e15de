package pipeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/dashloom/internal/table"
)

// Count is one group and its size.
type Count struct {
	Key   string `json:"key" yaml:"key"`
	Count int    `json:"count" yaml:"count"`
}

// Share is one group's percentage of the total.
type Share struct {
	Key     string  `json:"key" yaml:"key"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// PairCount is the size of a two-key group.
type PairCount struct {
	A     string `json:"a" yaml:"a"`
	B     string `json:"b" yaml:"b"`
	Count int    `json:"count" yaml:"count"`
}

// GroupMean is the mean of a value column within one group.
type GroupMean struct {
	Key   string  `json:"key" yaml:"key"`
	Mean  float64 `json:"mean" yaml:"mean"`
	Count int     `json:"count" yaml:"count"`
}

// Crosstab is a count matrix keyed by the sorted value sets of two columns.
type Crosstab struct {
	Rows   []string `json:"rows" yaml:"rows"`
	Cols   []string `json:"cols" yaml:"cols"`
	Counts [][]int  `json:"counts" yaml:"counts"`
}

// Bin is one equal-width histogram bucket, [Lo, Hi) except the last which
// includes Hi.
type Bin struct {
	Lo    float64 `json:"lo" yaml:"lo"`
	Hi    float64 `json:"hi" yaml:"hi"`
	Count int     `json:"count" yaml:"count"`
}

// CountBy counts records per value of col, largest first. Ties keep the order
// in which values first appear; missing values are skipped.
func CountBy(t *table.Table, col string) ([]Count, error) {
	vals, err := t.Column(col)
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	out := []Count{}
	for _, v := range vals {
		if v.IsMissing() {
			continue
		}
		k := v.Text()
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, Count{Key: k})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

// Shares is CountBy expressed as percentages of the non-missing total.
func Shares(t *table.Table, col string) ([]Share, error) {
	counts, err := CountBy(t, col)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	out := make([]Share, 0, len(counts))
	if total == 0 {
		return out, nil
	}
	for _, c := range counts {
		out = append(out, Share{Key: c.Key, Percent: float64(c.Count) * 100 / float64(total)})
	}
	return out, nil
}

// CountByPair counts records per (a, b) value pair, ordered by a then b.
// Records missing either value are skipped.
func CountByPair(t *table.Table, a, b string) ([]PairCount, error) {
	av, err := t.Column(a)
	if err != nil {
		return nil, err
	}
	bv, err := t.Column(b)
	if err != nil {
		return nil, err
	}
	type key struct{ a, b string }
	counts := map[key]int{}
	first := map[key][2]table.Value{}
	for i := range av {
		if av[i].IsMissing() || bv[i].IsMissing() {
			continue
		}
		k := key{av[i].Text(), bv[i].Text()}
		if _, ok := first[k]; !ok {
			first[k] = [2]table.Value{av[i], bv[i]}
		}
		counts[k]++
	}
	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		fi, fj := first[keys[i]], first[keys[j]]
		if !fi[0].Equal(fj[0]) {
			return fi[0].Less(fj[0])
		}
		return fi[1].Less(fj[1])
	})
	out := make([]PairCount, len(keys))
	for i, k := range keys {
		out[i] = PairCount{A: k.a, B: k.b, Count: counts[k]}
	}
	return out, nil
}

// CrosstabOf builds a count matrix of rowCol × colCol. Row and column keys are
// the sorted distinct non-missing values; zero rows yield an empty matrix.
func CrosstabOf(t *table.Table, rowCol, colCol string) (*Crosstab, error) {
	rv, err := t.Column(rowCol)
	if err != nil {
		return nil, err
	}
	cv, err := t.Column(colCol)
	if err != nil {
		return nil, err
	}
	var rkeys, ckeys []table.Value
	rset, cset := map[string]bool{}, map[string]bool{}
	for i := range rv {
		if rv[i].IsMissing() || cv[i].IsMissing() {
			continue
		}
		if !rset[rv[i].Text()] {
			rset[rv[i].Text()] = true
			rkeys = append(rkeys, rv[i])
		}
		if !cset[cv[i].Text()] {
			cset[cv[i].Text()] = true
			ckeys = append(ckeys, cv[i])
		}
	}
	sortValues(rkeys)
	sortValues(ckeys)
	ct := &Crosstab{Rows: texts(rkeys), Cols: texts(ckeys), Counts: make([][]int, len(rkeys))}
	rpos := make(map[string]int, len(rkeys))
	for i, k := range ct.Rows {
		rpos[k] = i
		ct.Counts[i] = make([]int, len(ckeys))
	}
	cpos := make(map[string]int, len(ckeys))
	for i, k := range ct.Cols {
		cpos[k] = i
	}
	for i := range rv {
		if rv[i].IsMissing() || cv[i].IsMissing() {
			continue
		}
		ct.Counts[rpos[rv[i].Text()]][cpos[cv[i].Text()]]++
	}
	return ct, nil
}

// TopN returns the n records with the largest col values. The sort is stable
// and descending, so equal keys keep their original relative order; missing
// values sort after every number. n <= 0 means all records.
func TopN(t *table.Table, col string, n int) (*table.Table, error) {
	i, ok := t.Schema().Index(col)
	if !ok {
		return nil, fmt.Errorf("%w: %s", table.ErrUnknownColumn, col)
	}
	recs := t.Records()
	sort.SliceStable(recs, func(a, b int) bool {
		va, vb := recs[a].At(i), recs[b].At(i)
		if va.IsMissing() || vb.IsMissing() {
			return !va.IsMissing() && vb.IsMissing()
		}
		return vb.Less(va)
	})
	if n > 0 && n < len(recs) {
		recs = recs[:n]
	}
	return table.New(t.Schema(), recs)
}

// Mean averages the numeric values of col, ignoring missing markers. ok is
// false when there is nothing to average.
func Mean(t *table.Table, col string) (mean float64, ok bool, err error) {
	vals, err := t.Column(col)
	if err != nil {
		return 0, false, err
	}
	var sum float64
	var n int
	for _, v := range vals {
		if x, okx := v.Number(); okx {
			sum += x
			n++
		}
	}
	if n == 0 {
		return 0, false, nil
	}
	return sum / float64(n), true, nil
}

// MeanBy averages valueCol per groupCol value, highest mean first. Groups with
// no numeric values are omitted.
func MeanBy(t *table.Table, groupCol, valueCol string) ([]GroupMean, error) {
	gv, err := t.Column(groupCol)
	if err != nil {
		return nil, err
	}
	vv, err := t.Column(valueCol)
	if err != nil {
		return nil, err
	}
	type acc struct {
		sum float64
		n   int
	}
	idx := map[string]int{}
	var keys []string
	var accs []acc
	for i := range gv {
		if gv[i].IsMissing() {
			continue
		}
		x, ok := vv[i].Number()
		if !ok {
			continue
		}
		k := gv[i].Text()
		j, seen := idx[k]
		if !seen {
			j = len(keys)
			idx[k] = j
			keys = append(keys, k)
			accs = append(accs, acc{})
		}
		accs[j].sum += x
		accs[j].n++
	}
	out := make([]GroupMean, len(keys))
	for i, k := range keys {
		out[i] = GroupMean{Key: k, Mean: accs[i].sum / float64(accs[i].n), Count: accs[i].n}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Mean == out[j].Mean {
			return out[i].Key < out[j].Key
		}
		return out[i].Mean > out[j].Mean
	})
	return out, nil
}

// Histogram buckets the numeric values of col into bins equal-width bins
// spanning their range. No values → no bins.
func Histogram(t *table.Table, col string, bins int) ([]Bin, error) {
	vals, err := t.Column(col)
	if err != nil {
		return nil, err
	}
	if bins <= 0 {
		bins = 10
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	var xs []float64
	for _, v := range vals {
		if x, ok := v.Number(); ok {
			xs = append(xs, x)
			lo = math.Min(lo, x)
			hi = math.Max(hi, x)
		}
	}
	if len(xs) == 0 {
		return []Bin{}, nil
	}
	if lo == hi {
		return []Bin{{Lo: lo, Hi: hi, Count: len(xs)}}, nil
	}
	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lo = lo + float64(i)*width
		out[i].Hi = lo + float64(i+1)*width
	}
	out[bins-1].Hi = hi
	for _, x := range xs {
		b := int((x - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		out[b].Count++
	}
	return out, nil
}

// Distinct returns the sorted distinct non-missing values found across cols.
func Distinct(t *table.Table, cols ...string) ([]string, error) {
	seen := map[string]bool{}
	var vals []table.Value
	for _, c := range cols {
		cv, err := t.Column(c)
		if err != nil {
			return nil, err
		}
		for _, v := range cv {
			if v.IsMissing() || seen[v.Text()] {
				continue
			}
			seen[v.Text()] = true
			vals = append(vals, v)
		}
	}
	sortValues(vals)
	return texts(vals), nil
}

// NUnique counts the distinct non-missing values of col.
func NUnique(t *table.Table, col string) (int, error) {
	d, err := Distinct(t, col)
	if err != nil {
		return 0, err
	}
	return len(d), nil
}

// Range returns the min and max numeric value of col.
func Range(t *table.Table, col string) (lo, hi float64, ok bool, err error) {
	vals, err := t.Column(col)
	if err != nil {
		return 0, 0, false, err
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if x, okx := v.Number(); okx {
			ok = true
			lo = math.Min(lo, x)
			hi = math.Max(hi, x)
		}
	}
	if !ok {
		return 0, 0, false, nil
	}
	return lo, hi, true, nil
}

func sortValues(vs []table.Value) {
	sort.SliceStable(vs, func(i, j int) bool { return vs[i].Less(vs[j]) })
}

func texts(vs []table.Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Text()
	}
	return out
}
