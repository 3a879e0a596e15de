// Package pipeline turns a raw dataset plus a filter selection into a filtered,
// enriched table and the aggregates a dashboard draws from it.
//
// Data moves one way: raw → Normalize → Derive → BuildPredicate/Apply →
// aggregates. Every stage returns a new table and never mutates its input.
package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/dashloom/internal/table"
)

// FieldRule converts one raw column into its canonical type. Parse must be
// total: unparseable input maps to a sentinel, never an error.
type FieldRule struct {
	Column string
	Kind   table.Kind
	Parse  func(raw string) table.Value
}

// Normalization is the full set of field rules for a dataset.
type Normalization struct {
	Rules []FieldRule
	// DropIfMissing removes rows whose normalized value is missing in any of
	// these columns.
	DropIfMissing []string
}

// Normalize applies n to every raw row. Columns without a rule pass through as
// trimmed strings (empty → missing). The only failure is a rule or drop column
// naming a column the source lacks.
func Normalize(raw *table.Raw, n Normalization) (*table.Table, error) {
	rules := make(map[string]FieldRule, len(n.Rules))
	need := make([]string, 0, len(n.Rules)+len(n.DropIfMissing))
	for _, r := range n.Rules {
		rules[r.Column] = r
		need = append(need, r.Column)
	}
	need = append(need, n.DropIfMissing...)
	if err := raw.Require(need...); err != nil {
		return nil, err
	}

	cols := make([]table.Column, len(raw.Header))
	parsers := make([]func(string) table.Value, len(raw.Header))
	for i, h := range raw.Header {
		if r, ok := rules[h]; ok {
			cols[i] = table.Column{Name: h, Kind: r.Kind}
			parsers[i] = r.Parse
			continue
		}
		cols[i] = table.Column{Name: h, Kind: table.String}
		parsers[i] = ParseCategory
	}
	schema, err := table.NewSchema(cols...)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", raw.Name, err)
	}

	drop := make([]int, 0, len(n.DropIfMissing))
	for _, c := range n.DropIfMissing {
		i, _ := schema.Index(c)
		drop = append(drop, i)
	}

	recs := make([]table.Record, 0, len(raw.Rows))
rows:
	for pos, row := range raw.Rows {
		vals := make([]table.Value, len(row))
		for i, cell := range row {
			vals[i] = parsers[i](cell)
		}
		for _, i := range drop {
			if vals[i].IsMissing() {
				continue rows
			}
		}
		rec, err := table.NewRecord(schema, pos, vals)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return table.New(schema, recs)
}

// ParseInstalls converts install-count strings such as "1,000,000+", "10K" or
// "2.5M" to an exact integer. K and M are only honoured as a final suffix.
// Anything unparseable, including empty input, is 0.
func ParseInstalls(raw string) table.Value {
	s := strings.ReplaceAll(raw, ",", "")
	s = strings.ReplaceAll(s, "+", "")
	s = strings.TrimSpace(s)

	zeros := 0
	switch {
	case strings.HasSuffix(s, "M"):
		zeros = 6
	case strings.HasSuffix(s, "K"):
		zeros = 3
	}
	if zeros > 0 {
		n, ok := scaleDecimal(strings.TrimSpace(s[:len(s)-1]), zeros)
		if !ok {
			return table.IntValue(0)
		}
		return table.IntValue(n)
	}
	if s == "" || !isDigits(s) {
		return table.IntValue(0)
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return table.IntValue(0)
	}
	return table.IntValue(i)
}

// scaleDecimal multiplies an unsigned decimal string by 10^zeros without going
// through floating point. Digits below one unit are dropped.
func scaleDecimal(s string, zeros int) (int64, bool) {
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, false
	}
	if (whole != "" && !isDigits(whole)) || (frac != "" && !isDigits(frac)) {
		return 0, false
	}
	if len(frac) > zeros {
		frac = frac[:zeros]
	}
	frac += strings.Repeat("0", zeros-len(frac))
	n, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseIntOrZero coerces to an integer, mapping failures to 0. Whole-valued
// floats ("12.0") are accepted.
func ParseIntOrZero(raw string) table.Value {
	v := ParseIntOrMissing(raw)
	if v.IsMissing() {
		return table.IntValue(0)
	}
	return v
}

// ParseIntOrMissing coerces to an integer, mapping failures to the missing marker.
func ParseIntOrMissing(raw string) table.Value {
	s := strings.TrimSpace(raw)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return table.IntValue(i)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return table.Missing(table.Int)
	}
	return table.IntValue(int64(f))
}

// ParseFloatOrMissing coerces to a float, mapping failures to the missing marker
// so a bad rating stays distinguishable from a true zero.
func ParseFloatOrMissing(raw string) table.Value {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return table.Missing(table.Float)
	}
	return table.FloatValue(f)
}

// ParseCategory trims a string; empty or NaN-like input is missing.
func ParseCategory(raw string) table.Value {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none", "n/a":
		return table.Missing(table.String)
	}
	return table.Str(s)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
