package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/heimdalr/dag"

	"github.com/KaramelBytes/dashloom/internal/table"
)

var (
	// ErrNoTitle is returned when a name carries no "Word." honorific.
	ErrNoTitle = errors.New("no title found in name")
	// ErrUnknownDependency is returned when a derived rule depends on a column
	// that neither the source nor another rule provides.
	ErrUnknownDependency = errors.New("derived field depends on unknown column")
)

// DerivedRule computes a new column from one already-normalized record.
type DerivedRule struct {
	Name      string
	Kind      table.Kind
	DependsOn []string
	Compute   func(table.Record) (table.Value, error)
}

// RecordError attributes a derivation failure to one source record.
type RecordError struct {
	Row   int
	Field string
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: derive %s: %v", e.Row, e.Field, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Violations collects every record that broke a derived rule's input contract.
type Violations []*RecordError

func (v Violations) Error() string {
	switch len(v) {
	case 0:
		return "no violations"
	case 1:
		return v[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", v[0].Error(), len(v)-1)
}

// Unwrap exposes the individual errors to errors.Is / errors.As.
func (v Violations) Unwrap() []error {
	out := make([]error, len(v))
	for i, e := range v {
		out[i] = e
	}
	return out
}

// Derive appends one column per rule. Rules run in dependency order; a rule
// that fails on a record leaves a missing cell and is reported in the returned
// Violations, which accompany a complete table. Any other error means the
// rules themselves are inconsistent and no table is returned.
func Derive(t *table.Table, rules []DerivedRule) (*table.Table, error) {
	if len(rules) == 0 {
		return t, nil
	}
	ordered, err := orderRules(t.Schema(), rules)
	if err != nil {
		return nil, err
	}
	extra := make([]table.Column, len(ordered))
	for i, r := range ordered {
		extra[i] = table.Column{Name: r.Name, Kind: r.Kind}
	}
	schema, err := t.Schema().Extend(extra...)
	if err != nil {
		return nil, fmt.Errorf("derive: %w", err)
	}

	var violations Violations
	recs := make([]table.Record, 0, t.Len())
	for _, src := range t.Records() {
		vals := make([]table.Value, 0, len(ordered))
		// Rebind after each rule so later rules can read earlier results.
		cur := src
		for i, r := range ordered {
			v, err := r.Compute(cur)
			if err != nil {
				violations = append(violations, &RecordError{Row: src.Pos(), Field: r.Name, Err: err})
				v = table.Missing(r.Kind)
			}
			vals = append(vals, v)
			partial := make([]table.Value, len(ordered))
			copy(partial, vals)
			for j := i + 1; j < len(ordered); j++ {
				partial[j] = table.Missing(ordered[j].Kind)
			}
			cur, err = table.Rebind(schema, src, partial)
			if err != nil {
				return nil, err
			}
		}
		recs = append(recs, cur)
	}
	out, err := table.New(schema, recs)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return out, violations
	}
	return out, nil
}

// orderRules sorts rules so every rule follows the rules it depends on. Ties
// keep declaration order.
func orderRules(s *table.Schema, rules []DerivedRule) ([]DerivedRule, error) {
	g := dag.NewDAG()
	byName := make(map[string]int, len(rules))
	for i, r := range rules {
		if _, ok := s.Index(r.Name); ok {
			return nil, fmt.Errorf("derived field %s: %w", r.Name, table.ErrDuplicateColumn)
		}
		if err := g.AddVertexByID(r.Name, r.Name); err != nil {
			return nil, fmt.Errorf("derived field %s: %w", r.Name, err)
		}
		byName[r.Name] = i
	}
	for _, r := range rules {
		for _, dep := range r.DependsOn {
			if _, ok := byName[dep]; ok {
				if err := g.AddEdge(dep, r.Name); err != nil {
					return nil, fmt.Errorf("invalid dependency %s → %s: %w", dep, r.Name, err)
				}
				continue
			}
			if _, ok := s.Index(dep); !ok {
				return nil, fmt.Errorf("%w: %s needs %s", ErrUnknownDependency, r.Name, dep)
			}
		}
	}

	// A rule has strictly more ancestors than any of its ancestors, so sorting
	// by ancestor count yields a topological order.
	depth := make(map[string]int, len(rules))
	for _, r := range rules {
		anc, err := g.GetAncestors(r.Name)
		if err != nil {
			return nil, fmt.Errorf("derived field %s: %w", r.Name, err)
		}
		depth[r.Name] = len(anc)
	}
	out := make([]DerivedRule, len(rules))
	copy(out, rules)
	sort.SliceStable(out, func(i, j int) bool {
		return depth[out[i].Name] < depth[out[j].Name]
	})
	return out, nil
}

var titlePattern = regexp.MustCompile(`([A-Z][a-z]+)\.`)

// ExtractTitle returns a rule that pulls the honorific ("Mr", "Mrs", ...) out of
// a "Surname, Title. Given" name column.
func ExtractTitle(name, from string) DerivedRule {
	return DerivedRule{
		Name:      name,
		Kind:      table.String,
		DependsOn: []string{from},
		Compute: func(r table.Record) (table.Value, error) {
			v := r.Get(from)
			if v.IsMissing() {
				return table.Value{}, fmt.Errorf("%w: %s is empty", ErrNoTitle, from)
			}
			m := titlePattern.FindStringSubmatch(v.Text())
			if m == nil {
				return table.Value{}, fmt.Errorf("%w: %q", ErrNoTitle, v.Text())
			}
			return table.Str(m[1]), nil
		},
	}
}

// Win types produced by ClassifyWin.
const (
	WinByRuns    = "By Runs"
	WinByWickets = "By Wickets"
	WinTieOther  = "Tie/Other"
)

// ClassifyWin returns a rule labelling a match by its winning margin: runs
// first, then wickets, otherwise tie/other. Missing margins count as zero.
func ClassifyWin(name, runs, wickets string) DerivedRule {
	return DerivedRule{
		Name:      name,
		Kind:      table.String,
		DependsOn: []string{runs, wickets},
		Compute: func(r table.Record) (table.Value, error) {
			return table.Str(WinType(r.Get(runs), r.Get(wickets))), nil
		},
	}
}

// WinType classifies a pair of winning margins.
func WinType(runs, wickets table.Value) string {
	if n, ok := runs.Number(); ok && n > 0 {
		return WinByRuns
	}
	if n, ok := wickets.Number(); ok && n > 0 {
		return WinByWickets
	}
	return WinTieOther
}

// StoreLinkBase prefixes the link built by StoreLink.
const StoreLinkBase = "https://play.google.com/store/apps/details?id="

// StoreLink returns a rule that builds a store link from the record's source
// position. The dataset has no package ids, so the position stands in for one.
func StoreLink(name string) DerivedRule {
	return DerivedRule{
		Name: name,
		Kind: table.String,
		Compute: func(r table.Record) (table.Value, error) {
			return table.Str(StoreLinkBase + fmt.Sprint(r.Pos())), nil
		},
	}
}

// Lookup returns a rule mapping a column's text through a fixed table, e.g.
// the Survived flag to a label. Unmapped values stay missing.
func Lookup(name, from string, mapping map[string]string) DerivedRule {
	return DerivedRule{
		Name:      name,
		Kind:      table.String,
		DependsOn: []string{from},
		Compute: func(r table.Record) (table.Value, error) {
			if label, ok := mapping[strings.TrimSpace(r.Get(from).Text())]; ok {
				return table.Str(label), nil
			}
			return table.Missing(table.String), nil
		},
	}
}
