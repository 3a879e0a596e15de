package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/dashloom/internal/table"
)

// All is the selector value meaning "do not filter on this dimension".
const All = "All"

// ErrInvalidSelection is returned for selections the filters cannot honor.
var ErrInvalidSelection = errors.New("invalid filter selection")

// FilterKind is the comparison a filter dimension applies.
type FilterKind int

const (
	// Equals keeps records whose single column equals the chosen value.
	Equals FilterKind = iota
	// Membership keeps records where any of the columns equals the chosen value.
	Membership
	// AtLeast keeps records whose numeric column is >= the chosen threshold.
	AtLeast
)

func (k FilterKind) String() string {
	switch k {
	case Membership:
		return "membership"
	case AtLeast:
		return "at_least"
	default:
		return "equals"
	}
}

// MarshalText renders the kind name in JSON and YAML output.
func (k FilterKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Filter declares one user-facing filter dimension.
type Filter struct {
	Name    string     `json:"name" yaml:"name"`
	Label   string     `json:"label" yaml:"label"`
	Kind    FilterKind `json:"kind" yaml:"kind"`
	Columns []string   `json:"columns" yaml:"columns"`
}

// Selection maps filter names to the values chosen for one refresh. It is
// immutable; With returns a modified copy.
type Selection struct {
	values map[string]string
}

// NewSelection copies m into a Selection.
func NewSelection(m map[string]string) Selection {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Selection{values: cp}
}

// ParseSelection reads "name=value" pairs as given on the command line.
func ParseSelection(pairs []string) (Selection, error) {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return Selection{}, fmt.Errorf("%w: expected name=value, got %q", ErrInvalidSelection, p)
		}
		m[k] = strings.TrimSpace(v)
	}
	return Selection{values: m}, nil
}

// With returns a copy of s with name set to value.
func (s Selection) With(name, value string) Selection {
	cp := make(map[string]string, len(s.values)+1)
	for k, v := range s.values {
		cp[k] = v
	}
	cp[name] = value
	return Selection{values: cp}
}

// Get returns the chosen value; unset dimensions report All.
func (s Selection) Get(name string) string {
	v, ok := s.values[name]
	if !ok || strings.TrimSpace(v) == "" {
		return All
	}
	return v
}

// Active reports whether the dimension filters anything.
func (s Selection) Active(name string) bool { return s.Get(name) != All }

// Map returns a copy of the raw selection values.
func (s Selection) Map() map[string]string {
	cp := make(map[string]string, len(s.values))
	for k, v := range s.values {
		cp[k] = v
	}
	return cp
}

// Predicate decides whether a record belongs to the filtered view.
type Predicate func(table.Record) bool

// Includes reports whether r passes the predicate.
func (p Predicate) Includes(r table.Record) bool { return p(r) }

// Always keeps every record.
func Always(table.Record) bool { return true }

// BuildPredicate composes one sub-predicate per active filter with AND.
// Membership filters OR their columns together first. Missing values never
// satisfy a dimension.
func BuildPredicate(schema *table.Schema, filters []Filter, sel Selection) (Predicate, error) {
	known := make(map[string]bool, len(filters))
	for _, f := range filters {
		known[f.Name] = true
	}
	var unknown []string
	for k := range sel.values {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: unknown filter %s", ErrInvalidSelection, strings.Join(unknown, ", "))
	}

	var parts []Predicate
	for _, f := range filters {
		if len(f.Columns) == 0 {
			return nil, fmt.Errorf("filter %s declares no columns", f.Name)
		}
		idx := make([]int, len(f.Columns))
		for i, c := range f.Columns {
			j, ok := schema.Index(c)
			if !ok {
				return nil, fmt.Errorf("filter %s: %w: %s", f.Name, table.ErrUnknownColumn, c)
			}
			idx[i] = j
		}
		if !sel.Active(f.Name) {
			continue
		}
		raw := strings.TrimSpace(sel.Get(f.Name))
		switch f.Kind {
		case AtLeast:
			thr, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s wants a number, got %q", ErrInvalidSelection, f.Name, raw)
			}
			parts = append(parts, atLeast(idx[0], thr))
		case Equals:
			parts = append(parts, anyEquals(idx[:1], raw))
		case Membership:
			parts = append(parts, anyEquals(idx, raw))
		default:
			return nil, fmt.Errorf("filter %s: unsupported kind %d", f.Name, f.Kind)
		}
	}
	if len(parts) == 0 {
		return Always, nil
	}
	return func(r table.Record) bool {
		for _, p := range parts {
			if !p(r) {
				return false
			}
		}
		return true
	}, nil
}

func atLeast(col int, thr float64) Predicate {
	return func(r table.Record) bool {
		n, ok := r.At(col).Number()
		return ok && n >= thr
	}
}

func anyEquals(cols []int, target string) Predicate {
	want := table.Str(target)
	if f, err := strconv.ParseFloat(target, 64); err == nil {
		num := table.FloatValue(f)
		return func(r table.Record) bool {
			for _, c := range cols {
				v := r.At(c)
				if v.Equal(num) || v.Text() == target {
					return true
				}
			}
			return false
		}
	}
	return func(r table.Record) bool {
		for _, c := range cols {
			if r.At(c).Equal(want) {
				return true
			}
		}
		return false
	}
}
