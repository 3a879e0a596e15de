package pipeline

import (
	"errors"

	"github.com/KaramelBytes/dashloom/internal/table"
)

// Apply returns the records of t that satisfy p, in original order, as a new
// table. t is left untouched; an empty result is valid.
func Apply(t *table.Table, p Predicate) *table.Table {
	if p == nil {
		p = Always
	}
	return t.Select(p)
}

// Prepared is a normalized and derived table ready for filtering.
type Prepared struct {
	Table *table.Table
	// Violations lists records whose derived fields could not be computed.
	Violations Violations
}

// Prepare runs Normalize then Derive. Derivation violations are returned in
// Prepared rather than as an error so one malformed record cannot sink the
// load; configuration errors still fail.
func Prepare(raw *table.Raw, n Normalization, rules []DerivedRule) (*Prepared, error) {
	norm, err := Normalize(raw, n)
	if err != nil {
		return nil, err
	}
	derived, err := Derive(norm, rules)
	if err != nil {
		var v Violations
		if !errors.As(err, &v) {
			return nil, err
		}
		return &Prepared{Table: derived, Violations: v}, nil
	}
	return &Prepared{Table: derived}, nil
}

// Run filters a prepared table with the given selection.
func Run(t *table.Table, filters []Filter, sel Selection) (*table.Table, error) {
	p, err := BuildPredicate(t.Schema(), filters, sel)
	if err != nil {
		return nil, err
	}
	return Apply(t, p), nil
}
