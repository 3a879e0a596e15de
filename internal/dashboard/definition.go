// Package dashboard binds datasets to their filters and panels and runs one
// stateless refresh per filter selection.
package dashboard

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/dashloom/internal/pipeline"
	"github.com/KaramelBytes/dashloom/internal/table"
)

var (
	// ErrUnknownDataset is returned by Lookup for unregistered names.
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrNoSource is returned by Open when no file is given and the dataset
	// has no built-in sample.
	ErrNoSource = errors.New("no source file")
)

// Definition describes one dashboard: where its data comes from, how it is
// cleaned and enriched, which filters it offers and which panels it draws.
type Definition struct {
	Name        string
	Title       string
	Description string
	// Source is the default file name, resolved against the data directory.
	Source string
	// Sample returns built-in data used when no file is given.
	Sample        func() *table.Raw
	Required      []string
	Normalization pipeline.Normalization
	Derived       []pipeline.DerivedRule
	Filters       []pipeline.Filter
	// Choices overrides the columns a filter draws its options from.
	Choices map[string][]string
	Build   func(f *Frame) error
}

var registry = map[string]*Definition{}

// Register adds a definition. Registering the same name twice panics.
func Register(d *Definition) {
	key := strings.ToLower(d.Name)
	if _, dup := registry[key]; dup {
		panic(fmt.Sprintf("dashboard: Register called twice for %s", d.Name))
	}
	registry[key] = d
}

// Lookup returns the definition registered under name (case-insensitive).
func Lookup(name string) (*Definition, error) {
	d, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownDataset, name, strings.Join(Names(), ", "))
	}
	return d, nil
}

// Names lists registered dataset names in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Definitions returns every registered definition sorted by name.
func Definitions() []*Definition {
	names := Names()
	out := make([]*Definition, len(names))
	for i, n := range names {
		out[i] = registry[n]
	}
	return out
}
