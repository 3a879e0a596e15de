// Package table holds the typed, immutable tabular model the dashboards run on.
package table

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingColumns is returned when a source lacks columns a dataset requires.
	ErrMissingColumns = errors.New("missing required columns")
	// ErrDuplicateColumn is returned when a schema declares the same name twice.
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrUnknownColumn is returned when a lookup names a column the schema lacks.
	ErrUnknownColumn = errors.New("unknown column")
)

// Column is a named, typed field of a schema.
type Column struct {
	Name string `json:"name" yaml:"name"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// Schema is an ordered set of columns.
type Schema struct {
	cols  []Column
	index map[string]int
}

// NewSchema builds a schema, rejecting duplicate or empty names.
func NewSchema(cols ...Column) (*Schema, error) {
	s := &Schema{cols: make([]Column, 0, len(cols)), index: make(map[string]int, len(cols))}
	for _, c := range cols {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("empty column name at position %d", len(s.cols))
		}
		if _, ok := s.index[c.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name)
		}
		s.index[c.Name] = len(s.cols)
		s.cols = append(s.cols, c)
	}
	return s, nil
}

// Columns returns a copy of the column list.
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.cols))
	copy(out, s.cols)
	return out
}

// Names returns column names in order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.cols))
	for i, c := range s.cols {
		out[i] = c.Name
	}
	return out
}

func (s *Schema) Len() int { return len(s.cols) }

// Index returns the position of the named column.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Column returns the named column or ErrUnknownColumn.
func (s *Schema) Column(name string) (Column, error) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	return s.cols[i], nil
}

// Extend returns a new schema with extra columns appended.
func (s *Schema) Extend(cols ...Column) (*Schema, error) {
	all := make([]Column, 0, len(s.cols)+len(cols))
	all = append(all, s.cols...)
	all = append(all, cols...)
	return NewSchema(all...)
}

// Record is one immutable row bound to a schema.
type Record struct {
	schema *Schema
	values []Value
	pos    int
}

// NewRecord binds values to a schema. pos is the row's position in its source.
func NewRecord(s *Schema, pos int, values []Value) (Record, error) {
	if len(values) != s.Len() {
		return Record{}, fmt.Errorf("record %d: got %d values for %d columns", pos, len(values), s.Len())
	}
	cp := make([]Value, len(values))
	copy(cp, values)
	return Record{schema: s, values: cp, pos: pos}, nil
}

// Get returns the named value, or a missing string for unknown names.
func (r Record) Get(name string) Value {
	if r.schema == nil {
		return Value{}
	}
	i, ok := r.schema.index[name]
	if !ok {
		return Value{}
	}
	return r.values[i]
}

// At returns the value at column position i.
func (r Record) At(i int) Value { return r.values[i] }

// Pos is the record's position in the source dataset.
func (r Record) Pos() int { return r.pos }

// Values returns a copy of the row's values.
func (r Record) Values() []Value {
	out := make([]Value, len(r.values))
	copy(out, r.values)
	return out
}

// Table is an ordered, immutable sequence of records sharing one schema.
type Table struct {
	schema  *Schema
	records []Record
}

// New builds a table from records that must all use schema s.
func New(s *Schema, records []Record) (*Table, error) {
	for _, r := range records {
		if r.schema != s {
			return nil, fmt.Errorf("record %d does not belong to table schema", r.pos)
		}
	}
	cp := make([]Record, len(records))
	copy(cp, records)
	return &Table{schema: s, records: cp}, nil
}

// FromRows is a convenience constructor for positional rows.
func FromRows(s *Schema, rows [][]Value) (*Table, error) {
	recs := make([]Record, 0, len(rows))
	for i, row := range rows {
		r, err := NewRecord(s, i, row)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return &Table{schema: s, records: recs}, nil
}

func (t *Table) Schema() *Schema { return t.schema }
func (t *Table) Len() int { return len(t.records) }

// Record returns the i-th record of the table.
func (t *Table) Record(i int) Record { return t.records[i] }

// Records returns a copy of the record slice; records themselves are immutable.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Select returns a new table holding the records for which keep returns true,
// in original order.
func (t *Table) Select(keep func(Record) bool) *Table {
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return &Table{schema: t.schema, records: out}
}

// Head returns the first n records as a new table.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.records) {
		n = len(t.records)
	}
	out := make([]Record, n)
	copy(out, t.records[:n])
	return &Table{schema: t.schema, records: out}
}

// Column returns every value of the named column.
func (t *Table) Column(name string) ([]Value, error) {
	i, ok := t.schema.Index(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	out := make([]Value, len(t.records))
	for j, r := range t.records {
		out[j] = r.values[i]
	}
	return out, nil
}

// Rows renders the table as display strings, one slice per record.
func (t *Table) Rows() [][]string {
	out := make([][]string, len(t.records))
	for i, r := range t.records {
		row := make([]string, len(r.values))
		for j, v := range r.values {
			row[j] = v.Text()
		}
		out[i] = row
	}
	return out
}

// Maps renders each record as a column name → value map for JSON/YAML output.
func (t *Table) Maps() []map[string]Value {
	names := t.schema.Names()
	out := make([]map[string]Value, len(t.records))
	for i, r := range t.records {
		m := make(map[string]Value, len(names))
		for j, n := range names {
			m[n] = r.values[j]
		}
		out[i] = m
	}
	return out
}

// Rebind returns a copy of r bound to schema s with extra values appended.
// It is used by stages that extend a schema without touching existing cells.
func Rebind(s *Schema, r Record, extra []Value) (Record, error) {
	vals := make([]Value, 0, len(r.values)+len(extra))
	vals = append(vals, r.values...)
	vals = append(vals, extra...)
	return NewRecord(s, r.pos, vals)
}
