package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom/internal/table"
)

func mustTable(t *testing.T, cols []table.Column, rows [][]table.Value) *table.Table {
	t.Helper()
	s, err := table.NewSchema(cols...)
	require.NoError(t, err)
	tbl, err := table.FromRows(s, rows)
	require.NoError(t, err)
	return tbl
}

func TestWinType(t *testing.T) {
	tests := []struct {
		name          string
		runs, wickets table.Value
		want          string
	}{
		{"runs", table.IntValue(5), table.IntValue(0), WinByRuns},
		{"wickets", table.IntValue(0), table.IntValue(3), WinByWickets},
		{"tie", table.IntValue(0), table.IntValue(0), WinTieOther},
		{"runs take priority", table.IntValue(2), table.IntValue(4), WinByRuns},
		{"missing margins", table.Missing(table.Int), table.Missing(table.Int), WinTieOther},
		{"missing runs", table.Missing(table.Int), table.IntValue(7), WinByWickets},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WinType(tt.runs, tt.wickets))
		})
	}
}

func TestExtractTitle(t *testing.T) {
	tbl := mustTable(t,
		[]table.Column{{Name: "Name", Kind: table.String}},
		[][]table.Value{
			{table.Str("Braund, Mr. Owen Harris")},
			{table.Str("Cumings, Mrs. John Bradley (Florence Briggs Thayer)")},
			{table.Str("no honorific here")},
			{table.Str("Rothes, the Countess. of (Lucy Noel)")},
		})

	got, err := Derive(tbl, []DerivedRule{ExtractTitle("title", "Name")})
	require.Error(t, err)
	require.NotNil(t, got, "violations must still return the derived table")
	require.Equal(t, 4, got.Len())

	assert.Equal(t, "Mr", got.Record(0).Get("title").Text())
	assert.Equal(t, "Mrs", got.Record(1).Get("title").Text())
	assert.True(t, got.Record(2).Get("title").IsMissing())
	assert.Equal(t, "Countess", got.Record(3).Get("title").Text())

	var v Violations
	require.True(t, errors.As(err, &v))
	require.Len(t, v, 1)
	assert.Equal(t, 2, v[0].Row)
	assert.Equal(t, "title", v[0].Field)
	assert.ErrorIs(t, err, ErrNoTitle)
	assert.Contains(t, err.Error(), "record 2")

	// the input table is untouched
	assert.Equal(t, 1, tbl.Schema().Len())
}

func TestDeriveOrdersByDependency(t *testing.T) {
	tbl := mustTable(t,
		[]table.Column{{Name: "x", Kind: table.Int}},
		[][]table.Value{{table.IntValue(2)}, {table.IntValue(5)}})

	double := DerivedRule{
		Name: "double", Kind: table.Int, DependsOn: []string{"x"},
		Compute: func(r table.Record) (table.Value, error) {
			return table.IntValue(r.Get("x").IntVal() * 2), nil
		},
	}
	plusOne := DerivedRule{
		Name: "double_plus_one", Kind: table.Int, DependsOn: []string{"double"},
		Compute: func(r table.Record) (table.Value, error) {
			return table.IntValue(r.Get("double").IntVal() + 1), nil
		},
	}

	// declared out of order on purpose
	got, err := Derive(tbl, []DerivedRule{plusOne, double})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "double", "double_plus_one"}, got.Schema().Names())
	assert.Equal(t, int64(5), got.Record(0).Get("double_plus_one").IntVal())
	assert.Equal(t, int64(11), got.Record(1).Get("double_plus_one").IntVal())
}

func TestDeriveRejectsBadRules(t *testing.T) {
	tbl := mustTable(t,
		[]table.Column{{Name: "x", Kind: table.Int}},
		[][]table.Value{{table.IntValue(1)}})
	noop := func(table.Record) (table.Value, error) { return table.IntValue(0), nil }

	_, err := Derive(tbl, []DerivedRule{{Name: "y", DependsOn: []string{"nope"}, Compute: noop}})
	assert.ErrorIs(t, err, ErrUnknownDependency)

	_, err = Derive(tbl, []DerivedRule{
		{Name: "a", DependsOn: []string{"b"}, Compute: noop},
		{Name: "b", DependsOn: []string{"a"}, Compute: noop},
	})
	assert.Error(t, err, "cycles must be rejected")

	_, err = Derive(tbl, []DerivedRule{{Name: "x", Compute: noop}})
	assert.ErrorIs(t, err, table.ErrDuplicateColumn)
}

func TestLookupAndStoreLink(t *testing.T) {
	tbl := mustTable(t,
		[]table.Column{{Name: "Survived", Kind: table.Int}},
		[][]table.Value{{table.IntValue(1)}, {table.IntValue(0)}, {table.Missing(table.Int)}})

	got, err := Derive(tbl, []DerivedRule{
		Lookup("outcome", "Survived", map[string]string{"0": "Died", "1": "Survived"}),
		StoreLink("link"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Survived", got.Record(0).Get("outcome").Text())
	assert.Equal(t, "Died", got.Record(1).Get("outcome").Text())
	assert.True(t, got.Record(2).Get("outcome").IsMissing())
	assert.Equal(t, StoreLinkBase+"1", got.Record(1).Get("link").Text())
}
