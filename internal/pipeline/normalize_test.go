package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom/internal/table"
)

func TestParseInstalls(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1,000,000+", 1000000},
		{"10K", 10000},
		{"2.5M", 2500000},
		{"500+", 500},
		{"0", 0},
		{"1,000", 1000},
		{"10,000+", 10000},
		{" 50,000+ ", 50000},
		{"1.5K", 1500},
		{"100M+", 100000000},
		{"", 0},
		{"Free", 0},
		{"Varies with device", 0},
		{"M", 0},
		{"-5", 0},
		{"2.01K", 2010},
		{"2.09M", 2090000},
		{"4.02K", 4020},
		{"999.99K", 999990},
		{".5M", 500000},
		{"1.2345K", 1234},
		{"1M5", 0},
		{"K10", 0},
		{"1.5.5M", 0},
		{"-5K", 0},
		{"1KM", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseInstalls(tt.in)
			require.False(t, got.IsMissing())
			assert.Equal(t, table.Int, got.Kind())
			assert.Equal(t, tt.want, got.IntVal())
		})
	}
}

func TestParseFloatOrMissingKeepsZeroDistinct(t *testing.T) {
	zero := ParseFloatOrMissing("0")
	bad := ParseFloatOrMissing("NaN")
	empty := ParseFloatOrMissing("")
	good := ParseFloatOrMissing(" 4.2 ")

	assert.False(t, zero.IsMissing())
	assert.True(t, bad.IsMissing())
	assert.True(t, empty.IsMissing())
	assert.InDelta(t, 4.2, good.FloatVal(), 1e-9)
}

func TestParseIntRules(t *testing.T) {
	assert.Equal(t, int64(0), ParseIntOrZero("3.0M").IntVal())
	assert.Equal(t, int64(12), ParseIntOrZero("12").IntVal())
	assert.Equal(t, int64(12), ParseIntOrZero("12.0").IntVal())
	assert.True(t, ParseIntOrMissing("abc").IsMissing())
	assert.True(t, ParseIntOrMissing("1.5").IsMissing())
	assert.Equal(t, int64(2008), ParseIntOrMissing("2008").IntVal())
}

func TestParseCategory(t *testing.T) {
	assert.True(t, ParseCategory("   ").IsMissing())
	assert.True(t, ParseCategory("NaN").IsMissing())
	assert.Equal(t, "GAME", ParseCategory(" GAME ").Text())
}

func TestNormalizeAppliesRulesAndDropsMissing(t *testing.T) {
	raw, err := table.ParseCSV("apps.csv", strings.NewReader(
		"App,Category,Rating,Installs,Reviews\n"+
			"Alpha,GAME,4.5,\"1,000+\",10\n"+
			"Beta,,4.0,10K,x\n"+
			"Gamma,TOOLS,abc,Free,3.0M\n"), table.Options{})
	require.NoError(t, err)

	got, err := Normalize(raw, Normalization{
		Rules: []FieldRule{
			{Column: "Installs", Kind: table.Int, Parse: ParseInstalls},
			{Column: "Reviews", Kind: table.Int, Parse: ParseIntOrZero},
			{Column: "Rating", Kind: table.Float, Parse: ParseFloatOrMissing},
		},
		DropIfMissing: []string{"Category"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())

	first := got.Record(0)
	assert.Equal(t, int64(1000), first.Get("Installs").IntVal())
	assert.Equal(t, int64(10), first.Get("Reviews").IntVal())
	assert.Equal(t, 0, first.Pos())

	second := got.Record(1)
	assert.Equal(t, "Gamma", second.Get("App").Text())
	assert.Equal(t, 2, second.Pos())
	assert.True(t, second.Get("Rating").IsMissing())
	assert.Equal(t, int64(0), second.Get("Installs").IntVal())
	assert.Equal(t, int64(0), second.Get("Reviews").IntVal())

	col, err := got.Schema().Column("Rating")
	require.NoError(t, err)
	assert.Equal(t, table.Float, col.Kind)

	// the raw source is untouched
	assert.Equal(t, "", raw.Rows[1][1])
	assert.Equal(t, "abc", raw.Rows[2][2])
}

func TestNormalizeMissingColumnFailsLoudly(t *testing.T) {
	raw, err := table.ParseCSV("apps.csv", strings.NewReader("App,Rating\nA,1\n"), table.Options{})
	require.NoError(t, err)

	_, err = Normalize(raw, Normalization{
		Rules: []FieldRule{{Column: "Installs", Kind: table.Int, Parse: ParseInstalls}},
	})
	require.ErrorIs(t, err, table.ErrMissingColumns)
	assert.Contains(t, err.Error(), "Installs")
}
