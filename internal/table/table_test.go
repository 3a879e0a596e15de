package table

import (
	"encoding/json"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestValueEqualityAndOrdering(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Value
		equal bool
		less  bool
	}{
		{"int vs float", IntValue(3), FloatValue(3), true, false},
		{"numbers", IntValue(2), FloatValue(2.5), false, true},
		{"strings", Str("India"), Str("Kenya"), false, true},
		{"number vs string", IntValue(2008), Str("2008"), false, false},
		{"missing first", Missing(Float), FloatValue(1), false, false},
		{"missing second", FloatValue(1), Missing(Float), false, true},
		{"both missing", Missing(Int), Missing(Int), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal = %v, want %v", got, tt.equal)
			}
			if got := tt.a.Less(tt.b); got != tt.less {
				t.Errorf("Less = %v, want %v", got, tt.less)
			}
		})
	}
}

func TestValueText(t *testing.T) {
	if got := FloatValue(4.10).Text(); got != "4.1" {
		t.Fatalf("float text = %q", got)
	}
	if got := IntValue(1000000).Text(); got != "1000000" {
		t.Fatalf("int text = %q", got)
	}
	if got := Missing(Float).Text(); got != "" {
		t.Fatalf("missing text = %q", got)
	}
}

func TestTableEncodings(t *testing.T) {
	s, err := NewSchema(Column{Name: "App", Kind: String}, Column{Name: "Rating", Kind: Float}, Column{Name: "Installs", Kind: Int})
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	tbl, err := FromRows(s, [][]Value{{Str("Alpha"), Missing(Float), IntValue(10)}})
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	b, err := json.Marshal(tbl.Maps())
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if string(b) != `[{"App":"Alpha","Installs":10,"Rating":null}]` {
		t.Fatalf("json = %s", b)
	}
	y, err := yaml.Marshal(tbl.Maps())
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if string(y) != "- App: Alpha\n  Installs: 10\n  Rating: null\n" {
		t.Fatalf("yaml = %q", y)
	}
	cb, err := json.Marshal(s.Columns())
	if err != nil {
		t.Fatalf("json columns: %v", err)
	}
	if string(cb) != `[{"name":"App","kind":"string"},{"name":"Rating","kind":"float"},{"name":"Installs","kind":"int"}]` {
		t.Fatalf("columns json = %s", cb)
	}
}

func TestSchemaAndSelect(t *testing.T) {
	if _, err := NewSchema(Column{Name: "a"}, Column{Name: "a"}); !errors.Is(err, ErrDuplicateColumn) {
		t.Fatalf("err = %v, want ErrDuplicateColumn", err)
	}
	s, _ := NewSchema(Column{Name: "n", Kind: Int})
	tbl, err := FromRows(s, [][]Value{{IntValue(1)}, {IntValue(2)}, {IntValue(3)}})
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	odd := tbl.Select(func(r Record) bool { return r.Get("n").IntVal()%2 == 1 })
	if odd.Len() != 2 || odd.Record(1).Pos() != 2 {
		t.Fatalf("select = %#v", odd.Rows())
	}
	if tbl.Len() != 3 {
		t.Fatalf("source mutated: len=%d", tbl.Len())
	}
	if _, err := tbl.Column("nope"); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("err = %v, want ErrUnknownColumn", err)
	}
	if !tbl.Record(0).Get("nope").IsMissing() {
		t.Fatalf("unknown column should read as missing")
	}
	if got := tbl.Head(10).Len(); got != 3 {
		t.Fatalf("head = %d", got)
	}
}
