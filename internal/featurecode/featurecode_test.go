package featurecode_test

import (
	"context"
	"testing"

	"fpmatch/internal/featurecode"
)

func TestNormalizeEmptyEquivalents(t *testing.T) {
	cases := []struct {
		name string
		raw  featurecode.Raw
		want bool
	}{
		{"missing", featurecode.Missing, false},
		{"empty", featurecode.String(""), false},
		{"blank", featurecode.String("   "), false},
		{"null", featurecode.String("NULL"), false},
		{"none", featurecode.String("None"), false},
		{"nan", featurecode.String("nan"), false},
		{"empty list", featurecode.String("[]"), false},
		{"empty map", featurecode.String(" {} "), false},
		{"value", featurecode.String("70f16ffc4d6cf98a"), true},
		{"word containing none", featurecode.String("nonesuch"), true},
		{"zero", featurecode.String("0"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := featurecode.Normalize(tc.raw)
			if ok != tc.want {
				t.Fatalf("Normalize(%+v) present=%v, want %v", tc.raw, ok, tc.want)
			}
		})
	}
}

func TestNormalizeKeepsPresentValuesVerbatim(t *testing.T) {
	for _, raw := range []string{"abc ", " abc", "cafe\u0301", "caf\u00e9", "Null-ish"} {
		got, ok := featurecode.Normalize(featurecode.String(raw))
		if !ok || got != raw {
			t.Fatalf("Normalize(%q) = %q, %v", raw, got, ok)
		}
	}
}

func TestEncodeDistinguishesRawValues(t *testing.T) {
	col := featurecode.Encode([]featurecode.Raw{
		featurecode.String("abc"),
		featurecode.String("abc "),
		featurecode.String(" NULL "),
		featurecode.String("cafe\u0301"),
		featurecode.String("caf\u00e9"),
	})
	if col.Codes[0] == col.Codes[1] {
		t.Fatalf("%q and %q share code %d", "abc", "abc ", col.Codes[0])
	}
	if col.Codes[3] == col.Codes[4] {
		t.Fatalf("composed and decomposed forms share code %d", col.Codes[3])
	}
	if col.Codes[2] != featurecode.Absent {
		t.Fatalf("padded null coded as %d", col.Codes[2])
	}
	if col.Cardinality() != 4 {
		t.Fatalf("expected 4 categories, got %d: %q", col.Cardinality(), col.Categories)
	}
	for i, raw := range []string{"abc", "abc "} {
		if v, ok := col.Decode(col.Codes[i]); !ok || v != raw {
			t.Fatalf("Decode(%d) = %q, want %q", col.Codes[i], v, raw)
		}
	}
}

func TestEncodeAssignsSortedCodes(t *testing.T) {
	col := featurecode.Encode([]featurecode.Raw{
		featurecode.String("b"),
		featurecode.String("a"),
		featurecode.Missing,
		featurecode.String("b"),
		featurecode.String("none"),
	})
	want := []featurecode.Code{1, 0, featurecode.Absent, 1, featurecode.Absent}
	if len(col.Codes) != len(want) {
		t.Fatalf("unexpected code count %d", len(col.Codes))
	}
	for i := range want {
		if col.Codes[i] != want[i] {
			t.Fatalf("row %d: got code %d want %d", i, col.Codes[i], want[i])
		}
	}
	if col.Cardinality() != 2 {
		t.Fatalf("expected 2 categories, got %d", col.Cardinality())
	}
	if v, ok := col.Decode(1); !ok || v != "b" {
		t.Fatalf("Decode(1) = %q, %v", v, ok)
	}
	if _, ok := col.Decode(featurecode.Absent); ok {
		t.Fatal("Absent must not decode")
	}
}

func TestEncodeIsOrderIndependent(t *testing.T) {
	a := featurecode.Encode([]featurecode.Raw{featurecode.String("x"), featurecode.String("y")})
	b := featurecode.Encode([]featurecode.Raw{featurecode.String("y"), featurecode.String("x")})
	if a.Codes[0] != b.Codes[1] || a.Codes[1] != b.Codes[0] {
		t.Fatalf("codes depend on row order: %v vs %v", a.Codes, b.Codes)
	}
}

func TestEncodeColumns(t *testing.T) {
	cols, err := featurecode.EncodeColumns(context.Background(), map[string][]featurecode.Raw{
		"anchor":  {featurecode.String("A"), featurecode.String("A")},
		"reducer": {featurecode.Missing, featurecode.String("R")},
	})
	if err != nil {
		t.Fatalf("EncodeColumns: %v", err)
	}
	if got := cols["anchor"].Codes; got[0] != got[1] {
		t.Fatalf("equal values must share a code: %v", got)
	}
	if got := cols["reducer"].Codes[0]; got != featurecode.Absent {
		t.Fatalf("missing value coded as %d", got)
	}
}

func TestEncodeColumnsHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := featurecode.EncodeColumns(ctx, map[string][]featurecode.Raw{"a": {featurecode.String("x")}})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestDictionaryLazyCodes(t *testing.T) {
	d := featurecode.NewDictionary()
	first := d.Code(featurecode.String("z"))
	second := d.Code(featurecode.String("a"))
	again := d.Code(featurecode.String("z"))
	padded := d.Code(featurecode.String(" z "))
	if first != 0 || second != 1 || again != first || padded != 2 {
		t.Fatalf("unexpected lazy codes: %d %d %d %d", first, second, again, padded)
	}
	if code := d.Code(featurecode.String("{}")); code != featurecode.Absent {
		t.Fatalf("empty equivalent coded as %d", code)
	}
	if _, ok := d.Lookup(featurecode.String("unseen")); ok {
		t.Fatal("Lookup must not mint codes")
	}
	if d.Len() != 3 {
		t.Fatalf("expected 3 values, got %d", d.Len())
	}
	if v, ok := d.Decode(second); !ok || v != "a" {
		t.Fatalf("Decode(%d) = %q, %v", second, v, ok)
	}
}
