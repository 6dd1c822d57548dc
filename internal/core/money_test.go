package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCoerceAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"12.5", "12.5", true},
		{"12.5abc", "12.5", true},
		{" 3 ", "3", true},
		{"12.", "12", true},
		{".75", "0.75", true},
		{"+4", "4", true},
		{"-2.5", "-2.5", true},
		{"7,20", "7", true},
		{"1e5", "100000", true},
		{"1e3", "1000", true},
		{"2.5E-1", "0.25", true},
		{"12.e2", "1200", true},
		{".5e+1", "5", true},
		{"3e", "3", true},
		{"3e+", "3", true},
		{"4ex", "4", true},
		{"1e400", "", false},
		{"0e5", "", false},
		{"abc", "", false},
		{"", "", false},
		{"0", "", false},
		{"0.00", "", false},
		{".", "", false},
		{"-", "", false},
	}
	for _, tc := range cases {
		got, ok := CoerceAmount(tc.in)
		if ok != tc.ok {
			t.Fatalf("%q expected ok=%v, got %v", tc.in, tc.ok, ok)
		}
		if tc.ok && !got.Equal(decimal.RequireFromString(tc.out)) {
			t.Fatalf("%q expected %s, got %s", tc.in, tc.out, got)
		}
	}
}

func TestFormatCurrency(t *testing.T) {
	cases := map[string]string{
		"0":        "$0.00",
		"12.5":     "$12.50",
		"1234.567": "$1,234.57",
		"1000000":  "$1,000,000.00",
		"-3":       "-$3.00",
	}
	for in, want := range cases {
		if got := FormatCurrency(decimal.RequireFromString(in)); got != want {
			t.Fatalf("%s expected %s, got %s", in, want, got)
		}
	}
}

func TestPercent(t *testing.T) {
	d := decimal.RequireFromString
	if got := Percent(d("25"), d("100")); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
	if got := Percent(d("1"), d("3")); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
	if got := Percent(d("5"), decimal.Zero); got != 0 {
		t.Fatalf("expected 0 for zero total, got %d", got)
	}
}

func TestCategoryTotalsRows(t *testing.T) {
	d := decimal.RequireFromString
	totals := CategoryTotals{"Food": d("90"), "Bills": d("9.5"), "Health": d("0.5")}
	rows := totals.Rows(decimal.Zero)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Name != "Food" || rows[0].Percent != 90 {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[2].Name != "Health" || rows[2].Percent != 1 || rows[2].Width != 2 {
		t.Fatalf("small rows must stay visible: %+v", rows[2])
	}
}
