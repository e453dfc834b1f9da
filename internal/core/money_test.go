package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"1,234.50", 123450, true},
		{".5", 50, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"١٢", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyFormat(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "฿0.00"},
		{5, "฿0.05"},
		{123450, "฿1,234.50"},
		{100000000, "฿1,000,000.00"},
		{-2599, "-฿25.99"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).Format(); got != tc.want {
			t.Errorf("Format(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
	if got := (Money{Cents: 125050}).Major(); got != "1250.50" {
		t.Errorf("Major() = %q", got)
	}
}

func TestMoneyJSON(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
	}{
		{`1250.5`, 125050},
		{`"99.99"`, 9999},
		{`-40`, -4000},
		{`1e3`, 100000},
		{`null`, 0},
		{`""`, 0},
	}
	for _, tc := range cases {
		var m Money
		if err := json.Unmarshal([]byte(tc.in), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if m.Cents != tc.cents {
			t.Errorf("unmarshal %s = %d, want %d", tc.in, m.Cents, tc.cents)
		}
	}

	for _, in := range []string{`"abc"`, `1e300`, `-1e300`, `"9.3e16"`, `1e400`, `"NaN"`, `"Inf"`} {
		var bad Money
		if err := bad.UnmarshalJSON([]byte(in)); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("unmarshal %s: err=%v, want ErrInvalidAmount", in, err)
		}
	}

	out, err := json.Marshal(struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}{Money{Cents: 1500}, Money{Cents: 1505}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":15,"b":15.05}` {
		t.Fatalf("marshal = %s", out)
	}
}
