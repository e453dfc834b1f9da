package core

import (
	"errors"
	"strings"
	"testing"
)

func TestParseTransactionType(t *testing.T) {
	cases := []struct {
		in   string
		want TransactionType
		err  bool
	}{
		{"", "", false},
		{"all", "", false},
		{"Income", Income, false},
		{" expense ", Expense, false},
		{"transfer", "", true},
	}
	for _, tc := range cases {
		got, err := ParseTransactionType(tc.in)
		if (err != nil) != tc.err || got != tc.want {
			t.Errorf("ParseTransactionType(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestCategoryInputValidate(t *testing.T) {
	valid := CategoryInput{Name: "Food", Type: Expense, Icon: "🍜", Color: "#ef4444"}
	tests := []struct {
		name   string
		mutate func(*CategoryInput)
		want   error
	}{
		{name: "valid", mutate: func(*CategoryInput) {}},
		{name: "short color", mutate: func(c *CategoryInput) { c.Color = "#fff" }},
		{name: "empty name", mutate: func(c *CategoryInput) { c.Name = "  " }, want: ErrEmptyName},
		{name: "long name", mutate: func(c *CategoryInput) { c.Name = strings.Repeat("ก", 51) }, want: ErrNameTooLong},
		{name: "bad type", mutate: func(c *CategoryInput) { c.Type = "x" }, want: ErrInvalidType},
		{name: "bad color", mutate: func(c *CategoryInput) { c.Color = "blue" }, want: ErrInvalidColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := in.Validate()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCategoryInputNormalize(t *testing.T) {
	in := CategoryInput{Name: "  Salary ", Type: Income}.Normalize()
	if in.Name != "Salary" || in.Icon != DefaultCategoryIcon || in.Color != DefaultCategoryColor {
		t.Fatalf("unexpected normalized input: %+v", in)
	}
}

func TestTransactionInputValidate(t *testing.T) {
	valid := TransactionInput{
		Amount:   Money{Cents: 1000},
		Type:     Expense,
		Category: "c1",
		Date:     NewDate(2025, 3, 1),
	}
	tests := []struct {
		name   string
		mutate func(*TransactionInput)
		want   error
	}{
		{name: "valid", mutate: func(*TransactionInput) {}},
		{name: "zero amount", mutate: func(in *TransactionInput) { in.Amount = Money{} }, want: ErrInvalidAmount},
		{name: "bad type", mutate: func(in *TransactionInput) { in.Type = "" }, want: ErrInvalidType},
		{name: "no category", mutate: func(in *TransactionInput) { in.Category = " " }, want: ErrEmptyCategory},
		{name: "no date", mutate: func(in *TransactionInput) { in.Date = Date{} }, want: ErrInvalidDate},
		{name: "long description", mutate: func(in *TransactionInput) { in.Description = strings.Repeat("a", 201) }, want: ErrDescriptionTooLong},
		{name: "long note", mutate: func(in *TransactionInput) { in.Note = strings.Repeat("a", 501) }, want: ErrNoteTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if err := in.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-02-28")
	if err != nil || d.String() != "2025-02-28" {
		t.Fatalf("ParseDate = %v, %v", d, err)
	}
	if _, err := ParseDate("28/02/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
