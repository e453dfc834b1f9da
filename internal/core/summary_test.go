package core

import "testing"

func TestSummarySavingsRate(t *testing.T) {
	cases := []struct {
		s    Summary
		want int
	}{
		{Summary{TotalIncome: Money{Cents: 10000}, Balance: Money{Cents: 2500}}, 25},
		{Summary{TotalIncome: Money{Cents: 3000}, Balance: Money{Cents: 1000}}, 33},
		{Summary{TotalIncome: Money{Cents: 1000}, Balance: Money{Cents: -500}}, -50},
		{Summary{Balance: Money{Cents: -500}}, 0},
	}
	for i, tc := range cases {
		if got := tc.s.SavingsRate(); got != tc.want {
			t.Errorf("case %d: SavingsRate() = %d, want %d", i, got, tc.want)
		}
	}
}

func TestDailyAverage(t *testing.T) {
	if got := DailyAverage(Money{Cents: 3000}, 30); got.Cents != 100 {
		t.Fatalf("DailyAverage = %d", got.Cents)
	}
	if got := DailyAverage(Money{Cents: 3000}, 0); got.Cents != 0 {
		t.Fatalf("DailyAverage zero days = %d", got.Cents)
	}
}

func TestPeriod(t *testing.T) {
	p := Period{Year: 2025, Month: 1}
	if prev := p.Previous(); prev != (Period{Year: 2024, Month: 12}) {
		t.Fatalf("Previous = %+v", prev)
	}
	if next := (Period{Year: 2024, Month: 12}).Next(); next != p {
		t.Fatalf("Next = %+v", next)
	}
	if (Period{Year: 2024, Month: 2}).Days() != 29 {
		t.Fatal("expected leap February")
	}
	if err := (Period{Year: 2025, Month: 13}).Validate(); err == nil {
		t.Fatal("expected invalid period")
	}
	if q := p.Query().Encode(); q != "month=1&year=2025" {
		t.Fatalf("Query = %s", q)
	}
}

func TestTransactionFilterQuery(t *testing.T) {
	f := TransactionFilter{Type: Expense, Month: 3, Year: 2025, Search: " rice ", Category: ""}
	if got := f.Query().Encode(); got != "month=3&search=rice&type=expense&year=2025" {
		t.Fatalf("Query = %s", got)
	}
	if got := (TransactionFilter{}).Query().Encode(); got != "" {
		t.Fatalf("empty filter Query = %q", got)
	}
}
