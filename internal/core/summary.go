package core

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Summary holds the totals of a period.
type Summary struct {
	TotalIncome      Money `json:"totalIncome"`
	TotalExpense     Money `json:"totalExpense"`
	Balance          Money `json:"balance"`
	TransactionCount int   `json:"transactionCount"`
}

// SavingsRate is the balance as a rounded percentage of income; zero when
// there is no income.
func (s Summary) SavingsRate() int {
	if s.TotalIncome.Cents <= 0 {
		return 0
	}
	num := s.Balance.Cents * 100
	den := s.TotalIncome.Cents
	if num >= 0 {
		return int((num + den/2) / den)
	}
	return -int((-num + den/2) / den)
}

// DailyAverage splits an amount over the given number of days, rounded.
func DailyAverage(m Money, days int) Money {
	if days <= 0 {
		return Money{}
	}
	d := int64(days)
	return Money{Cents: (m.Cents + d/2) / d}
}

// CategoryTotal is one slice of the per-category breakdown.
type CategoryTotal struct {
	ID         string          `json:"_id"`
	Name       string          `json:"name"`
	Type       TransactionType `json:"type,omitempty"`
	Icon       string          `json:"icon"`
	Color      string          `json:"color"`
	Total      Money           `json:"total"`
	Count      int             `json:"count"`
	Percentage float64         `json:"percentage"`
}

// MonthTrend is one point of the yearly income/expense trend.
type MonthTrend struct {
	Month   MonthLabel `json:"month"`
	Income  Money      `json:"income"`
	Expense Money      `json:"expense"`
}

// Period identifies a calendar month.
type Period struct {
	Year  int
	Month int // 1-12
}

// CurrentPeriod returns the period containing t.
func CurrentPeriod(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 || p.Year < 1970 || p.Year > 9999 {
		return ErrInvalidPeriod
	}
	return nil
}

// Previous returns the month before p.
func (p Period) Previous() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Next returns the month after p.
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Days returns the number of days in the month.
func (p Period) Days() int {
	return time.Date(p.Year, time.Month(p.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (p Period) String() string {
	return time.Month(p.Month).String() + " " + strconv.Itoa(p.Year)
}

// Query returns the month/year query parameters understood by the API.
func (p Period) Query() url.Values {
	v := url.Values{}
	v.Set("month", strconv.Itoa(p.Month))
	v.Set("year", strconv.Itoa(p.Year))
	return v
}

// TransactionFilter narrows the transaction listing. Zero members are
// omitted from the query.
type TransactionFilter struct {
	Type     TransactionType
	Category string
	Month    int
	Year     int
	Search   string
	Limit    int
}

func (f TransactionFilter) Query() url.Values {
	v := url.Values{}
	if f.Type != "" {
		v.Set("type", string(f.Type))
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		v.Set("category", c)
	}
	if f.Month > 0 {
		v.Set("month", strconv.Itoa(f.Month))
	}
	if f.Year > 0 {
		v.Set("year", strconv.Itoa(f.Year))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		v.Set("search", s)
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	return v
}
