// Package http provides HTTP server and handler implementations.
//
// This file holds the parsing of query strings and form posts into domain
// values. Parsing never calls the API; validation of the parsed values is
// left to the services.
package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"moneybook/internal/core"
)

// ParseMonthParams extracts year and month from query parameters. Missing or
// invalid values fall back to the period containing now.
func ParseMonthParams(query url.Values, now time.Time) core.Period {
	p := core.CurrentPeriod(now)
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			p.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			p.Month = m
		}
	}
	if p.Validate() != nil {
		return core.CurrentPeriod(now)
	}
	return p
}

// filterForm echoes the transaction filter back into the filter inputs.
type filterForm struct {
	Type     string
	Category string
	Month    string
	Year     string
	Search   string
}

// ParseTransactionFilter reads the listing filters. Month and year default
// to the current period only when neither is present in the query; an empty
// value means "any".
func ParseTransactionFilter(query url.Values, now time.Time) (core.TransactionFilter, filterForm) {
	form := filterForm{
		Type:     sanitizeInput(query.Get("type")),
		Category: sanitizeInput(query.Get("category")),
		Month:    sanitizeInput(query.Get("month")),
		Year:     sanitizeInput(query.Get("year")),
		Search:   sanitizeInput(query.Get("search")),
	}
	if !query.Has("month") && !query.Has("year") {
		form.Month = strconv.Itoa(int(now.Month()))
		form.Year = strconv.Itoa(now.Year())
	}

	var f core.TransactionFilter
	if t, err := core.ParseTransactionType(form.Type); err == nil {
		f.Type = t
	} else {
		form.Type = ""
	}
	f.Category = form.Category
	f.Search = form.Search
	if m, err := strconv.Atoi(form.Month); err == nil && m >= 1 && m <= 12 {
		f.Month = m
	} else {
		form.Month = ""
	}
	if y, err := strconv.Atoi(form.Year); err == nil && y > 0 {
		f.Year = y
	} else {
		form.Year = ""
	}
	return f, form
}

// transactionForm holds the raw transaction inputs so a rejected form can be
// shown again as typed.
type transactionForm struct {
	Amount      string
	Type        string
	Category    string
	Description string
	Note        string
	Date        string
}

func newTransactionForm(now time.Time) transactionForm {
	return transactionForm{Type: string(core.Expense), Date: now.Format(time.DateOnly)}
}

func transactionFormFrom(t core.Transaction) transactionForm {
	return transactionForm{
		Amount:      t.Amount.Major(),
		Type:        string(t.Type),
		Category:    t.Category.ID,
		Description: t.Description,
		Note:        t.Note,
		Date:        t.Date.String(),
	}
}

// ParseTransactionForm converts a posted transaction form. Only the amount
// and date need parsing here; the rest is validated by the ledger.
func ParseTransactionForm(form url.Values) (core.TransactionInput, transactionForm, error) {
	raw := transactionForm{
		Amount:      strings.TrimSpace(form.Get("amount")),
		Type:        sanitizeInput(form.Get("type")),
		Category:    sanitizeInput(form.Get("category")),
		Description: sanitizeInput(form.Get("description")),
		Note:        sanitizeInput(form.Get("note")),
		Date:        strings.TrimSpace(form.Get("date")),
	}
	amount, err := core.ParseAmount(raw.Amount)
	if err != nil {
		return core.TransactionInput{}, raw, err
	}
	date, err := core.ParseDate(raw.Date)
	if err != nil {
		return core.TransactionInput{}, raw, err
	}
	t, err := core.ParseTransactionType(raw.Type)
	if err != nil || t == "" {
		return core.TransactionInput{}, raw, core.ErrInvalidType
	}
	return core.TransactionInput{
		Amount:      amount,
		Type:        t,
		Category:    raw.Category,
		Description: raw.Description,
		Note:        raw.Note,
		Date:        date,
	}, raw, nil
}

type categoryForm struct {
	Name  string
	Type  string
	Icon  string
	Color string
}

func newCategoryForm() categoryForm {
	return categoryForm{Type: string(core.Expense), Icon: core.DefaultCategoryIcon, Color: core.DefaultCategoryColor}
}

func categoryFormFrom(c core.Category) categoryForm {
	return categoryForm{Name: c.Name, Type: string(c.Type), Icon: c.Icon, Color: c.Color}
}

// ParseCategoryForm converts a posted category form.
func ParseCategoryForm(form url.Values) (core.CategoryInput, categoryForm, error) {
	raw := categoryForm{
		Name:  sanitizeInput(form.Get("name")),
		Type:  sanitizeInput(form.Get("type")),
		Icon:  sanitizeInput(form.Get("icon")),
		Color: sanitizeInput(form.Get("color")),
	}
	t, err := core.ParseTransactionType(raw.Type)
	if err != nil || t == "" {
		return core.CategoryInput{}, raw, core.ErrInvalidType
	}
	return core.CategoryInput{Name: raw.Name, Type: t, Icon: raw.Icon, Color: raw.Color}, raw, nil
}

// safeRedirect returns next when it is a local path, otherwise "/".
func safeRedirect(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" || u.Scheme != "" {
		return "/"
	}
	return next
}

// sanitizeInput removes control characters (except tab and newlines) and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
