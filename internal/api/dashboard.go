package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"moneybook/internal/core"
)

type DashboardAPI struct {
	c *Client
}

func (a *DashboardAPI) Summary(ctx context.Context, p core.Period) (core.Summary, error) {
	query := p.Query()
	return withRetry(ctx, a.c, func(ctx context.Context) (core.Summary, error) {
		var out core.Summary
		err := a.c.do(ctx, http.MethodGet, "/dashboard/summary", query, nil, &out)
		return out, err
	})
}

// ByCategory returns the per-category totals of the period for type t.
func (a *DashboardAPI) ByCategory(ctx context.Context, p core.Period, t core.TransactionType) ([]core.CategoryTotal, error) {
	query := p.Query()
	if t != "" {
		query.Set("type", string(t))
	}
	return listRetry[core.CategoryTotal](ctx, a.c, "/dashboard/by-category", query, "categories")
}

func (a *DashboardAPI) MonthlyTrend(ctx context.Context, year int) ([]core.MonthTrend, error) {
	query := url.Values{"year": {strconv.Itoa(year)}}
	return listRetry[core.MonthTrend](ctx, a.c, "/dashboard/monthly-trend", query, "months")
}

func (a *DashboardAPI) RecentTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	return listRetry[core.Transaction](ctx, a.c, "/dashboard/recent-transactions", query, "transactions")
}

func (a *DashboardAPI) TopCategories(ctx context.Context, p core.Period, t core.TransactionType, limit int) ([]core.CategoryTotal, error) {
	query := p.Query()
	if t != "" {
		query.Set("type", string(t))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return listRetry[core.CategoryTotal](ctx, a.c, "/dashboard/top-categories", query, "categories")
}

func listRetry[T any](ctx context.Context, c *Client, path string, query url.Values, key string) ([]T, error) {
	return withRetry(ctx, c, func(ctx context.Context) ([]T, error) {
		var raw json.RawMessage
		if err := c.do(ctx, http.MethodGet, path, query, nil, &raw); err != nil {
			return nil, err
		}
		var out []T
		if err := unwrapKey(raw, key, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Health is the status reported by the API's /health endpoint.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health calls /health next to the API root, i.e. the base URL without its
// trailing /api.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.doURL(ctx, http.MethodGet, strings.TrimSuffix(c.baseURL, "/api")+"/health", nil, nil, &out)
	return out, err
}
