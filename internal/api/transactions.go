package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"moneybook/internal/core"
)

type TransactionsAPI struct {
	c *Client
}

func (a *TransactionsAPI) List(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	query := f.Query()
	return withRetry(ctx, a.c, func(ctx context.Context) ([]core.Transaction, error) {
		var raw json.RawMessage
		if err := a.c.do(ctx, http.MethodGet, "/transactions", query, nil, &raw); err != nil {
			return nil, err
		}
		var out []core.Transaction
		if err := unwrapKey(raw, "transactions", &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (a *TransactionsAPI) Get(ctx context.Context, id string) (core.Transaction, error) {
	return a.one(ctx, http.MethodGet, id, nil)
}

func (a *TransactionsAPI) Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	return a.one(ctx, http.MethodPost, "", in)
}

func (a *TransactionsAPI) Update(ctx context.Context, id string, in core.TransactionInput) (core.Transaction, error) {
	return a.one(ctx, http.MethodPut, id, in)
}

func (a *TransactionsAPI) Delete(ctx context.Context, id string) error {
	return a.c.do(ctx, http.MethodDelete, "/transactions/"+url.PathEscape(id), nil, nil, nil)
}

func (a *TransactionsAPI) one(ctx context.Context, method, id string, body any) (core.Transaction, error) {
	path := "/transactions"
	if id != "" {
		path += "/" + url.PathEscape(id)
	}
	var raw json.RawMessage
	if err := a.c.do(ctx, method, path, nil, body, &raw); err != nil {
		return core.Transaction{}, err
	}
	var out core.Transaction
	if err := unwrapKey(raw, "transaction", &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}
