package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"moneybook/internal/core"
)

type CategoriesAPI struct {
	c *Client
}

// List returns the caller's categories, optionally only those of type t.
func (a *CategoriesAPI) List(ctx context.Context, t core.TransactionType) ([]core.Category, error) {
	var query url.Values
	if t != "" {
		query = url.Values{"type": {string(t)}}
	}
	return withRetry(ctx, a.c, func(ctx context.Context) ([]core.Category, error) {
		var raw json.RawMessage
		if err := a.c.do(ctx, http.MethodGet, "/categories", query, nil, &raw); err != nil {
			return nil, err
		}
		var out []core.Category
		if err := unwrapKey(raw, "categories", &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (a *CategoriesAPI) Get(ctx context.Context, id string) (core.Category, error) {
	return a.one(ctx, http.MethodGet, id, nil)
}

func (a *CategoriesAPI) Create(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	return a.one(ctx, http.MethodPost, "", in)
}

func (a *CategoriesAPI) Update(ctx context.Context, id string, in core.CategoryInput) (core.Category, error) {
	return a.one(ctx, http.MethodPut, id, in)
}

func (a *CategoriesAPI) Delete(ctx context.Context, id string) error {
	return a.c.do(ctx, http.MethodDelete, "/categories/"+url.PathEscape(id), nil, nil, nil)
}

func (a *CategoriesAPI) one(ctx context.Context, method, id string, body any) (core.Category, error) {
	path := "/categories"
	if id != "" {
		path += "/" + url.PathEscape(id)
	}
	var raw json.RawMessage
	if err := a.c.do(ctx, method, path, nil, body, &raw); err != nil {
		return core.Category{}, err
	}
	var out core.Category
	if err := unwrapKey(raw, "category", &out); err != nil {
		return core.Category{}, err
	}
	return out, nil
}
