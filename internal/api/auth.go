package api

import (
	"context"
	"net/http"
	"strings"

	"moneybook/internal/core"
)

// AuthResult is the token and profile returned by login and register.
type AuthResult struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}

type AuthAPI struct {
	c *Client
}

func (a *AuthAPI) Register(ctx context.Context, name, email, password string) (AuthResult, error) {
	body := map[string]string{
		"name":     strings.TrimSpace(name),
		"email":    strings.TrimSpace(email),
		"password": password,
	}
	return withRetry(ctx, a.c, func(ctx context.Context) (AuthResult, error) {
		var out AuthResult
		err := a.c.do(ctx, http.MethodPost, "/auth/register", nil, body, &out)
		return out, err
	})
}

func (a *AuthAPI) Login(ctx context.Context, email, password string) (AuthResult, error) {
	body := map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	}
	return withRetry(ctx, a.c, func(ctx context.Context) (AuthResult, error) {
		var out AuthResult
		err := a.c.do(ctx, http.MethodPost, "/auth/login", nil, body, &out)
		return out, err
	})
}

// Me returns the profile of the token's owner.
func (a *AuthAPI) Me(ctx context.Context) (core.User, error) {
	var out struct {
		User core.User `json:"user"`
	}
	if err := a.c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &out); err != nil {
		return core.User{}, err
	}
	return out.User, nil
}
