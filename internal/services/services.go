// Package services holds the use cases of the web client. Each service
// validates its input before any network call and delegates persistence to
// the tracker API.
package services

import (
	"context"
	"errors"

	"moneybook/internal/api"
	"moneybook/internal/core"
)

// ValidationError wraps an input problem detected before calling the API.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

// IsValidation reports whether err was rejected locally.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

var (
	ErrMissingID          = errors.New("missing id")
	ErrMissingCredentials = errors.New("email and password are required")
	ErrMissingName        = errors.New("name is required")
	ErrInvalidEmail       = errors.New("a valid email is required")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrMissingToken       = errors.New("auth response carried no token")
)

// The API surfaces used by the services. *api.Client's endpoint groups
// satisfy them.
type (
	AuthAPI interface {
		Register(ctx context.Context, name, email, password string) (api.AuthResult, error)
		Login(ctx context.Context, email, password string) (api.AuthResult, error)
		Me(ctx context.Context) (core.User, error)
	}

	CategoryAPI interface {
		List(ctx context.Context, t core.TransactionType) ([]core.Category, error)
		Get(ctx context.Context, id string) (core.Category, error)
		Create(ctx context.Context, in core.CategoryInput) (core.Category, error)
		Update(ctx context.Context, id string, in core.CategoryInput) (core.Category, error)
		Delete(ctx context.Context, id string) error
	}

	TransactionAPI interface {
		List(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error)
		Get(ctx context.Context, id string) (core.Transaction, error)
		Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
		Update(ctx context.Context, id string, in core.TransactionInput) (core.Transaction, error)
		Delete(ctx context.Context, id string) error
	}

	DashboardAPI interface {
		Summary(ctx context.Context, p core.Period) (core.Summary, error)
		ByCategory(ctx context.Context, p core.Period, t core.TransactionType) ([]core.CategoryTotal, error)
		MonthlyTrend(ctx context.Context, year int) ([]core.MonthTrend, error)
		RecentTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
		TopCategories(ctx context.Context, p core.Period, t core.TransactionType, limit int) ([]core.CategoryTotal, error)
	}
)

var (
	_ AuthAPI        = (*api.AuthAPI)(nil)
	_ CategoryAPI    = (*api.CategoriesAPI)(nil)
	_ TransactionAPI = (*api.TransactionsAPI)(nil)
	_ DashboardAPI   = (*api.DashboardAPI)(nil)
)
