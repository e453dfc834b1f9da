package services

import (
	"context"
	"errors"
	"testing"

	"moneybook/internal/api"
	"moneybook/internal/core"
	"moneybook/internal/events"
	"moneybook/internal/session"
)

func sessionCtx() context.Context {
	return session.WithSession(context.Background(), session.Session{ID: "s1", User: core.User{ID: "u1"}})
}

func TestCreateCategoryNormalizesAndNotifies(t *testing.T) {
	cats := &fakeCategoryAPI{}
	inv := &recordingInvalidator{}
	pub := &recordingPublisher{}
	svc := NewLedgerService(cats, &fakeTransactionAPI{}, inv, events.NewNotifier(pub, nil), nil)

	c, err := svc.CreateCategory(sessionCtx(), core.CategoryInput{Name: "  Food ", Type: core.Expense})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if c.Name != "Food" || c.Icon != core.DefaultCategoryIcon || c.Color != core.DefaultCategoryColor {
		t.Fatalf("category=%+v", c)
	}
	if len(inv.ids) != 1 || inv.ids[0] != "s1" {
		t.Fatalf("invalidated=%v", inv.ids)
	}
	if msgs := pub.waitFor(t, 1); len(msgs) != 1 || msgs[0].Kind != events.CategoryCreated || msgs[0].UserID != "u1" {
		t.Fatalf("events=%+v", msgs)
	}
}

func TestLedgerValidatesBeforeCallingAPI(t *testing.T) {
	cats := &fakeCategoryAPI{}
	txs := &fakeTransactionAPI{}
	svc := NewLedgerService(cats, txs, nil, nil, nil)
	ctx := sessionCtx()

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"category without name", func() error {
			_, err := svc.CreateCategory(ctx, core.CategoryInput{Type: core.Income})
			return err
		}, core.ErrEmptyName},
		{"category bad color", func() error {
			_, err := svc.UpdateCategory(ctx, "c1", core.CategoryInput{Name: "X", Type: core.Income, Color: "red"})
			return err
		}, core.ErrInvalidColor},
		{"update category without id", func() error {
			_, err := svc.UpdateCategory(ctx, " ", core.CategoryInput{Name: "X", Type: core.Income})
			return err
		}, ErrMissingID},
		{"transaction zero amount", func() error {
			_, err := svc.CreateTransaction(ctx, core.TransactionInput{Type: core.Expense, Category: "c1", Date: core.NewDate(2025, 1, 2)})
			return err
		}, core.ErrInvalidAmount},
		{"transaction without category", func() error {
			_, err := svc.CreateTransaction(ctx, core.TransactionInput{Amount: core.Money{Cents: 100}, Type: core.Expense, Category: "  ", Date: core.NewDate(2025, 1, 2)})
			return err
		}, core.ErrEmptyCategory},
		{"delete transaction without id", func() error {
			return svc.DeleteTransaction(ctx, "")
		}, ErrMissingID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.want) || !IsValidation(err) {
				t.Fatalf("err=%v want %v", err, tt.want)
			}
		})
	}
	if len(cats.created) != 0 || len(txs.created) != 0 {
		t.Fatalf("API must not be called for invalid input")
	}
}

func TestLedgerPassesAPIErrorsThrough(t *testing.T) {
	apiErr := &api.Error{Kind: api.KindServer, Status: 409, Message: "category in use"}
	inv := &recordingInvalidator{}
	svc := NewLedgerService(&fakeCategoryAPI{err: apiErr}, &fakeTransactionAPI{}, inv, nil, nil)

	err := svc.DeleteCategory(sessionCtx(), "c1")
	if !errors.Is(err, apiErr) || IsValidation(err) {
		t.Fatalf("err=%v", err)
	}
	if len(inv.ids) != 0 {
		t.Fatalf("failed mutation must not invalidate")
	}
}

func TestCreateTransactionTrimsText(t *testing.T) {
	txs := &fakeTransactionAPI{}
	svc := NewLedgerService(&fakeCategoryAPI{}, txs, nil, nil, nil)
	in := core.TransactionInput{
		Amount:      core.Money{Cents: 2599},
		Type:        core.Expense,
		Category:    " c1 ",
		Description: "  lunch ",
		Date:        core.NewDate(2025, 6, 30),
	}
	if _, err := svc.CreateTransaction(sessionCtx(), in); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if got := txs.created[0]; got.Category != "c1" || got.Description != "lunch" {
		t.Fatalf("sent=%+v", got)
	}
}
