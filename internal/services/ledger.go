package services

import (
	"context"
	"strings"

	"moneybook/internal/core"
	"moneybook/internal/events"
	"moneybook/internal/log"
	"moneybook/internal/session"
)

// Invalidator drops cached views derived from a session's data.
type Invalidator interface {
	Invalidate(sessionID string)
}

// LedgerService manages the categories and transactions of the signed-in
// user.
type LedgerService struct {
	categories   CategoryAPI
	transactions TransactionAPI
	invalidator  Invalidator
	notifier     *events.Notifier
	logger       *log.Logger
}

func NewLedgerService(categories CategoryAPI, transactions TransactionAPI, inv Invalidator, notifier *events.Notifier, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerService{
		categories:   categories,
		transactions: transactions,
		invalidator:  inv,
		notifier:     notifier,
		logger:       logger.WithComponent(log.ComponentLedger),
	}
}

func (s *LedgerService) ListCategories(ctx context.Context, t core.TransactionType) ([]core.Category, error) {
	return s.categories.List(ctx, t)
}

func (s *LedgerService) GetCategory(ctx context.Context, id string) (core.Category, error) {
	if strings.TrimSpace(id) == "" {
		return core.Category{}, invalid(ErrMissingID)
	}
	return s.categories.Get(ctx, id)
}

func (s *LedgerService) CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Category{}, invalid(err)
	}
	c, err := s.categories.Create(ctx, in)
	if err != nil {
		return core.Category{}, err
	}
	s.changed(ctx, events.CategoryCreated, c.ID, log.OpCreate)
	return c, nil
}

func (s *LedgerService) UpdateCategory(ctx context.Context, id string, in core.CategoryInput) (core.Category, error) {
	if strings.TrimSpace(id) == "" {
		return core.Category{}, invalid(ErrMissingID)
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Category{}, invalid(err)
	}
	c, err := s.categories.Update(ctx, id, in)
	if err != nil {
		return core.Category{}, err
	}
	s.changed(ctx, events.CategoryUpdated, id, log.OpUpdate)
	return c, nil
}

func (s *LedgerService) DeleteCategory(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid(ErrMissingID)
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, events.CategoryDeleted, id, log.OpDelete)
	return nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	return s.transactions.List(ctx, f)
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return core.Transaction{}, invalid(ErrMissingID)
	}
	return s.transactions.Get(ctx, id)
}

func (s *LedgerService) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	in = normalizeTransaction(in)
	if err := in.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}
	t, err := s.transactions.Create(ctx, in)
	if err != nil {
		return core.Transaction{}, err
	}
	s.changed(ctx, events.TransactionCreated, t.ID, log.OpCreate)
	return t, nil
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, in core.TransactionInput) (core.Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return core.Transaction{}, invalid(ErrMissingID)
	}
	in = normalizeTransaction(in)
	if err := in.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}
	t, err := s.transactions.Update(ctx, id, in)
	if err != nil {
		return core.Transaction{}, err
	}
	s.changed(ctx, events.TransactionUpdated, id, log.OpUpdate)
	return t, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid(ErrMissingID)
	}
	if err := s.transactions.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, events.TransactionDeleted, id, log.OpDelete)
	return nil
}

// changed runs after every successful mutation.
func (s *LedgerService) changed(ctx context.Context, kind events.Kind, id, op string) {
	sess, _ := session.FromContext(ctx)
	if s.invalidator != nil && sess.ID != "" {
		s.invalidator.Invalidate(sess.ID)
	}
	s.logger.InfoContext(ctx, "Ledger updated",
		log.FieldOperation, op,
		log.FieldEventKind, kind,
		log.FieldEntityID, id,
		log.FieldUserID, sess.User.ID)
	s.notifier.Notify(ctx, kind, id, sess.User.ID)
}

func normalizeTransaction(in core.TransactionInput) core.TransactionInput {
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	in.Note = strings.TrimSpace(in.Note)
	return in
}
