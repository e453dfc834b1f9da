package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"moneybook/internal/api"
	"moneybook/internal/core"
	"moneybook/internal/events"
)

type fakeAuthAPI struct {
	result  api.AuthResult
	err     error
	me      core.User
	meErr   error
	meCalls int
	tokens  []string
}

func (f *fakeAuthAPI) Register(ctx context.Context, name, email, password string) (api.AuthResult, error) {
	return f.result, f.err
}

func (f *fakeAuthAPI) Login(ctx context.Context, email, password string) (api.AuthResult, error) {
	return f.result, f.err
}

func (f *fakeAuthAPI) Me(ctx context.Context) (core.User, error) {
	f.meCalls++
	return f.me, f.meErr
}

type fakeCategoryAPI struct {
	created []core.CategoryInput
	deleted []string
	err     error
}

func (f *fakeCategoryAPI) List(ctx context.Context, t core.TransactionType) ([]core.Category, error) {
	return []core.Category{{ID: "c1", Name: "Food", Type: core.Expense}}, f.err
}

func (f *fakeCategoryAPI) Get(ctx context.Context, id string) (core.Category, error) {
	return core.Category{ID: id}, f.err
}

func (f *fakeCategoryAPI) Create(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	if f.err != nil {
		return core.Category{}, f.err
	}
	f.created = append(f.created, in)
	return core.Category{ID: "new", Name: in.Name, Type: in.Type, Icon: in.Icon, Color: in.Color}, nil
}

func (f *fakeCategoryAPI) Update(ctx context.Context, id string, in core.CategoryInput) (core.Category, error) {
	return core.Category{ID: id, Name: in.Name}, f.err
}

func (f *fakeCategoryAPI) Delete(ctx context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeTransactionAPI struct {
	created []core.TransactionInput
	err     error
}

func (f *fakeTransactionAPI) List(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, error) {
	return nil, f.err
}

func (f *fakeTransactionAPI) Get(ctx context.Context, id string) (core.Transaction, error) {
	return core.Transaction{ID: id}, f.err
}

func (f *fakeTransactionAPI) Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if f.err != nil {
		return core.Transaction{}, f.err
	}
	f.created = append(f.created, in)
	return core.Transaction{ID: "t-new", Amount: in.Amount, Type: in.Type}, nil
}

func (f *fakeTransactionAPI) Update(ctx context.Context, id string, in core.TransactionInput) (core.Transaction, error) {
	return core.Transaction{ID: id}, f.err
}

func (f *fakeTransactionAPI) Delete(ctx context.Context, id string) error {
	return f.err
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []events.ActivityMessage
}

func (r *recordingPublisher) Publish(ctx context.Context, msg events.ActivityMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

// waitFor returns the recorded messages once at least n have arrived.
func (r *recordingPublisher) waitFor(t *testing.T, n int) []events.ActivityMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		r.mu.Lock()
		msgs := append([]events.ActivityMessage(nil), r.msgs...)
		r.mu.Unlock()
		if len(msgs) >= n || time.Now().After(deadline) {
			return msgs
		}
		time.Sleep(time.Millisecond)
	}
}

func (r *recordingPublisher) kinds(t *testing.T, n int) []events.Kind {
	t.Helper()
	msgs := r.waitFor(t, n)
	out := make([]events.Kind, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Kind)
	}
	return out
}

type recordingInvalidator struct {
	ids []string
}

func (r *recordingInvalidator) Invalidate(sessionID string) {
	r.ids = append(r.ids, sessionID)
}
