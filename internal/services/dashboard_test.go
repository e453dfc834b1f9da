package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"moneybook/internal/api"
	"moneybook/internal/core"
)

type fakeDashboardAPI struct {
	calls    atomic.Int32
	failPart string
	failErr  error
}

func (f *fakeDashboardAPI) fail(part string) error {
	if f.failPart == part {
		return f.failErr
	}
	return nil
}

func (f *fakeDashboardAPI) Summary(ctx context.Context, p core.Period) (core.Summary, error) {
	f.calls.Add(1)
	if err := f.fail(PartSummary); err != nil {
		return core.Summary{}, err
	}
	return core.Summary{TotalIncome: core.Money{Cents: 100000}, TotalExpense: core.Money{Cents: 30000}, Balance: core.Money{Cents: 70000}, TransactionCount: 4}, nil
}

func (f *fakeDashboardAPI) ByCategory(ctx context.Context, p core.Period, t core.TransactionType) ([]core.CategoryTotal, error) {
	f.calls.Add(1)
	if err := f.fail(PartByCategory); err != nil {
		return nil, err
	}
	return []core.CategoryTotal{{ID: "c1", Name: "Food", Total: core.Money{Cents: 30000}}}, nil
}

func (f *fakeDashboardAPI) MonthlyTrend(ctx context.Context, year int) ([]core.MonthTrend, error) {
	f.calls.Add(1)
	if err := f.fail(PartMonthlyTrend); err != nil {
		return nil, err
	}
	return []core.MonthTrend{{Month: "Jun"}}, nil
}

func (f *fakeDashboardAPI) RecentTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	f.calls.Add(1)
	if err := f.fail(PartRecent); err != nil {
		return nil, err
	}
	return make([]core.Transaction, limit), nil
}

func (f *fakeDashboardAPI) TopCategories(ctx context.Context, p core.Period, t core.TransactionType, limit int) ([]core.CategoryTotal, error) {
	f.calls.Add(1)
	if err := f.fail(PartTopCategories); err != nil {
		return nil, err
	}
	return []core.CategoryTotal{{ID: "c1"}}, nil
}

var june = core.Period{Year: 2025, Month: 6}

func TestDashboardLoadsAllPartsAndCaches(t *testing.T) {
	fake := &fakeDashboardAPI{}
	svc := NewDashboardService(fake, time.Minute, nil)

	d, err := svc.Load(context.Background(), "s1", june)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Partial() || d.Summary.TransactionCount != 4 || len(d.Recent) != recentLimit || len(d.Trend) != 1 {
		t.Fatalf("dashboard=%+v", d)
	}
	if d.SavingsRate() != 70 {
		t.Fatalf("savings rate=%d", d.SavingsRate())
	}
	if got := d.DailyAverageExpense(); got.Cents != 1000 {
		t.Fatalf("daily average=%d", got.Cents)
	}

	if _, err := svc.Load(context.Background(), "s1", june); err != nil {
		t.Fatal(err)
	}
	if fake.calls.Load() != 5 {
		t.Fatalf("second load should be cached, calls=%d", fake.calls.Load())
	}

	svc.Invalidate("s1")
	svc.Load(context.Background(), "s1", june)
	if fake.calls.Load() != 10 {
		t.Fatalf("invalidate should force reload, calls=%d", fake.calls.Load())
	}
}

func TestDashboardPartialFailure(t *testing.T) {
	fake := &fakeDashboardAPI{failPart: PartMonthlyTrend, failErr: &api.Error{Kind: api.KindServer, Status: 500}}
	svc := NewDashboardService(fake, time.Minute, nil)

	d, err := svc.Load(context.Background(), "s1", june)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !d.Partial() || len(d.Failed) != 1 || d.Failed[0] != PartMonthlyTrend {
		t.Fatalf("failed=%v", d.Failed)
	}
	if d.Summary.TransactionCount != 4 {
		t.Fatalf("other parts should load")
	}

	svc.Load(context.Background(), "s1", june)
	if fake.calls.Load() != 10 {
		t.Fatalf("partial dashboards must not be cached, calls=%d", fake.calls.Load())
	}
}

func TestDashboardUnauthorizedFailsWholeLoad(t *testing.T) {
	fake := &fakeDashboardAPI{failPart: PartSummary, failErr: &api.Error{Kind: api.KindUnauthorized, Status: 401}}
	svc := NewDashboardService(fake, time.Minute, nil)

	if _, err := svc.Load(context.Background(), "s1", june); !api.IsUnauthorized(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestDashboardRejectsInvalidPeriod(t *testing.T) {
	svc := NewDashboardService(&fakeDashboardAPI{}, time.Minute, nil)
	if _, err := svc.Load(context.Background(), "s1", core.Period{Year: 2025, Month: 13}); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Fatalf("err=%v", err)
	}
}

func TestSortParts(t *testing.T) {
	parts := []string{PartTopCategories, PartSummary, PartRecent}
	sortParts(parts)
	if parts[0] != PartSummary || parts[1] != PartRecent || parts[2] != PartTopCategories {
		t.Fatalf("parts=%v", parts)
	}
}
