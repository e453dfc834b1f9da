package services

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"moneybook/internal/api"
	"moneybook/internal/cache"
	"moneybook/internal/core"
	"moneybook/internal/log"
)

// Dashboard parts, as reported in Dashboard.Failed.
const (
	PartSummary       = "summary"
	PartByCategory    = "by-category"
	PartMonthlyTrend  = "monthly-trend"
	PartRecent        = "recent-transactions"
	PartTopCategories = "top-categories"

	recentLimit        = 5
	topCategoriesLimit = 5
)

// Dashboard is everything the overview page shows for one period.
type Dashboard struct {
	Period            core.Period
	Summary           core.Summary
	ExpenseByCategory []core.CategoryTotal
	Trend             []core.MonthTrend
	Recent            []core.Transaction
	TopCategories     []core.CategoryTotal
	// Failed lists the parts that could not be loaded.
	Failed []string
}

func (d Dashboard) Partial() bool {
	return len(d.Failed) > 0
}

func (d Dashboard) SavingsRate() int {
	return d.Summary.SavingsRate()
}

func (d Dashboard) DailyAverageExpense() core.Money {
	return core.DailyAverage(d.Summary.TotalExpense, d.Period.Days())
}

// DashboardService loads dashboards concurrently and caches complete ones
// per session and period.
type DashboardService struct {
	api    DashboardAPI
	cache  *cache.LRUCache[Dashboard]
	logger *log.Logger
}

func NewDashboardService(a DashboardAPI, ttl time.Duration, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Discard()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &DashboardService{
		api:    a,
		cache:  cache.NewLRUCache[Dashboard](256, ttl),
		logger: logger.WithComponent(log.ComponentDashboard),
	}
}

// Cache exposes the dashboard cache for periodic cleanup.
func (s *DashboardService) Cache() cache.Cleaner {
	return s.cache
}

func cacheKey(sessionID string, p core.Period) string {
	return sessionID + "|" + strconv.Itoa(p.Year) + "-" + strconv.Itoa(p.Month)
}

// Invalidate drops every cached dashboard of the session.
func (s *DashboardService) Invalidate(sessionID string) {
	if n := s.cache.DeletePrefix(sessionID + "|"); n > 0 {
		s.logger.Debug("Dashboard cache invalidated", log.FieldSessionID, sessionID, "entries", n)
	}
}

// Load fetches every dashboard part concurrently. Parts fail independently
// and are listed in Failed; an unauthorized response fails the whole load.
func (s *DashboardService) Load(ctx context.Context, sessionID string, p core.Period) (Dashboard, error) {
	if err := p.Validate(); err != nil {
		return Dashboard{}, invalid(err)
	}
	key := cacheKey(sessionID, p)
	if d, ok := s.cache.Get(key); ok {
		return d, nil
	}

	d := Dashboard{Period: p}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	part := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			err := fn(gctx)
			if err == nil {
				return nil
			}
			if api.IsUnauthorized(err) {
				return err
			}
			s.logger.WarnContext(ctx, "Dashboard part failed",
				"part", name,
				log.FieldYear, p.Year,
				log.FieldMonth, p.Month,
				log.FieldErrorKind, errorKind(err),
				log.FieldError, err)
			mu.Lock()
			d.Failed = append(d.Failed, name)
			mu.Unlock()
			return nil
		})
	}

	part(PartSummary, func(ctx context.Context) error {
		v, err := s.api.Summary(ctx, p)
		mu.Lock()
		d.Summary = v
		mu.Unlock()
		return err
	})
	part(PartByCategory, func(ctx context.Context) error {
		v, err := s.api.ByCategory(ctx, p, core.Expense)
		mu.Lock()
		d.ExpenseByCategory = v
		mu.Unlock()
		return err
	})
	part(PartMonthlyTrend, func(ctx context.Context) error {
		v, err := s.api.MonthlyTrend(ctx, p.Year)
		mu.Lock()
		d.Trend = v
		mu.Unlock()
		return err
	})
	part(PartRecent, func(ctx context.Context) error {
		v, err := s.api.RecentTransactions(ctx, recentLimit)
		mu.Lock()
		d.Recent = v
		mu.Unlock()
		return err
	})
	part(PartTopCategories, func(ctx context.Context) error {
		v, err := s.api.TopCategories(ctx, p, core.Expense, topCategoriesLimit)
		mu.Lock()
		d.TopCategories = v
		mu.Unlock()
		return err
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	sortParts(d.Failed)
	if !d.Partial() {
		s.cache.Set(key, d)
	}
	return d, nil
}

var partOrder = map[string]int{
	PartSummary:       0,
	PartByCategory:    1,
	PartMonthlyTrend:  2,
	PartRecent:        3,
	PartTopCategories: 4,
}

func sortParts(parts []string) {
	slices.SortFunc(parts, func(a, b string) int { return partOrder[a] - partOrder[b] })
}
