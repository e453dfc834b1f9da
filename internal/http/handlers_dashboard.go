package http

import (
	"net/http"
	"strings"

	"moneybook/internal/core"
	"moneybook/internal/log"
	"moneybook/internal/services"
	"moneybook/internal/session"
)

type trendRow struct {
	Label   string
	Income  core.Money
	Expense core.Money
	// Scaled to the largest value of the year, 0-100.
	IncomeBar  int64
	ExpenseBar int64
}

type dashboardView struct {
	services.Dashboard
	Prev        core.Period
	Next        core.Period
	TrendRows   []trendRow
	FailedParts string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	period := ParseMonthParams(r.URL.Query(), s.now())

	d, err := s.dashboard.Load(r.Context(), sess.ID, period)
	if err != nil {
		s.failed(w, r, "dashboard", err)
		return
	}
	if d.Partial() {
		s.logFor(r).WithComponent(log.ComponentDashboard).WarnContext(r.Context(), "Dashboard partially loaded",
			log.FieldYear, period.Year,
			log.FieldMonth, period.Month,
			"failed_parts", d.Failed)
	}

	data := pageData{
		Title:  "Dashboard",
		Active: "dashboard",
		Data:   newDashboardView(d),
	}
	s.render(w, r, http.StatusOK, "dashboard.html", data)
}

func newDashboardView(d services.Dashboard) dashboardView {
	v := dashboardView{
		Dashboard: d,
		Prev:      d.Period.Previous(),
		Next:      d.Period.Next(),
	}
	var peak int64
	for _, m := range d.Trend {
		peak = max(peak, m.Income.Cents, m.Expense.Cents)
	}
	for _, m := range d.Trend {
		v.TrendRows = append(v.TrendRows, trendRow{
			Label:      string(m.Month),
			Income:     m.Income,
			Expense:    m.Expense,
			IncomeBar:  scale(m.Income.Cents, peak),
			ExpenseBar: scale(m.Expense.Cents, peak),
		})
	}
	v.FailedParts = strings.Join(d.Failed, ", ")
	return v
}

// scale returns v as a rounded percentage of peak.
func scale(v, peak int64) int64 {
	if peak <= 0 || v <= 0 {
		return 0
	}
	return (v*100 + peak/2) / peak
}
