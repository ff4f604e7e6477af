package http

import (
	"fmt"
	"html/template"
	"net/http"

	"academy/internal/aggregate"
	"academy/internal/core"
	"academy/internal/services"
)

type dashboardView struct {
	MonthParams
	Query      template.URL
	Years      []int
	Centers    []aggregate.CenterRow
	Totals     aggregate.CenterRow
	KPIs       []aggregate.MonthKPI
	MaxRevenue float64
}

// snapshotTotals sums the visible centers into one row.
func snapshotTotals(rows []aggregate.CenterRow) aggregate.CenterRow {
	var t aggregate.CenterRow
	t.Name = "Total"
	for _, r := range rows {
		t.Revenue += r.Revenue
		t.Target += r.Target
		t.Salary += r.Salary
	}
	t.Revenue = core.Round2(t.Revenue)
	t.Target = core.Round2(t.Target)
	t.Salary = core.Round2(t.Salary)
	t.AchievementPct = core.Percent(t.Revenue, t.Target)
	t.SalaryPct = core.Percent(t.Salary, t.Revenue)
	return t
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := ParseMonthParams(r.URL.Query(), s.now())

	rows, err := s.Engine.CenterSnapshot(ctx, p.Year, p.Month)
	if err != nil {
		msg, status := s.userMessage(r, err, "dashboard")
		http.Error(w, msg, status)
		return
	}
	kpis, err := s.Engine.MonthlyKPIs(ctx, p.Year)
	if err != nil {
		msg, status := s.userMessage(r, err, "dashboard")
		http.Error(w, msg, status)
		return
	}

	view := dashboardView{
		MonthParams: p,
		Query:       template.URL(p.Query().Encode()),
		Years:       yearOptions(s.now(), p.Year),
		Centers:     rows,
		Totals:      snapshotTotals(rows),
		KPIs:        kpis,
	}
	for _, k := range kpis {
		view.MaxRevenue = max(view.MaxRevenue, k.TotalRevenue, k.TotalTarget)
	}
	s.render(w, r, http.StatusOK, "dashboard", "Dashboard", view)
}

// handleDashboardSave applies the grid. XHR posts get the recomputed
// snapshot and KPIs back as JSON.
func (s *Server) handleDashboardSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		s.badForm(w, r, "/dashboard")
		return
	}
	p := ParseMonthParams(r.Form, s.now())
	in := services.MonthInput{
		Names:   prefixedIDs(r.PostForm, "name_"),
		Revenue: prefixedIDs(r.PostForm, "revenue_"),
		Target:  prefixedIDs(r.PostForm, "target_"),
	}
	err := s.Centers.SaveMonth(ctx, p.Month, p.Year, in)

	if !isXHR(r) {
		s.redirectResult(w, r, withQuery("/dashboard", p.Query()), "dashboard_save", err, "Saved "+p.Month.String()+" "+fmt.Sprint(p.Year))
		return
	}
	if err != nil {
		msg, status := s.userMessage(r, err, "dashboard_save")
		NewJSONResponse().Status(status).Error(msg).Write(w)
		return
	}
	rows, err := s.Engine.CenterSnapshot(ctx, p.Year, p.Month)
	if err != nil {
		msg, status := s.userMessage(r, err, "dashboard_save")
		NewJSONResponse().Status(status).Error(msg).Write(w)
		return
	}
	kpis, err := s.Engine.MonthlyKPIs(ctx, p.Year)
	if err != nil {
		msg, status := s.userMessage(r, err, "dashboard_save")
		NewJSONResponse().Status(status).Error(msg).Write(w)
		return
	}
	NewJSONResponse().
		Set("centers", rows).
		Set("totals", snapshotTotals(rows)).
		Set("monthly_kpis", kpis).
		Write(w)
}

func (s *Server) handleAddCenter(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.badForm(w, r, "/dashboard")
		return
	}
	p := ParseMonthParams(r.Form, s.now())
	c, err := s.Centers.AddCenter(r.Context(), r.PostForm.Get("name"), p.Month, p.Year)
	msg := fmt.Sprintf("Added %s to %s %d", c.Name, p.Month, p.Year)
	s.redirectResult(w, r, withQuery("/dashboard", p.Query()), "add_center", err, msg)
}

func (s *Server) handleDeleteCenter(w http.ResponseWriter, r *http.Request) {
	p := ParseMonthParams(r.URL.Query(), s.now())
	target := withQuery("/dashboard", p.Query())
	id, ok := pathID(r)
	if !ok {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	err := s.Centers.DeleteCenter(r.Context(), id)
	s.redirectResult(w, r, target, "delete_center", err, "Center deleted with all its data")
}

func (s *Server) handleRemoveCenterMonth(w http.ResponseWriter, r *http.Request) {
	p := ParseMonthParams(r.URL.Query(), s.now())
	target := withQuery("/dashboard", p.Query())
	id, ok := pathID(r)
	if !ok {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	res, err := s.Centers.RemoveCenterMonth(r.Context(), id, p.Month, p.Year)
	msg := fmt.Sprintf("Removed %s from %s %d (the center still appears in other months)", res.CenterName, p.Month, p.Year)
	s.redirectResult(w, r, target, "remove_center_month", err, msg)
}

func (s *Server) badForm(w http.ResponseWriter, r *http.Request, target string) {
	if isXHR(r) {
		NewJSONResponse().Status(http.StatusBadRequest).Error("Invalid request").Write(w)
		return
	}
	s.flash(w, flashError, "Invalid request")
	http.Redirect(w, r, target, http.StatusSeeOther)
}
