package http

import (
	"html/template"
	"net/http"
	"strconv"

	"academy/internal/aggregate"
	"academy/internal/core"
	"academy/internal/services"
)

type coachesView struct {
	MonthParams
	Query          template.URL
	Years          []int
	SelectedCenter int64
	Centers        []core.Center
	Coaches        []aggregate.CoachRow
	SalaryGrid     map[int64]map[core.Month]float64
	MonthlySalary  []aggregate.MonthSalary
	MonthTotal     float64
}

func coachesTarget(p MonthParams, center int64) string {
	q := p.Query()
	if center > 0 {
		q.Set("center", strconv.FormatInt(center, 10))
	}
	return withQuery("/coaches", q)
}

func (s *Server) handleCoaches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	p := ParseMonthParams(q, s.now())
	view := coachesView{
		MonthParams:    p,
		Query:          template.URL(p.Query().Encode()),
		Years:          yearOptions(s.now(), p.Year),
		SelectedCenter: ParseID(q.Get("center")),
	}

	var err error
	fail := func() {
		msg, status := s.userMessage(r, err, "coaches")
		http.Error(w, msg, status)
	}
	if view.Centers, err = s.Store.ListCentersForMonth(ctx, p.Month, p.Year); err != nil {
		fail()
		return
	}
	if view.Coaches, err = s.Engine.CoachRoster(ctx, p.Year, p.Month, view.SelectedCenter); err != nil {
		fail()
		return
	}
	if view.SalaryGrid, err = s.Engine.SalaryGrid(ctx, p.Year); err != nil {
		fail()
		return
	}
	if view.MonthlySalary, err = s.Engine.MonthlySalaryTotals(ctx, p.Year); err != nil {
		fail()
		return
	}
	for _, c := range view.Coaches {
		view.MonthTotal += c.Salary
	}
	view.MonthTotal = core.Round2(view.MonthTotal)
	s.render(w, r, http.StatusOK, "coaches", "Coaches", view)
}

func (s *Server) handleCoachesAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		s.badForm(w, r, "/coaches")
		return
	}
	p := ParseMonthParams(r.URL.Query(), s.now())
	target := coachesTarget(p, ParseID(r.URL.Query().Get("center")))
	form := services.CoachForm{
		Name:     r.PostForm.Get("name"),
		CenterID: ParseID(r.PostForm.Get("center_id")),
	}

	var err error
	var msg string
	switch action := r.PostForm.Get("action"); action {
	case "add_coach":
		_, err = s.Coaches.AddCoach(ctx, form)
		msg = "Coach added"
	case "edit_coach":
		err = s.Coaches.EditCoach(ctx, ParseID(r.PostForm.Get("coach_id")), form, p.Year)
		msg = "Coach updated"
	case "update_salary":
		month, perr := core.ParseMonth(r.PostForm.Get("salary_month"))
		if perr != nil {
			month = p.Month
		}
		year := YearValue(r.PostForm.Get("salary_year"), p.Year)
		err = s.Coaches.UpsertSalary(ctx, ParseID(r.PostForm.Get("coach_id")), month, year, r.PostForm.Get("salary"))
		msg = "Salary saved for " + month.String() + " " + strconv.Itoa(year)
	default:
		s.flash(w, flashError, "Unknown action")
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	s.redirectResult(w, r, target, "coaches", err, msg)
}

func (s *Server) handleDeleteCoach(w http.ResponseWriter, r *http.Request) {
	p := ParseMonthParams(r.URL.Query(), s.now())
	target := coachesTarget(p, ParseID(r.URL.Query().Get("center")))
	id, ok := pathID(r)
	if !ok {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	err := s.Coaches.DeleteCoach(r.Context(), id, p.Year)
	s.redirectResult(w, r, target, "delete_coach", err, "Coach deleted with their salaries and leaves")
}
