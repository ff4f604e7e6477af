package http

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"academy/internal/aggregate"
	"academy/internal/core"
	"academy/internal/export"
	"academy/internal/services"
)

type leavesView struct {
	Filter     aggregate.LeaveQuery
	Query      template.URL
	Years      []int
	Report     aggregate.LeaveReport
	LeaveTypes []core.LeaveType
	Today      string
}

// parseLeaveQuery reads the leave list filters. Month "All" or blank
// selects the whole year.
func parseLeaveQuery(values url.Values, now int) aggregate.LeaveQuery {
	return aggregate.LeaveQuery{
		Year:     YearValue(values.Get("year"), now),
		Month:    ParseOptionalMonth(values, "month"),
		CoachID:  ParseID(values.Get("coach")),
		CenterID: ParseID(values.Get("center")),
	}
}

func leaveFilterValues(q aggregate.LeaveQuery) url.Values {
	v := url.Values{"year": {strconv.Itoa(q.Year)}, "month": {"All"}}
	if q.Month.Valid() {
		v.Set("month", q.Month.String())
	}
	if q.CoachID > 0 {
		v.Set("coach", strconv.FormatInt(q.CoachID, 10))
	}
	if q.CenterID > 0 {
		v.Set("center", strconv.FormatInt(q.CenterID, 10))
	}
	return v
}

func (s *Server) handleLeaves(w http.ResponseWriter, r *http.Request) {
	q := parseLeaveQuery(r.URL.Query(), s.now().Year())
	rep, err := s.Engine.LeaveReport(r.Context(), q)
	if err != nil {
		msg, status := s.userMessage(r, err, "leaves")
		http.Error(w, msg, status)
		return
	}
	s.render(w, r, http.StatusOK, "leaves", "Leaves", leavesView{
		Filter:     q,
		Query:      template.URL(leaveFilterValues(q).Encode()),
		Years:      yearOptions(s.now(), q.Year),
		Report:     rep,
		LeaveTypes: core.LeaveTypes,
		Today:      s.now().Format("2006-01-02"),
	})
}

func (s *Server) handleLeavesAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		s.badForm(w, r, "/leaves")
		return
	}
	q := parseLeaveQuery(r.URL.Query(), s.now().Year())
	target := withQuery("/leaves", leaveFilterValues(q))
	form := services.LeaveForm{
		CoachID:   ParseID(r.PostForm.Get("coach_id")),
		FromDate:  r.PostForm.Get("from_date"),
		ToDate:    r.PostForm.Get("to_date"),
		LeaveType: r.PostForm.Get("leave_type"),
		Remarks:   r.PostForm.Get("remarks"),
		Year:      YearValue(r.PostForm.Get("year"), 0),
	}
	leaveID := ParseID(r.PostForm.Get("leave_id"))

	var err error
	var msg string
	switch r.PostForm.Get("action") {
	case "add_leave":
		_, err = s.Leaves.AddLeave(ctx, form)
		msg = "Leave added"
	case "edit_leave":
		err = s.Leaves.EditLeave(ctx, leaveID, form)
		msg = "Leave updated"
	case "delete_leave":
		err = s.Leaves.DeleteLeave(ctx, leaveID)
		msg = "Leave deleted"
	default:
		s.flash(w, flashError, "Unknown action")
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	s.redirectResult(w, r, target, "leaves", err, msg)
}

func (s *Server) handleLeavesExport(w http.ResponseWriter, r *http.Request) {
	q := parseLeaveQuery(r.URL.Query(), s.now().Year())
	rep, err := s.Engine.LeaveReport(r.Context(), q)
	if err != nil {
		msg, status := s.userMessage(r, err, "leaves_export")
		http.Error(w, msg, status)
		return
	}
	f, err := export.Leaves(rep)
	if err != nil {
		msg, status := s.userMessage(r, err, "leaves_export")
		http.Error(w, msg, status)
		return
	}
	name := fmt.Sprintf("leaves_%d", q.Year)
	if q.Month.Valid() {
		name += "_" + q.Month.Short()
	}
	s.writeWorkbook(w, r, name+".xlsx", "leaves_export", func() error { return export.Write(w, f) })
}

// writeWorkbook sets the download headers and streams a workbook. Once the
// body has started an error can only be logged.
func (s *Server) writeWorkbook(w http.ResponseWriter, r *http.Request, filename, op string, write func() error) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
	if err := write(); err != nil {
		s.userMessage(r, err, op)
	}
}
