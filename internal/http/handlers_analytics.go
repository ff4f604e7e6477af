package http

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"academy/internal/aggregate"
	"academy/internal/core"
	"academy/internal/export"
)

type analyticsView struct {
	Rollup     aggregate.Rollup
	Years      []int
	Query      template.URL
	MaxRevenue float64
}

type analyticsParams struct {
	Year     int
	CenterID int64
	Months   []core.Month
}

// parseAnalyticsParams accepts months either as one comma separated value
// or as repeated month checkboxes.
func parseAnalyticsParams(values url.Values, now int) analyticsParams {
	return analyticsParams{
		Year:     YearValue(values.Get("year"), now),
		CenterID: ParseID(values.Get("center")),
		Months:   core.ParseMonthList(strings.Join(values["months"], ",")),
	}
}

func (p analyticsParams) values() url.Values {
	v := url.Values{"year": {strconv.Itoa(p.Year)}}
	if p.CenterID > 0 {
		v.Set("center", strconv.FormatInt(p.CenterID, 10))
	}
	if len(p.Months) < len(core.Months) {
		names := make([]string, len(p.Months))
		for i, m := range p.Months {
			names[i] = m.Short()
		}
		v.Set("months", strings.Join(names, ","))
	}
	return v
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	p := parseAnalyticsParams(r.URL.Query(), s.now().Year())
	rollup, err := s.Engine.AnalyticsRollup(r.Context(), p.Year, p.CenterID, p.Months)
	if err != nil {
		msg, status := s.userMessage(r, err, "analytics")
		http.Error(w, msg, status)
		return
	}
	view := analyticsView{
		Rollup: rollup,
		Years:  yearOptions(s.now(), p.Year),
		Query:  template.URL(p.values().Encode()),
	}
	for _, m := range rollup.Months {
		view.MaxRevenue = max(view.MaxRevenue, m.Revenue, m.Target)
	}
	s.render(w, r, http.StatusOK, "analytics", "Analytics", view)
}

func (s *Server) handleAnalyticsExport(w http.ResponseWriter, r *http.Request) {
	p := parseAnalyticsParams(r.URL.Query(), s.now().Year())
	rollup, err := s.Engine.AnalyticsRollup(r.Context(), p.Year, p.CenterID, p.Months)
	if err != nil {
		msg, status := s.userMessage(r, err, "analytics_export")
		http.Error(w, msg, status)
		return
	}
	f, err := export.Analytics(rollup)
	if err != nil {
		msg, status := s.userMessage(r, err, "analytics_export")
		http.Error(w, msg, status)
		return
	}
	name := fmt.Sprintf("analytics_%d", p.Year)
	if p.CenterID > 0 {
		name += "_center" + strconv.FormatInt(p.CenterID, 10)
	}
	s.writeWorkbook(w, r, name+".xlsx", "analytics_export", func() error { return export.Write(w, f) })
}
