package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"academy/internal/core"
)

const (
	minYear = 2000
	maxYear = 2100
)

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month core.Month
}

// Query renders the params the way links and redirects carry them.
func (p MonthParams) Query() url.Values {
	return url.Values{"month": {p.Month.String()}, "year": {strconv.Itoa(p.Year)}}
}

// ParseMonthParams extracts year and month, defaulting to now. The month may
// be a calendar name or a number.
func ParseMonthParams(values url.Values, now time.Time) MonthParams {
	p := MonthParams{Year: ParseYear(values, now), Month: core.Month(now.Month())}
	if m, err := core.ParseMonth(values.Get("month")); err == nil {
		p.Month = m
	}
	return p
}

// ParseYear reads the year parameter; missing or out of range values give
// the current year.
func ParseYear(values url.Values, now time.Time) int {
	return YearValue(values.Get("year"), now.Year())
}

// YearValue parses a year, returning fallback when v is blank or out of range.
func YearValue(v string, fallback int) int {
	if y, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && y >= minYear && y <= maxYear {
		return y
	}
	return fallback
}

// ParseOptionalMonth reads a month filter where "", "all" and "All" mean
// every month (0).
func ParseOptionalMonth(values url.Values, key string) core.Month {
	v := strings.TrimSpace(values.Get(key))
	if v == "" || strings.EqualFold(v, "all") {
		return 0
	}
	m, err := core.ParseMonth(v)
	if err != nil {
		return 0
	}
	return m
}

// ParseID reads a positive integer id; anything else is 0.
func ParseID(v string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func pathID(r *http.Request) (int64, bool) {
	id := ParseID(r.PathValue("id"))
	return id, id > 0
}

// prefixedIDs collects form values named <prefix><id>, e.g. revenue_3.
func prefixedIDs(form url.Values, prefix string) map[int64]string {
	out := make(map[int64]string)
	for key, vals := range form {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok || len(vals) == 0 {
			continue
		}
		if id := ParseID(rest); id > 0 {
			out[id] = vals[0]
		}
	}
	return out
}

// yearOptions lists the years offered in the period pickers.
func yearOptions(now time.Time, selected int) []int {
	first, last := now.Year()-5, now.Year()+1
	if selected < first {
		first = selected
	}
	if selected > last {
		last = selected
	}
	out := make([]int, 0, last-first+1)
	for y := last; y >= first; y-- {
		out = append(out, y)
	}
	return out
}
