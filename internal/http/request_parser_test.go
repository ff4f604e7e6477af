package http

import (
	"net/url"
	"reflect"
	"testing"
	"time"

	"academy/internal/core"
)

var parserNow = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

func TestParseMonthParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  MonthParams
	}{
		{"defaults", "", MonthParams{Year: 2026, Month: 5}},
		{"month name", "month=February&year=2024", MonthParams{Year: 2024, Month: 2}},
		{"month number", "month=11&year=2025", MonthParams{Year: 2025, Month: 11}},
		{"bad month keeps current", "month=Smarch", MonthParams{Year: 2026, Month: 5}},
		{"year out of range", "year=1999", MonthParams{Year: 2026, Month: 5}},
		{"year not a number", "year=soon", MonthParams{Year: 2026, Month: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if got := ParseMonthParams(q, parserNow); got != tt.want {
				t.Errorf("ParseMonthParams(%q) = %+v, want %+v", tt.query, got, tt.want)
			}
		})
	}
}

func TestMonthParamsQuery(t *testing.T) {
	got := MonthParams{Year: 2026, Month: 3}.Query().Encode()
	if got != "month=March&year=2026" {
		t.Errorf("Query() = %q", got)
	}
}

func TestParseOptionalMonth(t *testing.T) {
	tests := map[string]core.Month{
		"":      0,
		"All":   0,
		"all":   0,
		"June":  6,
		"7":     7,
		"bogus": 0,
	}
	for in, want := range tests {
		if got := ParseOptionalMonth(url.Values{"month": {in}}, "month"); got != want {
			t.Errorf("ParseOptionalMonth(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseID(t *testing.T) {
	tests := map[string]int64{"42": 42, " 7 ": 7, "-1": 0, "x": 0, "": 0}
	for in, want := range tests {
		if got := ParseID(in); got != want {
			t.Errorf("ParseID(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestPrefixedIDs(t *testing.T) {
	form := url.Values{
		"revenue_3":   {"100"},
		"revenue_12":  {"2.5"},
		"revenue_abc": {"9"},
		"target_3":    {"200"},
		"revenue_":    {"1"},
	}
	want := map[int64]string{3: "100", 12: "2.5"}
	if got := prefixedIDs(form, "revenue_"); !reflect.DeepEqual(got, want) {
		t.Errorf("prefixedIDs = %v, want %v", got, want)
	}
}

func TestYearOptions(t *testing.T) {
	got := yearOptions(parserNow, 2026)
	if len(got) != 7 || got[0] != 2027 || got[6] != 2021 {
		t.Errorf("yearOptions = %v", got)
	}
	if got := yearOptions(parserNow, 2010); got[len(got)-1] != 2010 {
		t.Errorf("selected year outside the window is not offered: %v", got)
	}
}

func TestParseAnalyticsParams(t *testing.T) {
	q := url.Values{"year": {"2025"}, "center": {"4"}, "months": {"Jan", "mar", "Jan"}}
	p := parseAnalyticsParams(q, 2026)
	if p.Year != 2025 || p.CenterID != 4 {
		t.Fatalf("params = %+v", p)
	}
	if !reflect.DeepEqual(p.Months, []core.Month{1, 3}) {
		t.Errorf("months = %v", p.Months)
	}
	if got := p.values().Get("months"); got != "Jan,Mar" {
		t.Errorf("months value = %q", got)
	}

	all := parseAnalyticsParams(url.Values{}, 2026)
	if len(all.Months) != 12 || all.values().Has("months") {
		t.Errorf("default selection = %+v", all)
	}
}

func TestLeaveFilterValues(t *testing.T) {
	q := parseLeaveQuery(url.Values{"year": {"2026"}, "month": {"All"}, "coach": {"5"}}, 2026)
	if q.Month != 0 || q.CoachID != 5 || q.CenterID != 0 {
		t.Fatalf("query = %+v", q)
	}
	v := leaveFilterValues(q)
	if v.Get("month") != "All" || v.Get("coach") != "5" || v.Has("center") {
		t.Errorf("values = %v", v)
	}
}
