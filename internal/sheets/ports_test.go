package sheets

import (
	"testing"

	"academy/internal/aggregate"
	"academy/internal/core"
)

func TestRowsFromKPIs(t *testing.T) {
	kpis := []aggregate.MonthKPI{
		{Month: core.Month(1), TotalRevenue: 1000, TotalTarget: 2000, TotalSalary: 300, AchievedPercent: 50, SalaryPercent: 30},
		{Month: core.Month(2)},
	}
	rows := RowsFromKPIs(kpis)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Month != "January" || rows[0].Target != 2000 || rows[0].SalaryPct != 30 {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].Month != "February" || rows[1].Revenue != 0 {
		t.Fatalf("unexpected second row %+v", rows[1])
	}
}

func TestSameRows(t *testing.T) {
	base := []KPIRow{{Month: "January", Revenue: 10.004, AchievedPct: 33.33}}

	tests := []struct {
		name  string
		other []KPIRow
		want  bool
	}{
		{"identical", []KPIRow{{Month: "January", Revenue: 10.004, AchievedPct: 33.33}}, true},
		{"equal after rounding", []KPIRow{{Month: "January", Revenue: 10.0, AchievedPct: 33.3}}, true},
		{"different revenue", []KPIRow{{Month: "January", Revenue: 11, AchievedPct: 33.3}}, false},
		{"different month", []KPIRow{{Month: "February", Revenue: 10, AchievedPct: 33.3}}, false},
		{"different length", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameRows(base, tt.other); got != tt.want {
				t.Fatalf("SameRows = %v, want %v", got, tt.want)
			}
		})
	}
}
