// Package sheets defines the outbound ports used to mirror monthly KPIs into
// a spreadsheet, plus the row shape shared by every adapter.
package sheets

import (
	"context"

	"academy/internal/aggregate"
	"academy/internal/core"
)

// KPIHeader is the first row of every KPI tab.
var KPIHeader = []string{"Month", "Revenue", "Target", "Salary", "Achieved %", "Salary %"}

// KPIRow is one month of a year's KPI tab.
type KPIRow struct {
	Month       string
	Revenue     float64
	Target      float64
	Salary      float64
	AchievedPct float64
	SalaryPct   float64
}

// Ports for outbound adapters.
type (
	KPIWriter interface {
		// WriteKPIs replaces the year's tab with rows and returns the written range.
		WriteKPIs(ctx context.Context, year int, rows []KPIRow) (rng string, err error)
	}

	KPIReader interface {
		// ReadKPIs returns the rows currently stored for the year. A missing
		// tab yields no rows and no error.
		ReadKPIs(ctx context.Context, year int) ([]KPIRow, error)
	}

	KPISheet interface {
		KPIWriter
		KPIReader
	}
)

// RowsFromKPIs converts engine output into sheet rows.
func RowsFromKPIs(kpis []aggregate.MonthKPI) []KPIRow {
	rows := make([]KPIRow, 0, len(kpis))
	for _, k := range kpis {
		rows = append(rows, KPIRow{
			Month:       k.Month.String(),
			Revenue:     k.TotalRevenue,
			Target:      k.TotalTarget,
			Salary:      k.TotalSalary,
			AchievedPct: k.AchievedPercent,
			SalaryPct:   k.SalaryPercent,
		})
	}
	return rows
}

// SameRows reports whether two row sets hold the same figures once rounded
// the way the engine rounds them.
func SameRows(a, b []KPIRow) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Month != y.Month ||
			core.Round2(x.Revenue) != core.Round2(y.Revenue) ||
			core.Round2(x.Target) != core.Round2(y.Target) ||
			core.Round2(x.Salary) != core.Round2(y.Salary) ||
			core.Round1(x.AchievedPct) != core.Round1(y.AchievedPct) ||
			core.Round1(x.SalaryPct) != core.Round1(y.SalaryPct) {
			return false
		}
	}
	return true
}
