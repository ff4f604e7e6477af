package aggregate

import (
	"context"
	"fmt"

	"academy/internal/core"
)

// Direction is the sign of month-over-month revenue growth.
type Direction string

const (
	GrowthUp   Direction = "up"
	GrowthDown Direction = "down"
	GrowthFlat Direction = "flat"
)

type (
	MonthAnalytics struct {
		Month          core.Month
		Revenue        float64
		Target         float64
		Salary         float64
		AchievedPct    float64
		SalaryRatioPct float64
		Profit         float64
		IsSelected     bool
	}

	Growth struct {
		Month     core.Month
		Percent   float64
		Direction Direction
	}

	Rollup struct {
		Year       int
		CenterID   int64
		CenterName string
		Centers    []core.Center

		Months []MonthAnalytics
		Growth []Growth

		TotalRevenue float64
		TotalTarget  float64
		TotalSalary  float64

		Selected        []core.Month
		SelectedRevenue float64
		SelectedTarget  float64
		SelectedCount   int
		AvgRevenue      float64
		AvgTarget       float64
		AvgAchievement  float64
	}
)

// AnalyticsRollup builds the twelve-month analytics view for year.
// centerID 0 covers every center; an empty months slice selects all months.
func (e *Engine) AnalyticsRollup(ctx context.Context, year int, centerID int64, months []core.Month) (Rollup, error) {
	if len(months) == 0 {
		months = core.Months[:]
	}
	selected := make(map[core.Month]bool, len(months))
	for _, m := range months {
		selected[m] = true
	}

	centers, err := e.centersByName(ctx)
	if err != nil {
		return Rollup{}, fmt.Errorf("analytics rollup: %w", err)
	}
	rollup := Rollup{
		Year:       year,
		CenterID:   centerID,
		CenterName: AllCentersName,
		Centers:    centers,
		Selected:   months,
	}
	if centerID != 0 {
		for _, c := range centers {
			if c.ID == centerID {
				rollup.CenterName = c.Name
				break
			}
		}
	}

	rt, err := e.store.RecordTotals(ctx, year, centerID)
	if err != nil {
		return Rollup{}, fmt.Errorf("analytics rollup: %w", err)
	}
	st, err := e.store.SalaryTotals(ctx, year, centerID)
	if err != nil {
		return Rollup{}, fmt.Errorf("analytics rollup: %w", err)
	}
	records, salaries := recordsByMonth(rt), salaryByMonth(st)

	for _, m := range core.Months {
		r, salary := records[m], salaries[m]
		row := MonthAnalytics{
			Month:          m,
			Revenue:        core.Round2(r.Revenue),
			Target:         core.Round2(r.Target),
			Salary:         core.Round2(salary),
			AchievedPct:    core.Percent(r.Revenue, r.Target),
			SalaryRatioPct: core.Percent(salary, r.Revenue),
			Profit:         core.Round2(r.Revenue - salary),
			IsSelected:     selected[m],
		}
		rollup.Months = append(rollup.Months, row)

		rollup.TotalRevenue += r.Revenue
		rollup.TotalTarget += r.Target
		rollup.TotalSalary += salary
		if row.IsSelected {
			rollup.SelectedRevenue += r.Revenue
			rollup.SelectedTarget += r.Target
			rollup.SelectedCount++
		}
	}

	rollup.TotalRevenue = core.Round2(rollup.TotalRevenue)
	rollup.TotalTarget = core.Round2(rollup.TotalTarget)
	rollup.TotalSalary = core.Round2(rollup.TotalSalary)
	if rollup.SelectedCount > 0 {
		rollup.AvgRevenue = core.Round2(rollup.SelectedRevenue / float64(rollup.SelectedCount))
		rollup.AvgTarget = core.Round2(rollup.SelectedTarget / float64(rollup.SelectedCount))
	}
	rollup.AvgAchievement = core.Percent(rollup.SelectedRevenue, rollup.SelectedTarget)
	rollup.SelectedRevenue = core.Round2(rollup.SelectedRevenue)
	rollup.SelectedTarget = core.Round2(rollup.SelectedTarget)
	rollup.Growth = growthSeries(rollup.Months)

	return rollup, nil
}

// growthSeries computes month-over-month revenue growth. The first month and
// months following a zero-revenue month report 0.
func growthSeries(rows []MonthAnalytics) []Growth {
	out := make([]Growth, 0, len(rows))
	for i, row := range rows {
		var pct float64
		if i > 0 {
			if prev := rows[i-1].Revenue; prev > 0 {
				pct = core.Round1((row.Revenue - prev) / prev * 100)
			}
		}
		dir := GrowthFlat
		switch {
		case pct > 0:
			dir = GrowthUp
		case pct < 0:
			dir = GrowthDown
		}
		out = append(out, Growth{Month: row.Month, Percent: pct, Direction: dir})
	}
	return out
}
