// Package aggregate derives KPIs from stored records: monthly totals,
// per-center snapshots, the analytics rollup, salary views and leave
// statistics. Targets are written back from coach salaries here.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"academy/internal/core"
	"academy/internal/store"
)

// AllCentersName labels a rollup that is not filtered by center.
const AllCentersName = "All Centers"

type Engine struct {
	store  store.Store
	logger *slog.Logger
}

func New(s store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, logger: logger}
}

type (
	MonthKPI struct {
		Month           core.Month `json:"month"`
		TotalRevenue    float64    `json:"total_revenue"`
		TotalTarget     float64    `json:"total_target"`
		TotalSalary     float64    `json:"total_salary"`
		AchievedPercent float64    `json:"achieved_percent"`
		SalaryPercent   float64    `json:"salary_percent"`
	}

	CenterRow struct {
		CenterID       int64   `json:"id"`
		Name           string  `json:"name"`
		Revenue        float64 `json:"revenue"`
		Target         float64 `json:"target"`
		Salary         float64 `json:"salary"`
		AchievementPct float64 `json:"achievement"`
		SalaryPct      float64 `json:"salary_percent"`
	}

	MonthSalary struct {
		Month core.Month
		Total float64
	}

	CoachRow struct {
		CoachID    int64
		Name       string
		CenterID   int64
		CenterName string
		Salary     float64
	}
)

func salaryByMonth(totals []store.MonthTotal) map[core.Month]float64 {
	out := make(map[core.Month]float64, len(totals))
	for _, t := range totals {
		out[t.Month] = t.Total
	}
	return out
}

func recordsByMonth(totals []store.RecordTotal) map[core.Month]store.RecordTotal {
	out := make(map[core.Month]store.RecordTotal, len(totals))
	for _, t := range totals {
		out[t.Month] = t
	}
	return out
}

// MonthlyKPIs returns exactly twelve entries, January first. Months without
// data are all zero.
func (e *Engine) MonthlyKPIs(ctx context.Context, year int) ([]MonthKPI, error) {
	rt, err := e.store.RecordTotals(ctx, year, 0)
	if err != nil {
		return nil, fmt.Errorf("monthly kpis: %w", err)
	}
	st, err := e.store.SalaryTotals(ctx, year, 0)
	if err != nil {
		return nil, fmt.Errorf("monthly kpis: %w", err)
	}
	records, salaries := recordsByMonth(rt), salaryByMonth(st)

	out := make([]MonthKPI, 0, len(core.Months))
	for _, m := range core.Months {
		r, salary := records[m], salaries[m]
		out = append(out, MonthKPI{
			Month:           m,
			TotalRevenue:    core.Round2(r.Revenue),
			TotalTarget:     core.Round2(r.Target),
			TotalSalary:     core.Round2(salary),
			AchievedPercent: core.Percent(r.Revenue, r.Target),
			SalaryPercent:   core.Percent(salary, r.Revenue),
		})
	}
	return out, nil
}

// UpdateTargetsForCenter rewrites the target of every existing MonthlyRecord
// of the center in year from that month's salary total. Months with no
// salary keep their target and no record is ever created. It runs on the
// caller's queries so it joins the caller's transaction.
func UpdateTargetsForCenter(ctx context.Context, q store.Queries, centerID int64, year int) (int, error) {
	records, err := q.ListMonthlyRecords(ctx, store.RecordFilter{CenterID: centerID, Year: year})
	if err != nil {
		return 0, fmt.Errorf("update targets: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	totals, err := q.SalaryTotals(ctx, year, centerID)
	if err != nil {
		return 0, fmt.Errorf("update targets: %w", err)
	}
	salaries := salaryByMonth(totals)

	updated := 0
	for _, r := range records {
		target := core.DerivedTarget(salaries[r.Month])
		if target <= 0 || target == r.Target {
			continue
		}
		ok, err := q.SetTarget(ctx, centerID, r.Month, year, target)
		if err != nil {
			return updated, fmt.Errorf("update targets: %w", err)
		}
		if ok {
			updated++
		}
	}
	return updated, nil
}

// ResyncTargets runs UpdateTargetsForCenter for each center in one transaction.
func (e *Engine) ResyncTargets(ctx context.Context, year int, centerIDs ...int64) error {
	return e.store.WithTx(ctx, func(q store.Queries) error {
		for _, id := range centerIDs {
			n, err := UpdateTargetsForCenter(ctx, q, id, year)
			if err != nil {
				return err
			}
			if n > 0 {
				e.logger.DebugContext(ctx, "Targets resynced", "center_id", id, "year", year, "updated", n)
			}
		}
		return nil
	})
}

// CenterSnapshot lists the centers visible in month/year, ordered by id,
// after resynchronizing their targets for the year.
func (e *Engine) CenterSnapshot(ctx context.Context, year int, month core.Month) ([]CenterRow, error) {
	centers, err := e.store.ListCentersForMonth(ctx, month, year)
	if err != nil {
		return nil, fmt.Errorf("center snapshot: %w", err)
	}
	ids := make([]int64, len(centers))
	for i, c := range centers {
		ids[i] = c.ID
	}
	if err := e.ResyncTargets(ctx, year, ids...); err != nil {
		return nil, fmt.Errorf("center snapshot: %w", err)
	}

	out := make([]CenterRow, 0, len(centers))
	for _, c := range centers {
		rec, err := e.store.GetMonthlyRecord(ctx, c.ID, month, year)
		if err != nil {
			return nil, fmt.Errorf("center snapshot: %w", err)
		}
		totals, err := e.store.SalaryTotals(ctx, year, c.ID)
		if err != nil {
			return nil, fmt.Errorf("center snapshot: %w", err)
		}
		salary := salaryByMonth(totals)[month]
		out = append(out, CenterRow{
			CenterID:       c.ID,
			Name:           c.Name,
			Revenue:        rec.Revenue,
			Target:         rec.Target,
			Salary:         core.Round2(salary),
			AchievementPct: core.Percent(rec.Revenue, rec.Target),
			SalaryPct:      core.Percent(salary, rec.Revenue),
		})
	}
	return out, nil
}

// MonthlySalaryTotals returns twelve per-month salary sums for the year.
func (e *Engine) MonthlySalaryTotals(ctx context.Context, year int) ([]MonthSalary, error) {
	totals, err := e.store.SalaryTotals(ctx, year, 0)
	if err != nil {
		return nil, fmt.Errorf("monthly salary totals: %w", err)
	}
	byMonth := salaryByMonth(totals)
	out := make([]MonthSalary, 0, len(core.Months))
	for _, m := range core.Months {
		out = append(out, MonthSalary{Month: m, Total: core.Round2(byMonth[m])})
	}
	return out, nil
}

// SalaryGrid maps coach id to that coach's salary per month of the year.
func (e *Engine) SalaryGrid(ctx context.Context, year int) (map[int64]map[core.Month]float64, error) {
	salaries, err := e.store.ListSalaries(ctx, store.SalaryFilter{Year: year})
	if err != nil {
		return nil, fmt.Errorf("salary grid: %w", err)
	}
	grid := make(map[int64]map[core.Month]float64)
	for _, s := range salaries {
		row, ok := grid[s.CoachID]
		if !ok {
			row = make(map[core.Month]float64)
			grid[s.CoachID] = row
		}
		row[s.Month] = s.Salary
	}
	return grid, nil
}

// CoachRoster lists coaches of the centers visible in month/year with that
// month's salary. centerID 0 means every visible center.
func (e *Engine) CoachRoster(ctx context.Context, year int, month core.Month, centerID int64) ([]CoachRow, error) {
	centers, err := e.store.ListCentersForMonth(ctx, month, year)
	if err != nil {
		return nil, fmt.Errorf("coach roster: %w", err)
	}
	names := make(map[int64]string, len(centers))
	for _, c := range centers {
		names[c.ID] = c.Name
	}

	coaches, err := e.store.ListCoaches(ctx, store.CoachFilter{CenterID: centerID})
	if err != nil {
		return nil, fmt.Errorf("coach roster: %w", err)
	}
	salaries, err := e.store.ListSalaries(ctx, store.SalaryFilter{CenterID: centerID, Month: month, Year: year})
	if err != nil {
		return nil, fmt.Errorf("coach roster: %w", err)
	}
	byCoach := make(map[int64]float64, len(salaries))
	for _, s := range salaries {
		byCoach[s.CoachID] = s.Salary
	}

	var out []CoachRow
	for _, c := range coaches {
		centerName, visible := names[c.CenterID]
		if !visible {
			continue
		}
		out = append(out, CoachRow{
			CoachID:    c.ID,
			Name:       c.Name,
			CenterID:   c.CenterID,
			CenterName: centerName,
			Salary:     byCoach[c.ID],
		})
	}
	return out, nil
}

// centersByName returns every center sorted by name for filter dropdowns.
func (e *Engine) centersByName(ctx context.Context) ([]core.Center, error) {
	centers, err := e.store.ListCenters(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(centers, func(i, j int) bool {
		return strings.ToLower(centers[i].Name) < strings.ToLower(centers[j].Name)
	})
	return centers, nil
}
