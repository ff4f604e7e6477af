package aggregate

import (
	"context"
	"path/filepath"
	"testing"

	"academy/internal/core"
	"academy/internal/storage"
	"academy/internal/storage/memory"
	"academy/internal/store"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store store.Store
}

func newFixture(t *testing.T, s store.Store) *fixture {
	return &fixture{t: t, ctx: context.Background(), store: s}
}

func (f *fixture) center(name string, months ...core.Month) int64 {
	f.t.Helper()
	id, err := f.store.CreateCenter(f.ctx, name)
	if err != nil {
		f.t.Fatalf("create center: %v", err)
	}
	for _, m := range months {
		f.record(id, m, 0, 0)
	}
	return id
}

func (f *fixture) record(centerID int64, m core.Month, revenue, target float64) {
	f.t.Helper()
	r, err := f.store.GetMonthlyRecord(f.ctx, centerID, m, 2026)
	if err == nil {
		r.Revenue, r.Target = revenue, target
		if err := f.store.UpdateMonthlyRecord(f.ctx, r); err != nil {
			f.t.Fatalf("update record: %v", err)
		}
		return
	}
	if _, err := f.store.InsertMonthlyRecord(f.ctx, core.MonthlyRecord{CenterID: centerID, Month: m, Year: 2026, Revenue: revenue, Target: target}); err != nil {
		f.t.Fatalf("insert record: %v", err)
	}
}

func (f *fixture) coach(name string, centerID int64) int64 {
	f.t.Helper()
	id, err := f.store.InsertCoach(f.ctx, core.Coach{Name: name, CenterID: centerID})
	if err != nil {
		f.t.Fatalf("insert coach: %v", err)
	}
	return id
}

func (f *fixture) salary(coachID int64, m core.Month, amount float64) {
	f.t.Helper()
	if _, err := f.store.InsertSalary(f.ctx, core.CoachSalary{CoachID: coachID, Month: m, Year: 2026, Salary: amount}); err != nil {
		f.t.Fatalf("insert salary: %v", err)
	}
}

func (f *fixture) leave(coachID int64, from, to string, lt core.LeaveType) {
	f.t.Helper()
	fd, _ := core.ParseDate(from)
	td, _ := core.ParseDate(to)
	if _, err := f.store.InsertLeave(f.ctx, core.CoachLeave{CoachID: coachID, FromDate: fd, ToDate: td, LeaveType: lt, Year: 2026}); err != nil {
		f.t.Fatalf("insert leave: %v", err)
	}
}

func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "academy.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return map[string]store.Store{"memory": memory.New(), "sqlite": repo}
}

func TestMonthlyKPIsAlwaysTwelveMonths(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, s)
			a := f.center("A")
			f.record(a, 3, 500, 1000)
			c := f.coach("Ann", a)
			f.salary(c, 3, 150)

			kpis, err := New(s, nil).MonthlyKPIs(f.ctx, 2026)
			if err != nil {
				t.Fatalf("kpis: %v", err)
			}
			if len(kpis) != 12 {
				t.Fatalf("expected 12 entries, got %d", len(kpis))
			}
			for i, k := range kpis {
				if k.Month != core.Month(i+1) {
					t.Fatalf("entry %d has month %v", i, k.Month)
				}
			}
			mar := kpis[2]
			if mar.TotalRevenue != 500 || mar.TotalTarget != 1000 || mar.AchievedPercent != 50 || mar.SalaryPercent != 30 {
				t.Fatalf("unexpected march: %+v", mar)
			}
			if jan := kpis[0]; jan.TotalRevenue != 0 || jan.AchievedPercent != 0 || jan.SalaryPercent != 0 {
				t.Fatalf("empty month should be zero: %+v", jan)
			}
		})
	}
}

func TestTargetDerivedFromSalary(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, s)
			a := f.center("A", 1, 2)
			f.record(a, 2, 0, 777)
			c := f.coach("Ann", a)
			f.salary(c, 1, 200)
			f.salary(c, 3, 99) // no March record
			other := f.coach("Bob", a)
			f.salary(other, 1, 99)

			e := New(s, nil)
			rows, err := e.CenterSnapshot(f.ctx, 2026, 1)
			if err != nil {
				t.Fatalf("snapshot: %v", err)
			}
			if len(rows) != 1 || rows[0].Target != 1000 || rows[0].Salary != 299 {
				t.Fatalf("unexpected snapshot: %+v", rows)
			}

			feb, _ := s.GetMonthlyRecord(f.ctx, a, 2, 2026)
			if feb.Target != 777 {
				t.Fatalf("zero-salary month target should be kept, got %v", feb.Target)
			}
			if _, err := s.GetMonthlyRecord(f.ctx, a, 3, 2026); err == nil {
				t.Fatalf("resync must not create a March record")
			}

			again, _ := e.CenterSnapshot(f.ctx, 2026, 1)
			if again[0].Target != rows[0].Target {
				t.Fatalf("resync not idempotent: %v then %v", rows[0].Target, again[0].Target)
			}
		})
	}
}

func TestUpdateTargetsForCenterInsideTx(t *testing.T) {
	s := memory.New()
	f := newFixture(t, s)
	a := f.center("A", 5)
	c := f.coach("Ann", a)
	f.salary(c, 5, 29.9)

	var updated int
	err := s.WithTx(f.ctx, func(q store.Queries) error {
		var err error
		updated, err = UpdateTargetsForCenter(f.ctx, q, a, 2026)
		return err
	})
	if err != nil || updated != 1 {
		t.Fatalf("updated=%d err=%v", updated, err)
	}
	r, _ := s.GetMonthlyRecord(f.ctx, a, 5, 2026)
	if r.Target != 100 {
		t.Fatalf("target = %v, want 100", r.Target)
	}
}

func TestSnapshotOnlyVisibleCenters(t *testing.T) {
	s := memory.New()
	f := newFixture(t, s)
	a := f.center("A", 1)
	f.center("B", 2)
	f.record(a, 1, 1000, 0)

	rows, err := New(s, nil).CenterSnapshot(f.ctx, 2026, 1)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "A" || rows[0].AchievementPct != 0 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestAnalyticsRollup(t *testing.T) {
	s := memory.New()
	f := newFixture(t, s)
	a := f.center("Alpha")
	b := f.center("Beta")
	f.record(a, 1, 1000, 2000)
	f.record(a, 2, 1500, 1000)
	f.record(b, 1, 500, 0)
	f.record(a, 4, 600, 0)
	ca := f.coach("Ann", a)
	f.salary(ca, 1, 300)

	e := New(s, nil)
	r, err := e.AnalyticsRollup(f.ctx, 2026, 0, nil)
	if err != nil {
		t.Fatalf("rollup: %v", err)
	}
	if r.CenterName != AllCentersName || len(r.Months) != 12 || r.SelectedCount != 12 {
		t.Fatalf("unexpected header: %+v", r)
	}
	jan := r.Months[0]
	if jan.Revenue != 1500 || jan.Target != 2000 || jan.AchievedPct != 75 || jan.SalaryRatioPct != 20 || jan.Profit != 1200 {
		t.Fatalf("unexpected january: %+v", jan)
	}
	if r.TotalRevenue != 3600 || r.TotalTarget != 3000 || r.TotalSalary != 300 {
		t.Fatalf("unexpected totals: %+v", r)
	}
	if r.AvgRevenue != 300 || r.AvgTarget != 250 || r.AvgAchievement != 120 {
		t.Fatalf("unexpected averages: rev=%v target=%v ach=%v", r.AvgRevenue, r.AvgTarget, r.AvgAchievement)
	}

	growth := map[core.Month]Growth{}
	for _, g := range r.Growth {
		growth[g.Month] = g
	}
	if g := growth[1]; g.Percent != 0 || g.Direction != GrowthFlat {
		t.Fatalf("first month growth: %+v", g)
	}
	if g := growth[2]; g.Percent != 0 || g.Direction != GrowthFlat {
		t.Fatalf("feb growth (1500 -> 1500): %+v", g)
	}
	if g := growth[3]; g.Percent != -100 || g.Direction != GrowthDown {
		t.Fatalf("march growth: %+v", g)
	}
	if g := growth[4]; g.Percent != 0 || g.Direction != GrowthFlat {
		t.Fatalf("growth after zero month: %+v", g)
	}

	r, err = e.AnalyticsRollup(f.ctx, 2026, a, core.ParseMonthList("January,February,Bogus"))
	if err != nil {
		t.Fatalf("filtered rollup: %v", err)
	}
	if r.CenterName != "Alpha" || r.SelectedCount != 2 || r.SelectedRevenue != 2500 {
		t.Fatalf("unexpected filtered rollup: %+v", r)
	}
	if r.AvgRevenue != 1250 || r.AvgTarget != 1500 || r.AvgAchievement != 83.3 {
		t.Fatalf("unexpected filtered averages: %v %v %v", r.AvgRevenue, r.AvgTarget, r.AvgAchievement)
	}
	if !r.Months[0].IsSelected || r.Months[2].IsSelected {
		t.Fatalf("selection flags wrong")
	}
	if r.Growth[1].Percent != 50 || r.Growth[1].Direction != GrowthUp {
		t.Fatalf("alpha feb growth: %+v", r.Growth[1])
	}
}

func TestSalaryViews(t *testing.T) {
	s := memory.New()
	f := newFixture(t, s)
	a := f.center("A", 1)
	b := f.center("B", 2)
	ann := f.coach("Ann", a)
	bob := f.coach("Bob", b)
	f.salary(ann, 1, 100)
	f.salary(bob, 1, 50)
	f.salary(bob, 2, 70)

	e := New(s, nil)
	totals, err := e.MonthlySalaryTotals(f.ctx, 2026)
	if err != nil || len(totals) != 12 || totals[0].Total != 150 || totals[1].Total != 70 {
		t.Fatalf("unexpected totals: %+v %v", totals, err)
	}

	grid, _ := e.SalaryGrid(f.ctx, 2026)
	if grid[bob][2] != 70 || grid[ann][2] != 0 {
		t.Fatalf("unexpected grid: %+v", grid)
	}

	roster, err := e.CoachRoster(f.ctx, 2026, 1, 0)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != 1 || roster[0].Name != "Ann" || roster[0].Salary != 100 || roster[0].CenterName != "A" {
		t.Fatalf("only coaches of visible centers expected: %+v", roster)
	}
}
