package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"academy/internal/core"
	"academy/internal/storage"
	"academy/internal/storage/memory"
	"academy/internal/store"
)

func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "academy.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return map[string]store.Store{
		"sqlite": repo,
		"memory": memory.New(),
	}
}

func mustCenter(t *testing.T, s store.Store, name string, month core.Month, year int) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := s.CreateCenter(ctx, name)
	if err != nil {
		t.Fatalf("create center: %v", err)
	}
	if _, err := s.InsertMonthlyRecord(ctx, core.MonthlyRecord{CenterID: id, Month: month, Year: year}); err != nil {
		t.Fatalf("insert record: %v", err)
	}
	return id
}

func TestMonthlyRecordUniqueness(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := mustCenter(t, s, "Center 1", 1, 2026)
			_, err := s.InsertMonthlyRecord(ctx, core.MonthlyRecord{CenterID: id, Month: 1, Year: 2026})
			if !errors.Is(err, core.ErrConflict) {
				t.Fatalf("expected ErrConflict, got %v", err)
			}
			if _, err := s.InsertMonthlyRecord(ctx, core.MonthlyRecord{CenterID: id, Month: 2, Year: 2026}); err != nil {
				t.Fatalf("other month should insert: %v", err)
			}
		})
	}
}

func TestCentersForMonth(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := mustCenter(t, s, "A", 3, 2026)
			mustCenter(t, s, "B", 4, 2026)

			got, err := s.ListCentersForMonth(ctx, 3, 2026)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 1 || got[0].ID != a || got[0].Name != "A" {
				t.Fatalf("unexpected centers: %+v", got)
			}
			if n, _ := s.CountCenters(ctx); n != 2 {
				t.Fatalf("expected 2 centers, got %d", n)
			}
		})
	}
}

func TestSetTargetNeverInserts(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := mustCenter(t, s, "A", 1, 2026)

			ok, err := s.SetTarget(ctx, id, 2, 2026, 1000)
			if err != nil || ok {
				t.Fatalf("SetTarget on missing month = %v, %v", ok, err)
			}
			recs, _ := s.ListMonthlyRecords(ctx, store.RecordFilter{CenterID: id})
			if len(recs) != 1 {
				t.Fatalf("expected 1 record, got %d", len(recs))
			}

			ok, err = s.SetTarget(ctx, id, 1, 2026, 1000)
			if err != nil || !ok {
				t.Fatalf("SetTarget on existing month = %v, %v", ok, err)
			}
			r, err := s.GetMonthlyRecord(ctx, id, 1, 2026)
			if err != nil || r.Target != 1000 {
				t.Fatalf("target not stored: %+v %v", r, err)
			}
		})
	}
}

func TestSalaryTotalsSkipOrphans(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := mustCenter(t, s, "A", 1, 2026)
			b := mustCenter(t, s, "B", 1, 2026)
			ca, _ := s.InsertCoach(ctx, core.Coach{Name: "Ann", CenterID: a})
			cb, _ := s.InsertCoach(ctx, core.Coach{Name: "Bob", CenterID: b})
			s.InsertSalary(ctx, core.CoachSalary{CoachID: ca, Month: 1, Year: 2026, Salary: 100})
			s.InsertSalary(ctx, core.CoachSalary{CoachID: cb, Month: 1, Year: 2026, Salary: 50})
			s.InsertSalary(ctx, core.CoachSalary{CoachID: ca, Month: 2, Year: 2026, Salary: 10})

			if err := s.DeleteCenter(ctx, b); err != nil {
				t.Fatalf("delete center: %v", err)
			}

			totals, err := s.SalaryTotals(ctx, 2026, 0)
			if err != nil {
				t.Fatalf("totals: %v", err)
			}
			if len(totals) != 2 || totals[0].Month != 1 || totals[0].Total != 100 || totals[1].Total != 10 {
				t.Fatalf("unexpected totals: %+v", totals)
			}

			totals, _ = s.SalaryTotals(ctx, 2026, a)
			if len(totals) != 2 {
				t.Fatalf("center filter: %+v", totals)
			}

			_, err = s.InsertSalary(ctx, core.CoachSalary{CoachID: ca, Month: 1, Year: 2026, Salary: 1})
			if !errors.Is(err, core.ErrConflict) {
				t.Fatalf("expected salary conflict, got %v", err)
			}
		})
	}
}

func TestDeleteScoped(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := mustCenter(t, s, "A", 1, 2026)
			s.InsertMonthlyRecord(ctx, core.MonthlyRecord{CenterID: a, Month: 2, Year: 2026})
			coach, _ := s.InsertCoach(ctx, core.Coach{Name: "Ann", CenterID: a})
			s.InsertSalary(ctx, core.CoachSalary{CoachID: coach, Month: 1, Year: 2026, Salary: 100})
			s.InsertSalary(ctx, core.CoachSalary{CoachID: coach, Month: 2, Year: 2026, Salary: 100})

			n, err := s.DeleteMonthlyRecords(ctx, store.RecordFilter{CenterID: a, Month: 1, Year: 2026})
			if err != nil || n != 1 {
				t.Fatalf("delete records = %d, %v", n, err)
			}
			n, err = s.DeleteSalaries(ctx, store.SalaryFilter{CenterID: a, Month: 1, Year: 2026})
			if err != nil || n != 1 {
				t.Fatalf("delete salaries = %d, %v", n, err)
			}
			if _, err := s.DeleteMonthlyRecords(ctx, store.RecordFilter{}); err == nil {
				t.Fatalf("unscoped delete should fail")
			}
			left, _ := s.ListSalaries(ctx, store.SalaryFilter{CoachID: coach})
			if len(left) != 1 || left[0].Month != 2 {
				t.Fatalf("unexpected salaries left: %+v", left)
			}
		})
	}
}

func TestLeavesJoinAndOrder(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := mustCenter(t, s, "A", 1, 2026)
			gone := mustCenter(t, s, "Gone", 1, 2026)
			ann, _ := s.InsertCoach(ctx, core.Coach{Name: "Ann", CenterID: a})
			orphan, _ := s.InsertCoach(ctx, core.Coach{Name: "Orphan", CenterID: gone})

			add := func(coach int64, from, to core.Date, lt core.LeaveType) {
				t.Helper()
				if _, err := s.InsertLeave(ctx, core.CoachLeave{CoachID: coach, FromDate: from, ToDate: to, LeaveType: lt, Year: 2026}); err != nil {
					t.Fatalf("insert leave: %v", err)
				}
			}
			add(ann, core.NewDate(2026, 1, 10), core.NewDate(2026, 1, 12), core.LeaveSick)
			add(ann, core.NewDate(2026, 3, 1), core.NewDate(2026, 3, 1), core.LeaveUnpaid)
			add(orphan, core.NewDate(2026, 2, 1), core.NewDate(2026, 2, 1), core.LeaveCasual)
			s.DeleteCenter(ctx, gone)

			all, err := s.ListLeaves(ctx, store.LeaveFilter{Year: 2026})
			if err != nil {
				t.Fatalf("list leaves: %v", err)
			}
			if len(all) != 2 {
				t.Fatalf("orphan leave should be hidden, got %d", len(all))
			}
			if all[0].FromDate.String() != "2026-03-01" || all[0].CoachName != "Ann" || all[0].CenterName != "A" || all[0].CenterID != a {
				t.Fatalf("unexpected first entry: %+v", all[0])
			}
			if all[1].Days() != 3 || all[1].LeaveType != core.LeaveSick {
				t.Fatalf("unexpected second entry: %+v", all[1])
			}

			jan, _ := s.ListLeaves(ctx, store.LeaveFilter{Year: 2026, Month: 1})
			if len(jan) != 1 {
				t.Fatalf("month filter: %+v", jan)
			}
			none, _ := s.ListLeaves(ctx, store.LeaveFilter{Year: 2026, CenterID: a + 100})
			if len(none) != 0 {
				t.Fatalf("center filter: %+v", none)
			}
		})
	}
}

func TestUsers(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := s.InsertUser(ctx, core.User{Username: "admin", PasswordHash: "h"})
			if err != nil {
				t.Fatalf("insert user: %v", err)
			}
			if _, err := s.InsertUser(ctx, core.User{Username: "admin", PasswordHash: "h"}); !errors.Is(err, core.ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
			if err := s.UpdateUsername(ctx, id, "root"); err != nil {
				t.Fatalf("rename: %v", err)
			}
			u, err := s.GetUserByUsername(ctx, "root")
			if err != nil || u.ID != id {
				t.Fatalf("lookup: %+v %v", u, err)
			}
			if _, err := s.GetUserByUsername(ctx, "admin"); !errors.Is(err, core.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}

func TestWithTxRollsBack(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			boom := errors.New("boom")
			err := s.WithTx(ctx, func(q store.Queries) error {
				if _, err := q.CreateCenter(ctx, "Temp"); err != nil {
					return err
				}
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("expected boom, got %v", err)
			}
			if n, _ := s.CountCenters(ctx); n != 0 {
				t.Fatalf("rollback left %d centers", n)
			}

			err = s.WithTx(ctx, func(q store.Queries) error {
				_, err := q.CreateCenter(ctx, "Kept")
				return err
			})
			if err != nil {
				t.Fatalf("commit: %v", err)
			}
			if n, _ := s.CountCenters(ctx); n != 1 {
				t.Fatalf("commit lost center, count=%d", n)
			}
		})
	}
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "academy.db")
	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()

	v, dirty, err := storage.MigrationVersion(storage.DialectSQLite, storage.SQLiteDSN(path))
	if err != nil || dirty || v != 1 {
		t.Fatalf("version = %d dirty=%v err=%v", v, dirty, err)
	}
	if repo.Path() != path || repo.Dialect() != storage.DialectSQLite {
		t.Fatalf("unexpected repo metadata")
	}
}
