// Package store declares the persistence ports shared by every backend.
//
// The SQL store (SQLite or Postgres) and the in-memory store both satisfy
// Store; callers never depend on a concrete backend.
package store

import (
	"context"

	"academy/internal/core"
)

// Filters select rows; a zero field matches everything.
type (
	RecordFilter struct {
		CenterID int64
		Month    core.Month
		Year     int
	}

	CoachFilter struct {
		CenterID int64
	}

	// SalaryFilter.CenterID matches salaries of coaches currently at that center.
	SalaryFilter struct {
		CoachID  int64
		CenterID int64
		Month    core.Month
		Year     int
	}

	// LeaveFilter.Month matches the month of the leave's from_date.
	LeaveFilter struct {
		Year     int
		Month    core.Month
		CoachID  int64
		CenterID int64
	}
)

type (
	// MonthTotal is a per-month sum of coach salaries.
	MonthTotal struct {
		Month core.Month `db:"month"`
		Total float64    `db:"total"`
	}

	// RecordTotal is a per-month sum of revenue and target.
	RecordTotal struct {
		Month   core.Month `db:"month"`
		Revenue float64    `db:"revenue"`
		Target  float64    `db:"target"`
	}
)

// Ports for the persistence backends.
type (
	CenterQueries interface {
		// ListCenters returns every center ordered by id.
		ListCenters(ctx context.Context) ([]core.Center, error)
		// ListCentersForMonth returns centers that have a MonthlyRecord for month/year.
		ListCentersForMonth(ctx context.Context, month core.Month, year int) ([]core.Center, error)
		GetCenter(ctx context.Context, id int64) (core.Center, error)
		CreateCenter(ctx context.Context, name string) (int64, error)
		RenameCenter(ctx context.Context, id int64, name string) error
		DeleteCenter(ctx context.Context, id int64) error
		CountCenters(ctx context.Context) (int, error)
	}

	RecordQueries interface {
		ListMonthlyRecords(ctx context.Context, f RecordFilter) ([]core.MonthlyRecord, error)
		GetMonthlyRecord(ctx context.Context, centerID int64, month core.Month, year int) (core.MonthlyRecord, error)
		// InsertMonthlyRecord fails with core.ErrConflict when (center, month, year) exists.
		InsertMonthlyRecord(ctx context.Context, r core.MonthlyRecord) (int64, error)
		UpdateMonthlyRecord(ctx context.Context, r core.MonthlyRecord) error
		// SetTarget updates an existing record only and reports whether one matched.
		SetTarget(ctx context.Context, centerID int64, month core.Month, year int, target float64) (bool, error)
		DeleteMonthlyRecords(ctx context.Context, f RecordFilter) (int64, error)
		// RecordTotals sums revenue and target per month; centerID 0 means all centers.
		RecordTotals(ctx context.Context, year int, centerID int64) ([]RecordTotal, error)
	}

	CoachQueries interface {
		ListCoaches(ctx context.Context, f CoachFilter) ([]core.Coach, error)
		GetCoach(ctx context.Context, id int64) (core.Coach, error)
		InsertCoach(ctx context.Context, c core.Coach) (int64, error)
		UpdateCoach(ctx context.Context, c core.Coach) error
		DeleteCoach(ctx context.Context, id int64) error
		DeleteCoachesByCenter(ctx context.Context, centerID int64) (int64, error)
	}

	SalaryQueries interface {
		ListSalaries(ctx context.Context, f SalaryFilter) ([]core.CoachSalary, error)
		GetSalary(ctx context.Context, coachID int64, month core.Month, year int) (core.CoachSalary, error)
		InsertSalary(ctx context.Context, s core.CoachSalary) (int64, error)
		UpdateSalary(ctx context.Context, id int64, salary float64) error
		DeleteSalaries(ctx context.Context, f SalaryFilter) (int64, error)
		// SalaryTotals sums salaries per month, counting only coaches of
		// existing centers; centerID 0 means all centers.
		SalaryTotals(ctx context.Context, year int, centerID int64) ([]MonthTotal, error)
	}

	LeaveQueries interface {
		// ListLeaves hides leaves of coaches whose center no longer exists and
		// orders by from_date desc, then id desc.
		ListLeaves(ctx context.Context, f LeaveFilter) ([]core.LeaveEntry, error)
		GetLeave(ctx context.Context, id int64) (core.CoachLeave, error)
		InsertLeave(ctx context.Context, l core.CoachLeave) (int64, error)
		UpdateLeave(ctx context.Context, l core.CoachLeave) error
		DeleteLeave(ctx context.Context, id int64) error
		DeleteLeavesByCoach(ctx context.Context, coachID int64) (int64, error)
	}

	UserQueries interface {
		GetUser(ctx context.Context, id int64) (core.User, error)
		GetUserByUsername(ctx context.Context, username string) (core.User, error)
		CountUsers(ctx context.Context) (int, error)
		// InsertUser fails with core.ErrConflict when the username is taken.
		InsertUser(ctx context.Context, u core.User) (int64, error)
		UpdateUsername(ctx context.Context, id int64, username string) error
		UpdatePassword(ctx context.Context, id int64, hash string) error
	}

	// Queries is everything that can run inside a transaction.
	Queries interface {
		CenterQueries
		RecordQueries
		CoachQueries
		SalaryQueries
		LeaveQueries
		UserQueries
	}

	// Store is a backend. WithTx commits when fn returns nil and rolls back otherwise.
	Store interface {
		Queries
		WithTx(ctx context.Context, fn func(q Queries) error) error
		Ping(ctx context.Context) error
		Close() error
	}
)
