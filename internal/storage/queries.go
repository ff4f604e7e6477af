package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"academy/internal/core"
	"academy/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// queries implements store.Queries over either the pool or a transaction.
type queries struct {
	ext     sqlx.ExtContext
	dialect Dialect
}

var errUnscoped = errors.New("refusing unscoped delete")

func wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, core.ErrConflict)
	}
	return &core.StoreError{Op: op, Err: err}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}
	return false
}

// conds accumulates AND-ed WHERE conditions written with ? placeholders.
type conds struct {
	clauses []string
	args    []any
}

func (c *conds) add(clause string, arg any) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, arg)
}

func (c *conds) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// monthOf extracts the calendar month of a date column.
func (q *queries) monthOf(col string) string {
	if q.dialect == DialectPostgres {
		return "CAST(EXTRACT(MONTH FROM " + col + ") AS INTEGER)"
	}
	return "CAST(strftime('%m', " + col + ") AS INTEGER)"
}

func (q *queries) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
}

func (q *queries) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.ext.ExecContext(ctx, q.ext.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// insert runs an INSERT ... RETURNING id statement.
func (q *queries) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := q.ext.QueryRowxContext(ctx, q.ext.Rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}

// Centers

func (q *queries) ListCenters(ctx context.Context) ([]core.Center, error) {
	var out []core.Center
	err := q.selectAll(ctx, &out, `SELECT id, name FROM centers ORDER BY id`)
	return out, wrapErr("list centers", err)
}

func (q *queries) ListCentersForMonth(ctx context.Context, month core.Month, year int) ([]core.Center, error) {
	var out []core.Center
	err := q.selectAll(ctx, &out, `
		SELECT c.id, c.name FROM centers c
		JOIN monthly_data m ON m.center_id = c.id
		WHERE m.month = ? AND m.year = ?
		ORDER BY c.id`, month, year)
	return out, wrapErr("list centers for month", err)
}

func (q *queries) GetCenter(ctx context.Context, id int64) (core.Center, error) {
	var c core.Center
	err := q.get(ctx, &c, `SELECT id, name FROM centers WHERE id = ?`, id)
	return c, wrapErr("get center", err)
}

func (q *queries) CreateCenter(ctx context.Context, name string) (int64, error) {
	id, err := q.insert(ctx, `INSERT INTO centers (name) VALUES (?)`, name)
	return id, wrapErr("create center", err)
}

func (q *queries) RenameCenter(ctx context.Context, id int64, name string) error {
	_, err := q.exec(ctx, `UPDATE centers SET name = ? WHERE id = ?`, name, id)
	return wrapErr("rename center", err)
}

func (q *queries) DeleteCenter(ctx context.Context, id int64) error {
	_, err := q.exec(ctx, `DELETE FROM centers WHERE id = ?`, id)
	return wrapErr("delete center", err)
}

func (q *queries) CountCenters(ctx context.Context) (int, error) {
	var n int
	err := q.get(ctx, &n, `SELECT COUNT(*) FROM centers`)
	return n, wrapErr("count centers", err)
}

// Monthly records

func recordConds(f store.RecordFilter) conds {
	var c conds
	if f.CenterID != 0 {
		c.add("center_id = ?", f.CenterID)
	}
	if f.Month != 0 {
		c.add("month = ?", f.Month)
	}
	if f.Year != 0 {
		c.add("year = ?", f.Year)
	}
	return c
}

func (q *queries) ListMonthlyRecords(ctx context.Context, f store.RecordFilter) ([]core.MonthlyRecord, error) {
	c := recordConds(f)
	var out []core.MonthlyRecord
	err := q.selectAll(ctx, &out, `SELECT id, center_id, month, year, revenue, target FROM monthly_data`+
		c.where()+` ORDER BY year, month, center_id`, c.args...)
	return out, wrapErr("list monthly records", err)
}

func (q *queries) GetMonthlyRecord(ctx context.Context, centerID int64, month core.Month, year int) (core.MonthlyRecord, error) {
	var r core.MonthlyRecord
	err := q.get(ctx, &r, `
		SELECT id, center_id, month, year, revenue, target FROM monthly_data
		WHERE center_id = ? AND month = ? AND year = ?`, centerID, month, year)
	return r, wrapErr("get monthly record", err)
}

func (q *queries) InsertMonthlyRecord(ctx context.Context, r core.MonthlyRecord) (int64, error) {
	id, err := q.insert(ctx, `
		INSERT INTO monthly_data (center_id, month, year, revenue, target)
		VALUES (?, ?, ?, ?, ?)`, r.CenterID, r.Month, r.Year, r.Revenue, r.Target)
	return id, wrapErr("insert monthly record", err)
}

func (q *queries) UpdateMonthlyRecord(ctx context.Context, r core.MonthlyRecord) error {
	_, err := q.exec(ctx, `UPDATE monthly_data SET revenue = ?, target = ? WHERE id = ?`, r.Revenue, r.Target, r.ID)
	return wrapErr("update monthly record", err)
}

func (q *queries) SetTarget(ctx context.Context, centerID int64, month core.Month, year int, target float64) (bool, error) {
	n, err := q.exec(ctx, `
		UPDATE monthly_data SET target = ?
		WHERE center_id = ? AND month = ? AND year = ?`, target, centerID, month, year)
	return n > 0, wrapErr("set target", err)
}

func (q *queries) DeleteMonthlyRecords(ctx context.Context, f store.RecordFilter) (int64, error) {
	if f.CenterID == 0 {
		return 0, wrapErr("delete monthly records", errUnscoped)
	}
	c := recordConds(f)
	n, err := q.exec(ctx, `DELETE FROM monthly_data`+c.where(), c.args...)
	return n, wrapErr("delete monthly records", err)
}

func (q *queries) RecordTotals(ctx context.Context, year int, centerID int64) ([]store.RecordTotal, error) {
	c := recordConds(store.RecordFilter{CenterID: centerID, Year: year})
	var out []store.RecordTotal
	err := q.selectAll(ctx, &out, `
		SELECT month, COALESCE(SUM(revenue), 0) AS revenue, COALESCE(SUM(target), 0) AS target
		FROM monthly_data`+c.where()+` GROUP BY month ORDER BY month`, c.args...)
	return out, wrapErr("record totals", err)
}

// Coaches

func (q *queries) ListCoaches(ctx context.Context, f store.CoachFilter) ([]core.Coach, error) {
	var c conds
	if f.CenterID != 0 {
		c.add("center_id = ?", f.CenterID)
	}
	var out []core.Coach
	err := q.selectAll(ctx, &out, `SELECT id, name, center_id FROM coaches`+c.where()+` ORDER BY id`, c.args...)
	return out, wrapErr("list coaches", err)
}

func (q *queries) GetCoach(ctx context.Context, id int64) (core.Coach, error) {
	var c core.Coach
	err := q.get(ctx, &c, `SELECT id, name, center_id FROM coaches WHERE id = ?`, id)
	return c, wrapErr("get coach", err)
}

func (q *queries) InsertCoach(ctx context.Context, c core.Coach) (int64, error) {
	id, err := q.insert(ctx, `INSERT INTO coaches (name, center_id) VALUES (?, ?)`, c.Name, c.CenterID)
	return id, wrapErr("insert coach", err)
}

func (q *queries) UpdateCoach(ctx context.Context, c core.Coach) error {
	_, err := q.exec(ctx, `UPDATE coaches SET name = ?, center_id = ? WHERE id = ?`, c.Name, c.CenterID, c.ID)
	return wrapErr("update coach", err)
}

func (q *queries) DeleteCoach(ctx context.Context, id int64) error {
	_, err := q.exec(ctx, `DELETE FROM coaches WHERE id = ?`, id)
	return wrapErr("delete coach", err)
}

func (q *queries) DeleteCoachesByCenter(ctx context.Context, centerID int64) (int64, error) {
	n, err := q.exec(ctx, `DELETE FROM coaches WHERE center_id = ?`, centerID)
	return n, wrapErr("delete coaches by center", err)
}

// Salaries

func salaryConds(f store.SalaryFilter) conds {
	var c conds
	if f.CoachID != 0 {
		c.add("coach_id = ?", f.CoachID)
	}
	if f.CenterID != 0 {
		c.add("coach_id IN (SELECT id FROM coaches WHERE center_id = ?)", f.CenterID)
	}
	if f.Month != 0 {
		c.add("month = ?", f.Month)
	}
	if f.Year != 0 {
		c.add("year = ?", f.Year)
	}
	return c
}

func (q *queries) ListSalaries(ctx context.Context, f store.SalaryFilter) ([]core.CoachSalary, error) {
	c := salaryConds(f)
	var out []core.CoachSalary
	err := q.selectAll(ctx, &out, `SELECT id, coach_id, month, year, salary FROM coach_salaries`+
		c.where()+` ORDER BY year, month, coach_id`, c.args...)
	return out, wrapErr("list salaries", err)
}

func (q *queries) GetSalary(ctx context.Context, coachID int64, month core.Month, year int) (core.CoachSalary, error) {
	var s core.CoachSalary
	err := q.get(ctx, &s, `
		SELECT id, coach_id, month, year, salary FROM coach_salaries
		WHERE coach_id = ? AND month = ? AND year = ?`, coachID, month, year)
	return s, wrapErr("get salary", err)
}

func (q *queries) InsertSalary(ctx context.Context, s core.CoachSalary) (int64, error) {
	id, err := q.insert(ctx, `
		INSERT INTO coach_salaries (coach_id, month, year, salary)
		VALUES (?, ?, ?, ?)`, s.CoachID, s.Month, s.Year, s.Salary)
	return id, wrapErr("insert salary", err)
}

func (q *queries) UpdateSalary(ctx context.Context, id int64, salary float64) error {
	_, err := q.exec(ctx, `UPDATE coach_salaries SET salary = ? WHERE id = ?`, salary, id)
	return wrapErr("update salary", err)
}

func (q *queries) DeleteSalaries(ctx context.Context, f store.SalaryFilter) (int64, error) {
	if f.CoachID == 0 && f.CenterID == 0 {
		return 0, wrapErr("delete salaries", errUnscoped)
	}
	c := salaryConds(f)
	n, err := q.exec(ctx, `DELETE FROM coach_salaries`+c.where(), c.args...)
	return n, wrapErr("delete salaries", err)
}

func (q *queries) SalaryTotals(ctx context.Context, year int, centerID int64) ([]store.MonthTotal, error) {
	var c conds
	c.add("s.year = ?", year)
	if centerID != 0 {
		c.add("c.center_id = ?", centerID)
	}
	var out []store.MonthTotal
	err := q.selectAll(ctx, &out, `
		SELECT s.month AS month, COALESCE(SUM(s.salary), 0) AS total
		FROM coach_salaries s
		JOIN coaches c ON c.id = s.coach_id
		JOIN centers ce ON ce.id = c.center_id`+c.where()+`
		GROUP BY s.month ORDER BY s.month`, c.args...)
	return out, wrapErr("salary totals", err)
}

// Leaves

func (q *queries) ListLeaves(ctx context.Context, f store.LeaveFilter) ([]core.LeaveEntry, error) {
	var c conds
	if f.Year != 0 {
		c.add("l.year = ?", f.Year)
	}
	if f.Month != 0 {
		c.add(q.monthOf("l.from_date")+" = ?", f.Month)
	}
	if f.CoachID != 0 {
		c.add("l.coach_id = ?", f.CoachID)
	}
	if f.CenterID != 0 {
		c.add("c.center_id = ?", f.CenterID)
	}
	var out []core.LeaveEntry
	err := q.selectAll(ctx, &out, `
		SELECT l.id, l.coach_id, l.from_date, l.to_date, l.leave_type, l.remarks, l.year,
		       c.name AS coach_name, c.center_id AS center_id, ce.name AS center_name
		FROM coach_leaves l
		JOIN coaches c ON c.id = l.coach_id
		JOIN centers ce ON ce.id = c.center_id`+c.where()+`
		ORDER BY l.from_date DESC, l.id DESC`, c.args...)
	return out, wrapErr("list leaves", err)
}

func (q *queries) GetLeave(ctx context.Context, id int64) (core.CoachLeave, error) {
	var l core.CoachLeave
	err := q.get(ctx, &l, `
		SELECT id, coach_id, from_date, to_date, leave_type, remarks, year
		FROM coach_leaves WHERE id = ?`, id)
	return l, wrapErr("get leave", err)
}

func (q *queries) InsertLeave(ctx context.Context, l core.CoachLeave) (int64, error) {
	id, err := q.insert(ctx, `
		INSERT INTO coach_leaves (coach_id, from_date, to_date, leave_type, remarks, year)
		VALUES (?, ?, ?, ?, ?, ?)`, l.CoachID, l.FromDate, l.ToDate, l.LeaveType, l.Remarks, l.Year)
	return id, wrapErr("insert leave", err)
}

func (q *queries) UpdateLeave(ctx context.Context, l core.CoachLeave) error {
	_, err := q.exec(ctx, `
		UPDATE coach_leaves
		SET coach_id = ?, from_date = ?, to_date = ?, leave_type = ?, remarks = ?, year = ?
		WHERE id = ?`, l.CoachID, l.FromDate, l.ToDate, l.LeaveType, l.Remarks, l.Year, l.ID)
	return wrapErr("update leave", err)
}

func (q *queries) DeleteLeave(ctx context.Context, id int64) error {
	_, err := q.exec(ctx, `DELETE FROM coach_leaves WHERE id = ?`, id)
	return wrapErr("delete leave", err)
}

func (q *queries) DeleteLeavesByCoach(ctx context.Context, coachID int64) (int64, error) {
	n, err := q.exec(ctx, `DELETE FROM coach_leaves WHERE coach_id = ?`, coachID)
	return n, wrapErr("delete leaves by coach", err)
}

// Users

func (q *queries) GetUser(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := q.get(ctx, &u, `SELECT id, username, password_hash FROM users WHERE id = ?`, id)
	return u, wrapErr("get user", err)
}

func (q *queries) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	var u core.User
	err := q.get(ctx, &u, `SELECT id, username, password_hash FROM users WHERE username = ?`, username)
	return u, wrapErr("get user by username", err)
}

func (q *queries) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := q.get(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, wrapErr("count users", err)
}

func (q *queries) InsertUser(ctx context.Context, u core.User) (int64, error) {
	id, err := q.insert(ctx, `INSERT INTO users (username, password_hash) VALUES (?, ?)`, u.Username, u.PasswordHash)
	return id, wrapErr("insert user", err)
}

func (q *queries) UpdateUsername(ctx context.Context, id int64, username string) error {
	_, err := q.exec(ctx, `UPDATE users SET username = ? WHERE id = ?`, username, id)
	return wrapErr("update username", err)
}

func (q *queries) UpdatePassword(ctx context.Context, id int64, hash string) error {
	_, err := q.exec(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	return wrapErr("update password", err)
}
