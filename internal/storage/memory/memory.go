// Package memory is a process-local store.Store used for demos and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"academy/internal/core"
	"academy/internal/store"
)

type state struct {
	seq      int64
	centers  map[int64]core.Center
	records  map[int64]core.MonthlyRecord
	coaches  map[int64]core.Coach
	salaries map[int64]core.CoachSalary
	leaves   map[int64]core.CoachLeave
	users    map[int64]core.User
}

func newState() *state {
	return &state{
		centers:  map[int64]core.Center{},
		records:  map[int64]core.MonthlyRecord{},
		coaches:  map[int64]core.Coach{},
		salaries: map[int64]core.CoachSalary{},
		leaves:   map[int64]core.CoachLeave{},
		users:    map[int64]core.User{},
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		seq:      s.seq,
		centers:  cloneMap(s.centers),
		records:  cloneMap(s.records),
		coaches:  cloneMap(s.coaches),
		salaries: cloneMap(s.salaries),
		leaves:   cloneMap(s.leaves),
		users:    cloneMap(s.users),
	}
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store keeps every table in maps behind one mutex. Transactions work on a
// copy that replaces the live state on commit.
type Store struct {
	*view
	mu sync.Mutex
	st *state
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	s := &Store{st: newState()}
	s.view = &view{mu: &s.mu, st: s.st}
	return s
}

func (s *Store) WithTx(_ context.Context, fn func(q store.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&view{st: work}); err != nil {
		return err
	}
	*s.st = *work
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// view implements store.Queries. mu is nil inside a transaction, where the
// caller already holds the lock.
type view struct {
	mu *sync.Mutex
	st *state
}

func (v *view) lock() func() {
	if v.mu == nil {
		return func() {}
	}
	v.mu.Lock()
	return v.mu.Unlock
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, core.ErrNotFound)
}

func sortedValues[V any](m map[int64]V) []V {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// Centers

func (v *view) ListCenters(context.Context) ([]core.Center, error) {
	defer v.lock()()
	return sortedValues(v.st.centers), nil
}

func (v *view) ListCentersForMonth(_ context.Context, month core.Month, year int) ([]core.Center, error) {
	defer v.lock()()
	visible := map[int64]bool{}
	for _, r := range v.st.records {
		if r.Month == month && r.Year == year {
			visible[r.CenterID] = true
		}
	}
	var out []core.Center
	for _, c := range sortedValues(v.st.centers) {
		if visible[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (v *view) GetCenter(_ context.Context, id int64) (core.Center, error) {
	defer v.lock()()
	c, ok := v.st.centers[id]
	if !ok {
		return core.Center{}, notFound("center", id)
	}
	return c, nil
}

func (v *view) CreateCenter(_ context.Context, name string) (int64, error) {
	defer v.lock()()
	id := v.st.next()
	v.st.centers[id] = core.Center{ID: id, Name: name}
	return id, nil
}

func (v *view) RenameCenter(_ context.Context, id int64, name string) error {
	defer v.lock()()
	if c, ok := v.st.centers[id]; ok {
		c.Name = name
		v.st.centers[id] = c
	}
	return nil
}

func (v *view) DeleteCenter(_ context.Context, id int64) error {
	defer v.lock()()
	delete(v.st.centers, id)
	return nil
}

func (v *view) CountCenters(context.Context) (int, error) {
	defer v.lock()()
	return len(v.st.centers), nil
}

// Monthly records

func matchRecord(r core.MonthlyRecord, f store.RecordFilter) bool {
	return (f.CenterID == 0 || r.CenterID == f.CenterID) &&
		(f.Month == 0 || r.Month == f.Month) &&
		(f.Year == 0 || r.Year == f.Year)
}

func (v *view) ListMonthlyRecords(_ context.Context, f store.RecordFilter) ([]core.MonthlyRecord, error) {
	defer v.lock()()
	var out []core.MonthlyRecord
	for _, r := range v.st.records {
		if matchRecord(r, f) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.CenterID < b.CenterID
	})
	return out, nil
}

func (v *view) findRecord(centerID int64, month core.Month, year int) (core.MonthlyRecord, bool) {
	for _, r := range v.st.records {
		if r.CenterID == centerID && r.Month == month && r.Year == year {
			return r, true
		}
	}
	return core.MonthlyRecord{}, false
}

func (v *view) GetMonthlyRecord(_ context.Context, centerID int64, month core.Month, year int) (core.MonthlyRecord, error) {
	defer v.lock()()
	r, ok := v.findRecord(centerID, month, year)
	if !ok {
		return r, notFound("monthly record", fmt.Sprintf("%d/%d/%d", centerID, month, year))
	}
	return r, nil
}

func (v *view) InsertMonthlyRecord(_ context.Context, r core.MonthlyRecord) (int64, error) {
	defer v.lock()()
	if _, ok := v.findRecord(r.CenterID, r.Month, r.Year); ok {
		return 0, fmt.Errorf("insert monthly record: %w", core.ErrConflict)
	}
	r.ID = v.st.next()
	v.st.records[r.ID] = r
	return r.ID, nil
}

func (v *view) UpdateMonthlyRecord(_ context.Context, r core.MonthlyRecord) error {
	defer v.lock()()
	if old, ok := v.st.records[r.ID]; ok {
		old.Revenue, old.Target = r.Revenue, r.Target
		v.st.records[r.ID] = old
	}
	return nil
}

func (v *view) SetTarget(_ context.Context, centerID int64, month core.Month, year int, target float64) (bool, error) {
	defer v.lock()()
	r, ok := v.findRecord(centerID, month, year)
	if !ok {
		return false, nil
	}
	r.Target = target
	v.st.records[r.ID] = r
	return true, nil
}

func (v *view) DeleteMonthlyRecords(_ context.Context, f store.RecordFilter) (int64, error) {
	defer v.lock()()
	if f.CenterID == 0 {
		return 0, &core.StoreError{Op: "delete monthly records", Err: fmt.Errorf("refusing unscoped delete")}
	}
	var n int64
	for id, r := range v.st.records {
		if matchRecord(r, f) {
			delete(v.st.records, id)
			n++
		}
	}
	return n, nil
}

func (v *view) RecordTotals(_ context.Context, year int, centerID int64) ([]store.RecordTotal, error) {
	defer v.lock()()
	byMonth := map[core.Month]*store.RecordTotal{}
	for _, r := range v.st.records {
		if !matchRecord(r, store.RecordFilter{CenterID: centerID, Year: year}) {
			continue
		}
		t, ok := byMonth[r.Month]
		if !ok {
			t = &store.RecordTotal{Month: r.Month}
			byMonth[r.Month] = t
		}
		t.Revenue += r.Revenue
		t.Target += r.Target
	}
	var out []store.RecordTotal
	for _, m := range core.Months {
		if t, ok := byMonth[m]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

// Coaches

func (v *view) ListCoaches(_ context.Context, f store.CoachFilter) ([]core.Coach, error) {
	defer v.lock()()
	var out []core.Coach
	for _, c := range sortedValues(v.st.coaches) {
		if f.CenterID == 0 || c.CenterID == f.CenterID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (v *view) GetCoach(_ context.Context, id int64) (core.Coach, error) {
	defer v.lock()()
	c, ok := v.st.coaches[id]
	if !ok {
		return core.Coach{}, notFound("coach", id)
	}
	return c, nil
}

func (v *view) InsertCoach(_ context.Context, c core.Coach) (int64, error) {
	defer v.lock()()
	c.ID = v.st.next()
	v.st.coaches[c.ID] = c
	return c.ID, nil
}

func (v *view) UpdateCoach(_ context.Context, c core.Coach) error {
	defer v.lock()()
	if _, ok := v.st.coaches[c.ID]; ok {
		v.st.coaches[c.ID] = c
	}
	return nil
}

func (v *view) DeleteCoach(_ context.Context, id int64) error {
	defer v.lock()()
	delete(v.st.coaches, id)
	return nil
}

func (v *view) DeleteCoachesByCenter(_ context.Context, centerID int64) (int64, error) {
	defer v.lock()()
	var n int64
	for id, c := range v.st.coaches {
		if c.CenterID == centerID {
			delete(v.st.coaches, id)
			n++
		}
	}
	return n, nil
}

// Salaries

func (v *view) matchSalary(s core.CoachSalary, f store.SalaryFilter) bool {
	if f.CoachID != 0 && s.CoachID != f.CoachID {
		return false
	}
	if f.CenterID != 0 {
		c, ok := v.st.coaches[s.CoachID]
		if !ok || c.CenterID != f.CenterID {
			return false
		}
	}
	return (f.Month == 0 || s.Month == f.Month) && (f.Year == 0 || s.Year == f.Year)
}

func (v *view) ListSalaries(_ context.Context, f store.SalaryFilter) ([]core.CoachSalary, error) {
	defer v.lock()()
	var out []core.CoachSalary
	for _, s := range v.st.salaries {
		if v.matchSalary(s, f) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.CoachID < b.CoachID
	})
	return out, nil
}

func (v *view) findSalary(coachID int64, month core.Month, year int) (core.CoachSalary, bool) {
	for _, s := range v.st.salaries {
		if s.CoachID == coachID && s.Month == month && s.Year == year {
			return s, true
		}
	}
	return core.CoachSalary{}, false
}

func (v *view) GetSalary(_ context.Context, coachID int64, month core.Month, year int) (core.CoachSalary, error) {
	defer v.lock()()
	s, ok := v.findSalary(coachID, month, year)
	if !ok {
		return s, notFound("salary", fmt.Sprintf("%d/%d/%d", coachID, month, year))
	}
	return s, nil
}

func (v *view) InsertSalary(_ context.Context, s core.CoachSalary) (int64, error) {
	defer v.lock()()
	if _, ok := v.findSalary(s.CoachID, s.Month, s.Year); ok {
		return 0, fmt.Errorf("insert salary: %w", core.ErrConflict)
	}
	s.ID = v.st.next()
	v.st.salaries[s.ID] = s
	return s.ID, nil
}

func (v *view) UpdateSalary(_ context.Context, id int64, salary float64) error {
	defer v.lock()()
	if s, ok := v.st.salaries[id]; ok {
		s.Salary = salary
		v.st.salaries[id] = s
	}
	return nil
}

func (v *view) DeleteSalaries(_ context.Context, f store.SalaryFilter) (int64, error) {
	defer v.lock()()
	if f.CoachID == 0 && f.CenterID == 0 {
		return 0, &core.StoreError{Op: "delete salaries", Err: fmt.Errorf("refusing unscoped delete")}
	}
	var n int64
	for id, s := range v.st.salaries {
		if v.matchSalary(s, f) {
			delete(v.st.salaries, id)
			n++
		}
	}
	return n, nil
}

func (v *view) SalaryTotals(_ context.Context, year int, centerID int64) ([]store.MonthTotal, error) {
	defer v.lock()()
	byMonth := map[core.Month]float64{}
	seen := map[core.Month]bool{}
	for _, s := range v.st.salaries {
		if s.Year != year {
			continue
		}
		c, ok := v.st.coaches[s.CoachID]
		if !ok {
			continue
		}
		if _, ok := v.st.centers[c.CenterID]; !ok {
			continue
		}
		if centerID != 0 && c.CenterID != centerID {
			continue
		}
		byMonth[s.Month] += s.Salary
		seen[s.Month] = true
	}
	var out []store.MonthTotal
	for _, m := range core.Months {
		if seen[m] {
			out = append(out, store.MonthTotal{Month: m, Total: byMonth[m]})
		}
	}
	return out, nil
}

// Leaves

func (v *view) ListLeaves(_ context.Context, f store.LeaveFilter) ([]core.LeaveEntry, error) {
	defer v.lock()()
	var out []core.LeaveEntry
	for _, l := range v.st.leaves {
		c, ok := v.st.coaches[l.CoachID]
		if !ok {
			continue
		}
		center, ok := v.st.centers[c.CenterID]
		if !ok {
			continue
		}
		if f.Year != 0 && l.Year != f.Year {
			continue
		}
		if f.Month != 0 && l.FromDate.CalendarMonth() != f.Month {
			continue
		}
		if f.CoachID != 0 && l.CoachID != f.CoachID {
			continue
		}
		if f.CenterID != 0 && c.CenterID != f.CenterID {
			continue
		}
		out = append(out, core.LeaveEntry{
			CoachLeave: l,
			CoachName:  c.Name,
			CenterID:   c.CenterID,
			CenterName: center.Name,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.FromDate.Equal(b.FromDate.Time) {
			return a.FromDate.After(b.FromDate.Time)
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (v *view) GetLeave(_ context.Context, id int64) (core.CoachLeave, error) {
	defer v.lock()()
	l, ok := v.st.leaves[id]
	if !ok {
		return core.CoachLeave{}, notFound("leave", id)
	}
	return l, nil
}

func (v *view) InsertLeave(_ context.Context, l core.CoachLeave) (int64, error) {
	defer v.lock()()
	l.ID = v.st.next()
	v.st.leaves[l.ID] = l
	return l.ID, nil
}

func (v *view) UpdateLeave(_ context.Context, l core.CoachLeave) error {
	defer v.lock()()
	if _, ok := v.st.leaves[l.ID]; ok {
		v.st.leaves[l.ID] = l
	}
	return nil
}

func (v *view) DeleteLeave(_ context.Context, id int64) error {
	defer v.lock()()
	delete(v.st.leaves, id)
	return nil
}

func (v *view) DeleteLeavesByCoach(_ context.Context, coachID int64) (int64, error) {
	defer v.lock()()
	var n int64
	for id, l := range v.st.leaves {
		if l.CoachID == coachID {
			delete(v.st.leaves, id)
			n++
		}
	}
	return n, nil
}

// Users

func (v *view) GetUser(_ context.Context, id int64) (core.User, error) {
	defer v.lock()()
	u, ok := v.st.users[id]
	if !ok {
		return core.User{}, notFound("user", id)
	}
	return u, nil
}

func (v *view) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	defer v.lock()()
	for _, u := range v.st.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, notFound("user", username)
}

func (v *view) CountUsers(context.Context) (int, error) {
	defer v.lock()()
	return len(v.st.users), nil
}

func (v *view) InsertUser(_ context.Context, u core.User) (int64, error) {
	defer v.lock()()
	for _, existing := range v.st.users {
		if existing.Username == u.Username {
			return 0, fmt.Errorf("insert user: %w", core.ErrConflict)
		}
	}
	u.ID = v.st.next()
	v.st.users[u.ID] = u
	return u.ID, nil
}

func (v *view) UpdateUsername(_ context.Context, id int64, username string) error {
	defer v.lock()()
	for _, existing := range v.st.users {
		if existing.Username == username && existing.ID != id {
			return fmt.Errorf("update username: %w", core.ErrConflict)
		}
	}
	if u, ok := v.st.users[id]; ok {
		u.Username = username
		v.st.users[id] = u
	}
	return nil
}

func (v *view) UpdatePassword(_ context.Context, id int64, hash string) error {
	defer v.lock()()
	if u, ok := v.st.users[id]; ok {
		u.PasswordHash = hash
		v.st.users[id] = u
	}
	return nil
}
