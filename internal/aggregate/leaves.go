package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"academy/internal/core"
	"academy/internal/store"

	"golang.org/x/sync/errgroup"
)

type (
	// LeaveQuery filters the leave list; zero fields match everything.
	// Statistics always cover the whole year.
	LeaveQuery struct {
		Year     int
		Month    core.Month
		CoachID  int64
		CenterID int64
	}

	CoachLeaveStats struct {
		CoachID      int64
		CoachName    string
		CenterName   string
		TotalLeaves  int
		TotalDays    int
		LOPDays      int
		ApprovedDays int
		WeekOffDays  int
		OTDays       int
	}

	TypeDays struct {
		Type core.LeaveType
		Days int
	}

	LeaveTotals struct {
		TotalDays   int
		LOPDays     int
		WeekOffDays int
		OTDays      int
	}

	CoachOption struct {
		ID         int64
		Name       string
		CenterName string
	}

	LeaveReport struct {
		Query    LeaveQuery
		Leaves   []core.LeaveEntry
		PerCoach []CoachLeaveStats
		Monthly  [12]int
		ByType   []TypeDays
		Totals   LeaveTotals

		Coaches []CoachOption
		Centers []core.Center
	}
)

// add accumulates one leave into the counters using the absence rules:
// Week Off and OT are not absences, Unpaid is loss of pay.
func (t *LeaveTotals) add(lt core.LeaveType, days int) {
	switch {
	case lt == core.LeaveWeekOff:
		t.WeekOffDays += days
	case lt == core.LeaveOT:
		t.OTDays += days
	}
	if lt.CountsAsAbsence() {
		t.TotalDays += days
	}
	if lt.IsLossOfPay() {
		t.LOPDays += days
	}
}

// LeaveReport loads the filtered leave list and the year's statistics
// concurrently.
func (e *Engine) LeaveReport(ctx context.Context, q LeaveQuery) (LeaveReport, error) {
	report := LeaveReport{Query: q}

	var (
		yearLeaves []core.LeaveEntry
		coaches    []core.Coach
		centers    []core.Center
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report.Leaves, err = e.store.ListLeaves(gctx, store.LeaveFilter{
			Year: q.Year, Month: q.Month, CoachID: q.CoachID, CenterID: q.CenterID,
		})
		return err
	})
	g.Go(func() error {
		var err error
		yearLeaves, err = e.store.ListLeaves(gctx, store.LeaveFilter{Year: q.Year})
		return err
	})
	g.Go(func() error {
		var err error
		coaches, err = e.store.ListCoaches(gctx, store.CoachFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		centers, err = e.centersByName(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return LeaveReport{}, fmt.Errorf("leave report: %w", err)
	}

	report.Centers = centers
	centerNames := make(map[int64]string, len(centers))
	for _, c := range centers {
		centerNames[c.ID] = c.Name
	}

	stats := make(map[int64]*CoachLeaveStats)
	for _, c := range coaches {
		name, ok := centerNames[c.CenterID]
		if !ok {
			continue
		}
		stats[c.ID] = &CoachLeaveStats{CoachID: c.ID, CoachName: c.Name, CenterName: name}
		report.Coaches = append(report.Coaches, CoachOption{ID: c.ID, Name: c.Name, CenterName: name})
	}
	sort.SliceStable(report.Coaches, func(i, j int) bool {
		a, b := report.Coaches[i], report.Coaches[j]
		if a.CenterName != b.CenterName {
			return strings.ToLower(a.CenterName) < strings.ToLower(b.CenterName)
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	byType := make(map[core.LeaveType]int)
	for _, l := range yearLeaves {
		days := l.Days()
		report.Totals.add(l.LeaveType, days)
		byType[l.LeaveType] += days
		if m := l.FromDate.CalendarMonth(); m.Valid() {
			report.Monthly[m-1] += days
		}

		s, ok := stats[l.CoachID]
		if !ok {
			continue
		}
		s.TotalLeaves++
		var t LeaveTotals
		t.add(l.LeaveType, days)
		s.TotalDays += t.TotalDays
		s.LOPDays += t.LOPDays
		s.WeekOffDays += t.WeekOffDays
		s.OTDays += t.OTDays
		if l.LeaveType.IsApproved() {
			s.ApprovedDays += days
		}
	}

	for _, s := range stats {
		report.PerCoach = append(report.PerCoach, *s)
	}
	sort.Slice(report.PerCoach, func(i, j int) bool {
		a, b := report.PerCoach[i], report.PerCoach[j]
		if a.TotalDays != b.TotalDays {
			return a.TotalDays > b.TotalDays
		}
		if a.CoachName != b.CoachName {
			return a.CoachName < b.CoachName
		}
		return a.CoachID < b.CoachID
	})

	for _, lt := range core.LeaveTypes {
		if days, ok := byType[lt]; ok {
			report.ByType = append(report.ByType, TypeDays{Type: lt, Days: days})
		}
	}
	sort.SliceStable(report.ByType, func(i, j int) bool {
		return report.ByType[i].Days > report.ByType[j].Days
	})

	return report, nil
}
