// Package export renders reports as XLSX workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"academy/internal/aggregate"
	"academy/internal/core"
)

// ContentType is the MIME type of the workbooks written here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	sheetMonths   = "Months"
	sheetSummary  = "Summary"
	sheetLeaves   = "Leaves"
	sheetPerCoach = "Per Coach"
	sheetByMonth  = "By Month"
	sheetByType   = "By Type"
)

type workbook struct {
	f      *excelize.File
	header int
	err    error
}

func newWorkbook(first string) (*workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", first); err != nil {
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	return &workbook{f: f, header: header}, nil
}

func (w *workbook) sheet(name string) {
	if w.err != nil {
		return
	}
	if idx, _ := w.f.GetSheetIndex(name); idx >= 0 {
		return
	}
	_, w.err = w.f.NewSheet(name)
}

// row writes values starting at column A of row n (1-based).
func (w *workbook) row(sheet string, n int, values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &values)
}

func (w *workbook) headerRow(sheet string, titles ...any) {
	w.row(sheet, 1, titles...)
	if w.err != nil {
		return
	}
	w.err = w.f.SetRowStyle(sheet, 1, 1, w.header)
	if w.err == nil {
		w.err = w.f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}
}

func (w *workbook) done() (*excelize.File, error) {
	if w.err != nil {
		w.f.Close()
		return nil, fmt.Errorf("build workbook: %w", w.err)
	}
	return w.f, nil
}

// Analytics renders a rollup: one row per month and a summary sheet.
func Analytics(r aggregate.Rollup) (*excelize.File, error) {
	w, err := newWorkbook(sheetMonths)
	if err != nil {
		return nil, err
	}

	growth := make(map[int]aggregate.Growth, len(r.Growth))
	for _, g := range r.Growth {
		growth[int(g.Month)] = g
	}

	w.headerRow(sheetMonths, "Month", "Revenue", "Target", "Salary", "Achieved %", "Salary %", "Profit", "Growth %", "Selected")
	for i, m := range r.Months {
		selected := "no"
		if m.IsSelected {
			selected = "yes"
		}
		w.row(sheetMonths, i+2,
			m.Month.String(), m.Revenue, m.Target, m.Salary,
			m.AchievedPct, m.SalaryRatioPct, m.Profit,
			growth[int(m.Month)].Percent, selected)
	}

	w.sheet(sheetSummary)
	w.headerRow(sheetSummary, "Metric", "Value")
	summary := [][2]any{
		{"Year", r.Year},
		{"Center", r.CenterName},
		{"Total revenue", r.TotalRevenue},
		{"Total target", r.TotalTarget},
		{"Total salary", r.TotalSalary},
		{"Selected months", r.SelectedCount},
		{"Selected revenue", r.SelectedRevenue},
		{"Selected target", r.SelectedTarget},
		{"Average revenue", r.AvgRevenue},
		{"Average target", r.AvgTarget},
		{"Average achievement %", r.AvgAchievement},
	}
	for i, kv := range summary {
		w.row(sheetSummary, i+2, kv[0], kv[1])
	}
	return w.done()
}

// Leaves renders a leave report: the filtered list plus the year's
// statistics.
func Leaves(rep aggregate.LeaveReport) (*excelize.File, error) {
	w, err := newWorkbook(sheetLeaves)
	if err != nil {
		return nil, err
	}

	w.headerRow(sheetLeaves, "Coach", "Center", "From", "To", "Days", "Type", "Remarks")
	for i, l := range rep.Leaves {
		w.row(sheetLeaves, i+2,
			l.CoachName, l.CenterName, l.FromDate.String(), l.ToDate.String(),
			l.Days(), string(l.LeaveType), l.Remarks)
	}

	w.sheet(sheetPerCoach)
	w.headerRow(sheetPerCoach, "Coach", "Center", "Leaves", "Days", "LOP days", "Approved days", "Week off days", "OT days")
	for i, s := range rep.PerCoach {
		w.row(sheetPerCoach, i+2,
			s.CoachName, s.CenterName, s.TotalLeaves, s.TotalDays,
			s.LOPDays, s.ApprovedDays, s.WeekOffDays, s.OTDays)
	}

	w.sheet(sheetByMonth)
	w.headerRow(sheetByMonth, "Month", "Days")
	for i, days := range rep.Monthly {
		w.row(sheetByMonth, i+2, core.Month(i+1).String(), days)
	}

	w.sheet(sheetByType)
	w.headerRow(sheetByType, "Type", "Days")
	for i, t := range rep.ByType {
		w.row(sheetByType, i+2, string(t.Type), t.Days)
	}
	n := len(rep.ByType) + 2
	w.row(sheetByType, n+1, "Total days", rep.Totals.TotalDays)
	w.row(sheetByType, n+2, "LOP days", rep.Totals.LOPDays)
	w.row(sheetByType, n+3, "Week off days", rep.Totals.WeekOffDays)
	w.row(sheetByType, n+4, "OT days", rep.Totals.OTDays)
	return w.done()
}

// Write streams the workbook and closes it.
func Write(out io.Writer, f *excelize.File) error {
	defer f.Close()
	return f.Write(out)
}
