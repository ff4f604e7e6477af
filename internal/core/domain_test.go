package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    Month
		wantErr bool
	}{
		{"March", 3, false},
		{"march", 3, false},
		{"Mar", 3, false},
		{"12", 12, false},
		{" 1 ", 1, false},
		{"13", 0, true},
		{"0", 0, true},
		{"Ma", 0, true},
		{"", 0, true},
		{"Smarch", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMonth(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMonth) {
					t.Fatalf("expected ErrInvalidMonth, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ParseMonth(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestParseMonthList(t *testing.T) {
	if got := ParseMonthList(""); len(got) != 12 {
		t.Fatalf("empty list should select all months, got %d", len(got))
	}
	got := ParseMonthList("January,March,Bogus,March")
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("unexpected months: %v", got)
	}
	if got := ParseMonthList("Bogus"); len(got) != 12 {
		t.Fatalf("only unknown names should fall back to all months, got %v", got)
	}
}

func TestMonthScan(t *testing.T) {
	var m Month
	if err := m.Scan(int64(4)); err != nil || m != 4 {
		t.Fatalf("scan int: %v %v", m, err)
	}
	if err := m.Scan("July"); err != nil || m != 7 {
		t.Fatalf("scan name: %v %v", m, err)
	}
	if err := m.Scan([]byte("9")); err != nil || m != 9 {
		t.Fatalf("scan bytes: %v %v", m, err)
	}
	if err := m.Scan(3.5); err == nil {
		t.Fatalf("expected error for float")
	}
}

func TestLeaveDays(t *testing.T) {
	tests := []struct {
		name     string
		from, to Date
		want     int
	}{
		{"same day", NewDate(2026, 1, 10), NewDate(2026, 1, 10), 1},
		{"three days", NewDate(2026, 1, 10), NewDate(2026, 1, 12), 3},
		{"five days", NewDate(2026, 3, 1), NewDate(2026, 3, 5), 5},
		{"across months", NewDate(2026, 1, 30), NewDate(2026, 2, 2), 4},
		{"missing end", NewDate(2026, 1, 30), Date{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LeaveDays(tt.from, tt.to); got != tt.want {
				t.Errorf("LeaveDays = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLeaveTypeRules(t *testing.T) {
	tests := []struct {
		lt                       LeaveType
		absence, lop, approved bool
	}{
		{LeaveCasual, true, false, true},
		{LeaveUnpaid, true, true, false},
		{LeaveWeekOff, false, false, false},
		{LeaveOT, false, false, false},
		{LeaveSick, true, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.lt), func(t *testing.T) {
			if tt.lt.CountsAsAbsence() != tt.absence || tt.lt.IsLossOfPay() != tt.lop || tt.lt.IsApproved() != tt.approved {
				t.Errorf("unexpected rules for %s", tt.lt)
			}
		})
	}

	if lt, err := ParseLeaveType(""); err != nil || lt != LeaveCasual {
		t.Errorf("blank type should default to Casual, got %q %v", lt, err)
	}
	if lt, err := ParseLeaveType("week off"); err != nil || lt != LeaveWeekOff {
		t.Errorf("case-insensitive match failed: %q %v", lt, err)
	}
	if _, err := ParseLeaveType("Holiday"); !errors.Is(err, ErrInvalidLeaveType) {
		t.Errorf("expected ErrInvalidLeaveType, got %v", err)
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan("2026-01-10"); err != nil || d.String() != "2026-01-10" {
		t.Fatalf("scan string: %v %v", d, err)
	}
	if err := d.Scan(time.Date(2026, 2, 3, 15, 4, 5, 0, time.Local)); err != nil || d.String() != "2026-02-03" {
		t.Fatalf("scan time: %v %v", d, err)
	}
	if err := d.Scan([]byte("2026-03-04T00:00:00Z")); err != nil || d.String() != "2026-03-04" {
		t.Fatalf("scan timestamp text: %v %v", d, err)
	}
	if d.CalendarMonth() != 3 {
		t.Fatalf("calendar month = %v", d.CalendarMonth())
	}
}

func TestValidateAndSanitize(t *testing.T) {
	type form struct {
		Name string    `form:"name" validate:"required"`
		Type LeaveType `form:"leave_type" validate:"leavetype"`
	}
	err := Validate(form{Type: "Holiday"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %+v", ve.Fields)
	}
	if ve.Fields[0].Field != "name" || ve.Fields[0].Error != "name is required" {
		t.Errorf("unexpected first field error: %+v", ve.Fields[0])
	}
	if err := Validate(form{Name: "x", Type: LeaveSick}); err != nil {
		t.Errorf("valid form rejected: %v", err)
	}

	if got := SanitizeInput("  <b>Center</b>  ", 255); got != "bCenter/b" {
		t.Errorf("SanitizeInput = %q", got)
	}
	if got := SanitizeInput("abcdef", 3); got != "abc" {
		t.Errorf("SanitizeInput max len = %q", got)
	}
}
