package core

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

type LeaveType string

const (
	LeaveCasual    LeaveType = "Casual"
	LeaveSick      LeaveType = "Sick"
	LeavePaid      LeaveType = "Paid"
	LeaveUnpaid    LeaveType = "Unpaid"
	LeaveWeekOff   LeaveType = "Week Off"
	LeaveOT        LeaveType = "OT"
	LeaveEmergency LeaveType = "Emergency"
	LeaveOther     LeaveType = "Other"
)

// LeaveTypes is the fixed set of leave types in display order.
var LeaveTypes = []LeaveType{
	LeaveCasual, LeaveSick, LeavePaid, LeaveUnpaid,
	LeaveWeekOff, LeaveOT, LeaveEmergency, LeaveOther,
}

func (t LeaveType) Valid() bool {
	for _, lt := range LeaveTypes {
		if t == lt {
			return true
		}
	}
	return false
}

// CountsAsAbsence is false for Week Off and OT, which are not absences.
func (t LeaveType) CountsAsAbsence() bool {
	return t != LeaveWeekOff && t != LeaveOT
}

// IsLossOfPay reports whether the leave is unpaid (LOP).
func (t LeaveType) IsLossOfPay() bool {
	return t == LeaveUnpaid
}

// IsApproved is true for absences that are paid.
func (t LeaveType) IsApproved() bool {
	return t.CountsAsAbsence() && !t.IsLossOfPay()
}

// ParseLeaveType matches case-insensitively; blank defaults to Casual.
func ParseLeaveType(s string) (LeaveType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LeaveCasual, nil
	}
	for _, lt := range LeaveTypes {
		if strings.EqualFold(s, string(lt)) {
			return lt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLeaveType, s)
}

const dateLayout = "2006-01-02"

// Date is a calendar date without a time of day, stored as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month Month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// CalendarMonth returns the month the date falls in.
func (d Date) CalendarMonth() Month {
	return Month(d.Time.Month())
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		y, m, day := v.Date()
		*d = Date{Time: time.Date(y, m, day, 0, 0, 0, 0, time.UTC)}
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// LeaveDays counts the days of an inclusive range. A range with a missing
// endpoint counts as a single day.
func LeaveDays(from, to Date) int {
	if from.IsZero() || to.IsZero() {
		return 1
	}
	return int(to.Sub(from.Time).Hours()/24) + 1
}
