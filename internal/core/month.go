package core

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Month is a calendar month, 1 (January) through 12 (December).
type Month int

// Months lists the twelve calendar months in order.
var Months = [12]Month{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

func (m Month) Valid() bool { return m >= 1 && m <= 12 }

func (m Month) String() string {
	if !m.Valid() {
		return ""
	}
	return time.Month(m).String()
}

// Short returns the three letter abbreviation used in chart labels.
func (m Month) Short() string {
	s := m.String()
	if len(s) < 3 {
		return s
	}
	return s[:3]
}

// ParseMonth accepts a calendar name ("March", "mar") or a number ("3").
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty month", ErrInvalidMonth)
	}
	if n, err := strconv.Atoi(s); err == nil {
		m := Month(n)
		if !m.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrInvalidMonth, n)
		}
		return m, nil
	}
	lower := strings.ToLower(s)
	for _, m := range Months {
		name := strings.ToLower(m.String())
		if lower == name || (len(lower) >= 3 && strings.HasPrefix(name, lower)) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
}

// ParseMonthList parses a comma separated month list, skipping unknown entries.
// An empty input selects every month.
func ParseMonthList(s string) []Month {
	s = strings.TrimSpace(s)
	if s == "" {
		return Months[:]
	}
	seen := make(map[Month]bool)
	var out []Month
	for _, part := range strings.Split(s, ",") {
		m, err := ParseMonth(part)
		if err != nil || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	if len(out) == 0 {
		return Months[:]
	}
	return out
}

// Value stores the month as its number.
func (m Month) Value() (driver.Value, error) {
	return int64(m), nil
}

// Scan reads a month stored either as a number or as a calendar name.
func (m *Month) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*m = Month(v)
	case int:
		*m = Month(v)
	case []byte:
		return m.scanString(string(v))
	case string:
		return m.scanString(v)
	case nil:
		*m = 0
	default:
		return fmt.Errorf("scan month: unsupported type %T", src)
	}
	return nil
}

func (m *Month) scanString(s string) error {
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
