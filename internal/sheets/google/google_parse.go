package google

import (
	"fmt"
	"strconv"
	"strings"

	ports "academy/internal/sheets"
)

// parseKPIs converts a values matrix (as returned by the Sheets API) back
// into KPI rows. The first row must be the KPI header.
func parseKPIs(values [][]any) ([]ports.KPIRow, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	for i, want := range ports.KPIHeader {
		if !strings.EqualFold(safeGet(headers, i), want) {
			return nil, fmt.Errorf("unexpected KPI header: column %d is %q, want %q", i+1, safeGet(headers, i), want)
		}
	}

	rows := make([]ports.KPIRow, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		raw := values[i]
		month := strings.TrimSpace(fmt.Sprint(cell(raw, 0)))
		if month == "" {
			continue
		}
		var nums [5]float64
		for j := range nums {
			v, ok := parseNumber(cell(raw, j+1))
			if !ok {
				return nil, fmt.Errorf("row %d column %s: not a number: %v", i+1, ports.KPIHeader[j+1], cell(raw, j+1))
			}
			nums[j] = v
		}
		rows = append(rows, ports.KPIRow{
			Month:       month,
			Revenue:     nums[0],
			Target:      nums[1],
			Salary:      nums[2],
			AchievedPct: nums[3],
			SalaryPct:   nums[4],
		})
	}
	return rows, nil
}

func cell(row []any, idx int) any {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// parseNumber accepts unformatted numbers as well as rendered strings such
// as "1,234.50" or "12.5%". Blank cells count as zero.
func parseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return 0, true
	}
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
