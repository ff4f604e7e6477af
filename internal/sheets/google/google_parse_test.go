package google

import (
	"strings"
	"testing"

	ports "academy/internal/sheets"
)

func TestParseKPIs(t *testing.T) {
	values := [][]any{
		{"Month", "Revenue", "Target", "Salary", "Achieved %", "Salary %"},
		{"January", 1000.0, 2000.0, 300.0, 50.0, 30.0},
		{"February", "1,500.50", "", "0", "12.5%", 0},
		{"", "", "", "", "", ""},
	}
	rows, err := parseKPIs(values)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []ports.KPIRow{
		{Month: "January", Revenue: 1000, Target: 2000, Salary: 300, AchievedPct: 50, SalaryPct: 30},
		{Month: "February", Revenue: 1500.5, AchievedPct: 12.5},
	}
	if !ports.SameRows(rows, want) {
		t.Fatalf("got %+v, want %+v", rows, want)
	}
}

func TestParseKPIsErrors(t *testing.T) {
	tests := []struct {
		name   string
		values [][]any
		substr string
	}{
		{"bad header", [][]any{{"Mese", "Ricavi"}}, "unexpected KPI header"},
		{"bad number", [][]any{
			{"Month", "Revenue", "Target", "Salary", "Achieved %", "Salary %"},
			{"January", "lots", 0, 0, 0, 0},
		}, "not a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseKPIs(tt.values)
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Fatalf("expected error containing %q, got %v", tt.substr, err)
			}
		})
	}
}

func TestParseKPIsEmpty(t *testing.T) {
	rows, err := parseKPIs(nil)
	if err != nil || rows != nil {
		t.Fatalf("expected no rows and no error, got %v %v", rows, err)
	}
}
