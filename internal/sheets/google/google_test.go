package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ports "academy/internal/sheets"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	if _, err := NewFromEnv(context.Background()); err == nil || !strings.Contains(err.Error(), "GOOGLE_SPREADSHEET_ID") {
		t.Fatalf("expected missing spreadsheet error, got %v", err)
	}
}

func TestServiceAccountCredentials(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(file, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		env     map[string]string
		want    string
		wantErr string
	}{
		{"inline json wins", map[string]string{"GOOGLE_SERVICE_ACCOUNT_JSON": `{"inline":true}`, "GOOGLE_SERVICE_ACCOUNT_FILE": file}, `{"inline":true}`, ""},
		{"file", map[string]string{"GOOGLE_SERVICE_ACCOUNT_FILE": file}, `{"type":"service_account"}`, ""},
		{"application credentials fallback", map[string]string{"GOOGLE_APPLICATION_CREDENTIALS": file}, `{"type":"service_account"}`, ""},
		{"missing file", map[string]string{"GOOGLE_SERVICE_ACCOUNT_FILE": filepath.Join(dir, "nope.json")}, "", "read service account file"},
		{"nothing set", nil, "", "missing service account credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS"} {
				t.Setenv(k, tt.env[k])
			}
			got, err := serviceAccountCredentials(context.Background())
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base     string
		year     int
		expected string
	}{
		{"KPIs", 2026, "2026 KPIs"},
		{"Monthly KPIs", 2024, "2024 Monthly KPIs"},
		{"", 2023, ""},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.expected)
		}
	}
}

func TestKPIRangeQuotesTitle(t *testing.T) {
	if got := kpiRange("2026 KPIs"); got != "'2026 KPIs'!A1:F13" {
		t.Fatalf("unexpected range %s", got)
	}
	if got := kpiRange("Bob's KPIs"); got != "'Bob''s KPIs'!A1:F13" {
		t.Fatalf("unexpected range %s", got)
	}
}

func TestKPIValuesRoundTrip(t *testing.T) {
	rows := []ports.KPIRow{{Month: "March", Revenue: 10, Target: 20, Salary: 3, AchievedPct: 50, SalaryPct: 30}}
	values := kpiValues(rows)
	if len(values) != 2 || values[0][0] != "Month" {
		t.Fatalf("unexpected values %v", values)
	}
	back, err := parseKPIs(values)
	if err != nil {
		t.Fatal(err)
	}
	if !ports.SameRows(rows, back) {
		t.Fatalf("got %+v, want %+v", back, rows)
	}
}

func TestDefaultSheetName(t *testing.T) {
	c := New(nil, "id", "  ")
	if got := c.sheetName(2026); got != "2026 KPIs" {
		t.Fatalf("unexpected default sheet %s", got)
	}
	if _, err := c.WriteKPIs(context.Background(), 2026, nil); err == nil {
		t.Fatal("expected error without a service")
	}
	if _, err := c.ReadKPIs(context.Background(), 2026); err == nil {
		t.Fatal("expected error without a service")
	}
}
