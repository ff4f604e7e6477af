package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"academy/internal/aggregate"
	"academy/internal/amqp"
	"academy/internal/core"
	ports "academy/internal/sheets"
	"academy/internal/sheets/memory"
)

type fakeKPIs struct {
	mu      sync.Mutex
	revenue map[int]float64
	calls   map[int]int
	err     error
}

func newFakeKPIs() *fakeKPIs {
	return &fakeKPIs{revenue: map[int]float64{}, calls: map[int]int{}}
}

func (f *fakeKPIs) MonthlyKPIs(_ context.Context, year int) ([]aggregate.MonthKPI, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[year]++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]aggregate.MonthKPI, 0, 12)
	for _, m := range core.Months {
		out = append(out, aggregate.MonthKPI{Month: m})
	}
	out[0].TotalRevenue = f.revenue[year]
	return out, nil
}

func (f *fakeKPIs) callsFor(year int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[year]
}

type brokenSheet struct {
	*memory.Store
}

func (brokenSheet) ReadKPIs(context.Context, int) ([]ports.KPIRow, error) {
	return nil, errors.New("unexpected KPI header")
}

func newTestWorker(k KPISource, s ports.KPISheet) *KPISyncWorker {
	w := NewKPISyncWorker(k, s, nil)
	w.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	return w
}

func TestSyncYearWritesThenSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	kpis := newFakeKPIs()
	kpis.revenue[2026] = 1500
	sheet := memory.New()
	w := newTestWorker(kpis, sheet)

	res, err := w.SyncYear(ctx, 2026)
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped || res.Range == "" {
		t.Fatalf("first sync should write, got %+v", res)
	}
	rows, _ := sheet.ReadKPIs(ctx, 2026)
	if len(rows) != 12 || rows[0].Month != "January" || rows[0].Revenue != 1500 {
		t.Fatalf("unexpected sheet rows %+v", rows)
	}

	res, err = w.SyncYear(ctx, 2026)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped || sheet.Writes() != 1 {
		t.Fatalf("unchanged figures should not be rewritten, got %+v writes=%d", res, sheet.Writes())
	}

	kpis.revenue[2026] = 2000
	if res, _ = w.SyncYear(ctx, 2026); res.Skipped || sheet.Writes() != 2 {
		t.Fatalf("changed figures should be written, got %+v", res)
	}
}

func TestSyncYearOverwritesUnreadableSheet(t *testing.T) {
	sheet := brokenSheet{memory.New()}
	w := newTestWorker(newFakeKPIs(), sheet)
	if _, err := w.SyncYear(context.Background(), 2026); err != nil {
		t.Fatal(err)
	}
	if sheet.Writes() != 1 {
		t.Fatalf("expected a write, got %d", sheet.Writes())
	}
}

func TestSyncYearPropagatesKPIError(t *testing.T) {
	kpis := newFakeKPIs()
	kpis.err = errors.New("db down")
	w := newTestWorker(kpis, memory.New())
	if _, err := w.SyncYear(context.Background(), 2026); err == nil {
		t.Fatal("expected error")
	}
}

func TestHandleRecordsChanged(t *testing.T) {
	tests := []struct {
		name      string
		msg       *amqp.RecordsChangedMessage
		wantYears map[int]int
	}{
		{"salary change syncs its year", amqp.NewRecordsChangedMessage(amqp.EntitySalary, "update", 2025, 3, 1), map[int]int{2025: 1, 2026: 0}},
		{"yearless change syncs current year", amqp.NewRecordsChangedMessage(amqp.EntityCenter, "delete", 0, 0, 1), map[int]int{2026: 1}},
		{"account change ignored", amqp.NewRecordsChangedMessage(amqp.EntityAccount, "update", 0, 0, 0), map[int]int{2026: 0}},
		{"leave change ignored", amqp.NewRecordsChangedMessage(amqp.EntityLeave, "create", 2026, 0, 1), map[int]int{2026: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kpis := newFakeKPIs()
			w := newTestWorker(kpis, memory.New())
			if err := w.HandleRecordsChanged(context.Background(), tt.msg); err != nil {
				t.Fatal(err)
			}
			for y, want := range tt.wantYears {
				if got := kpis.callsFor(y); got != want {
					t.Errorf("year %d: %d syncs, want %d", y, got, want)
				}
			}
		})
	}
}

func TestKnownYearsAndStartup(t *testing.T) {
	ctx := context.Background()
	kpis := newFakeKPIs()
	w := newTestWorker(kpis, memory.New())

	if err := w.StartupSync(ctx); err != nil {
		t.Fatal(err)
	}
	if kpis.callsFor(2025) != 1 || kpis.callsFor(2026) != 1 {
		t.Fatalf("startup should sync previous and current year, got %v", kpis.calls)
	}

	w.SyncYear(ctx, 2022)
	got := w.KnownYears()
	want := []int{2022, 2025, 2026}
	if len(got) != len(want) {
		t.Fatalf("KnownYears = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("KnownYears = %v, want %v", got, want)
		}
	}

	if err := w.SyncKnownYears(ctx); err != nil {
		t.Fatal(err)
	}
	if kpis.callsFor(2022) != 2 {
		t.Fatalf("expected 2022 to be resynced, got %d", kpis.callsFor(2022))
	}
}
