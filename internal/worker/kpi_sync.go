// Package worker mirrors a year's monthly KPIs into the KPI sheet whenever
// records change.
package worker

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"academy/internal/aggregate"
	"academy/internal/amqp"
	applog "academy/internal/log"
	"academy/internal/sheets"
)

// maxParallelYears bounds concurrent year syncs during a full pass.
const maxParallelYears = 4

// KPISource computes the twelve monthly KPI rows of a year.
type KPISource interface {
	MonthlyKPIs(ctx context.Context, year int) ([]aggregate.MonthKPI, error)
}

// SyncResult describes one year sync.
type SyncResult struct {
	Year    int
	Range   string
	Skipped bool
}

type KPISyncWorker struct {
	kpis   KPISource
	sheet  sheets.KPISheet
	logger *applog.Logger
	group  singleflight.Group
	now    func() time.Time

	mu    sync.Mutex
	years map[int]struct{}
}

func NewKPISyncWorker(kpis KPISource, sheet sheets.KPISheet, logger *applog.Logger) *KPISyncWorker {
	if logger == nil {
		logger = applog.NewWithLevel(applog.ComponentWorker, applog.ParseLevel(""))
	}
	return &KPISyncWorker{
		kpis:   kpis,
		sheet:  sheet,
		logger: logger.WithComponent(applog.ComponentWorker),
		now:    time.Now,
		years:  make(map[int]struct{}),
	}
}

// HandleRecordsChanged is the AMQP handler. Account changes carry no figures
// and are ignored. Events without a year (center deletion, coach creation)
// resync every year seen so far plus the current one.
func (w *KPISyncWorker) HandleRecordsChanged(ctx context.Context, msg *amqp.RecordsChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing records changed message",
		applog.FieldEntity, msg.Entity,
		applog.FieldOperation, msg.Action,
		applog.FieldYear, msg.Year,
		applog.FieldMonth, msg.Month,
		applog.FieldCenterID, msg.CenterID)

	switch msg.Entity {
	case amqp.EntityAccount, amqp.EntityLeave:
		// Leaves do not feed the monthly KPIs.
		return nil
	}
	if msg.Year == 0 {
		return w.SyncKnownYears(ctx)
	}
	_, err := w.SyncYear(ctx, msg.Year)
	return err
}

// SyncYear recomputes the year's KPIs and rewrites the sheet when the
// figures differ from what it already holds. Concurrent calls for the same
// year share one run.
func (w *KPISyncWorker) SyncYear(ctx context.Context, year int) (SyncResult, error) {
	w.remember(year)
	v, err, shared := w.group.Do(strconv.Itoa(year), func() (any, error) {
		return w.syncYear(ctx, year)
	})
	if err != nil {
		return SyncResult{}, err
	}
	if shared {
		w.logger.DebugContext(ctx, "Joined in-flight KPI sync", applog.FieldYear, year)
	}
	return v.(SyncResult), nil
}

func (w *KPISyncWorker) syncYear(ctx context.Context, year int) (SyncResult, error) {
	kpis, err := w.kpis.MonthlyKPIs(ctx, year)
	if err != nil {
		return SyncResult{}, fmt.Errorf("compute kpis for %d: %w", year, err)
	}
	rows := sheets.RowsFromKPIs(kpis)

	current, err := w.sheet.ReadKPIs(ctx, year)
	if err != nil {
		// A layout the parser rejects gets overwritten.
		w.logger.WarnContext(ctx, "Could not read KPI sheet, rewriting it",
			applog.FieldYear, year,
			applog.FieldError, err)
	} else if sheets.SameRows(current, rows) {
		w.logger.DebugContext(ctx, "KPI sheet up to date", applog.FieldYear, year)
		return SyncResult{Year: year, Skipped: true}, nil
	}

	rng, err := w.sheet.WriteKPIs(ctx, year, rows)
	if err != nil {
		return SyncResult{}, fmt.Errorf("write kpis for %d: %w", year, err)
	}
	w.logger.InfoContext(ctx, "Synced KPI sheet",
		applog.FieldYear, year,
		applog.FieldSheetRange, rng)
	return SyncResult{Year: year, Range: rng}, nil
}

// SyncKnownYears syncs every year handled so far and the current year.
func (w *KPISyncWorker) SyncKnownYears(ctx context.Context) error {
	return w.SyncYears(ctx, w.KnownYears()...)
}

// SyncYears syncs the given years concurrently and returns the first error.
func (w *KPISyncWorker) SyncYears(ctx context.Context, years ...int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelYears)
	for _, y := range years {
		g.Go(func() error {
			_, err := w.SyncYear(ctx, y)
			return err
		})
	}
	return g.Wait()
}

// StartupSync brings the current and the previous year up to date, which
// recovers changes published while the worker was down.
func (w *KPISyncWorker) StartupSync(ctx context.Context) error {
	y := w.now().Year()
	if err := w.SyncYears(ctx, y-1, y); err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed", "years", []int{y - 1, y})
	return nil
}

// KnownYears returns the remembered years plus the current one, ascending.
func (w *KPISyncWorker) KnownYears() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.years[w.now().Year()] = struct{}{}
	out := make([]int, 0, len(w.years))
	for y := range w.years {
		out = append(out, y)
	}
	slices.Sort(out)
	return out
}

func (w *KPISyncWorker) remember(year int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.years[year] = struct{}{}
}
