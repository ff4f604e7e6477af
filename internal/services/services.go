// Package services holds the record managers. Every mutation takes a
// backup first, runs in one store transaction and then announces the
// change on the event bus. Backup and publish failures are logged and never
// fail the mutation.
package services

import (
	"context"
	"fmt"

	"academy/internal/amqp"
	applog "academy/internal/log"
	"academy/internal/store"
)

// Snapshotter takes a best-effort backup before a mutation.
type Snapshotter interface {
	Snapshot(ctx context.Context, reason string)
}

// Publisher announces committed changes.
type Publisher interface {
	PublishRecordsChanged(ctx context.Context, msg *amqp.RecordsChangedMessage) error
}

// Deps are shared by every manager. Backups and Events may be nil.
type Deps struct {
	Store   store.Store
	Backups Snapshotter
	Events  Publisher
	Logger  *applog.Logger
}

type manager struct {
	store   store.Store
	backups Snapshotter
	events  Publisher
	logger  *applog.Logger
	audit   *applog.StructuredLogger
}

func newManager(d Deps) manager {
	logger := d.Logger
	if logger == nil {
		logger = applog.NewWithLevel(applog.ComponentRecords, applog.ParseLevel(""))
	}
	logger = logger.WithComponent(applog.ComponentRecords)
	return manager{
		store:   d.Store,
		backups: d.Backups,
		events:  d.Events,
		logger:  logger,
		audit:   applog.NewStructuredLogger(logger),
	}
}

// mutate snapshots the database for reason and runs fn in a transaction.
func (m *manager) mutate(ctx context.Context, reason string, fn func(q store.Queries) error) error {
	if m.backups != nil {
		m.backups.Snapshot(ctx, reason)
	}
	if err := m.store.WithTx(ctx, fn); err != nil {
		return fmt.Errorf("%s: %w", reason, err)
	}
	return nil
}

// changed logs a committed mutation and publishes it.
func (m *manager) changed(ctx context.Context, reason string, msg *amqp.RecordsChangedMessage, id int64) {
	m.audit.LogMutation(ctx, msg.Entity, id, msg.Action, reason)
	if m.events == nil {
		return
	}
	if err := m.events.PublishRecordsChanged(ctx, msg); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish change event",
			applog.FieldEntity, msg.Entity,
			applog.FieldError, err)
	}
}
