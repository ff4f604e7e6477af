// Package storage implements the store ports on top of a SQL database.
//
// The same queries serve SQLite (modernc.org/sqlite) and Postgres
// (github.com/lib/pq); sqlx rebinds placeholders for the active dialect.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"academy/internal/store"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect names a supported SQL backend. The value doubles as the
// database/sql driver name and the migrations subdirectory.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string { return string(d) }

// SQLRepository is a store.Store backed by *sqlx.DB.
type SQLRepository struct {
	*queries
	db      *sqlx.DB
	dialect Dialect
	path    string
}

var _ store.Store = (*SQLRepository)(nil)

// SQLiteDSN returns the connection string used for an SQLite file.
// Transactions begin IMMEDIATE so concurrent writers wait on busy_timeout
// instead of failing when a read lock is upgraded.
func SQLiteDSN(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// NewSQLiteRepository opens (creating if needed) the SQLite file at dbPath
// and applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	repo, err := open(DialectSQLite, SQLiteDSN(dbPath))
	if err != nil {
		return nil, err
	}
	repo.path = dbPath
	return repo, nil
}

// NewPostgresRepository connects to databaseURL and applies pending migrations.
func NewPostgresRepository(databaseURL string) (*SQLRepository, error) {
	return open(DialectPostgres, databaseURL)
}

func open(dialect Dialect, dsn string) (*SQLRepository, error) {
	db, err := sqlx.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("Database ready", "dialect", dialect)

	return &SQLRepository{
		queries: &queries{ext: db, dialect: dialect},
		db:      db,
		dialect: dialect,
	}, nil
}

// Dialect reports which SQL backend is in use.
func (r *SQLRepository) Dialect() Dialect { return r.dialect }

// Path returns the SQLite file path, or "" for Postgres.
func (r *SQLRepository) Path() string { return r.path }

// WithTx runs fn inside one transaction.
func (r *SQLRepository) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapErr("begin transaction", err)
	}

	if err := fn(&queries{ext: tx, dialect: r.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("commit transaction", err)
	}
	return nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
