// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/plantlog/internal/model"
	"github.com/alfredjeanlab/plantlog/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already-open database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateEventType(ctx context.Context, et *model.EventType) error {
	return queryCreateEventType(ctx, s.db, et)
}

func (s *PostgresStore) EnsureEventType(ctx context.Context, et *model.EventType) error {
	return queryEnsureEventType(ctx, s.db, et)
}

func (s *PostgresStore) GetEventType(ctx context.Context, id uuid.UUID) (*model.EventType, error) {
	return queryGetEventType(ctx, s.db, id)
}

func (s *PostgresStore) ListEventTypes(ctx context.Context, since time.Time) ([]*model.EventType, error) {
	return queryListEventTypes(ctx, s.db, since)
}

func (s *PostgresStore) InsertEvent(ctx context.Context, ev *model.EventInstance) error {
	return queryInsertEvent(ctx, s.db, ev)
}

func (s *PostgresStore) UpsertUniqueEvent(ctx context.Context, ev *model.EventInstance) error {
	return queryUpsertUniqueEvent(ctx, s.db, ev)
}

func (s *PostgresStore) QueryEvents(ctx context.Context, d store.Discipline, eventTypeID, entityID uuid.UUID, mode model.QueryMode) ([]*model.EventInstance, error) {
	return queryEvents(ctx, s.db, d, eventTypeID, entityID, mode)
}

func (s *PostgresStore) RecordPhoto(ctx context.Context, p *model.Photo) error {
	return queryRecordPhoto(ctx, s.db, p)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateEventType(ctx context.Context, et *model.EventType) error {
	return queryCreateEventType(ctx, s.tx, et)
}

func (s *txStore) EnsureEventType(ctx context.Context, et *model.EventType) error {
	return queryEnsureEventType(ctx, s.tx, et)
}

func (s *txStore) GetEventType(ctx context.Context, id uuid.UUID) (*model.EventType, error) {
	return queryGetEventType(ctx, s.tx, id)
}

func (s *txStore) ListEventTypes(ctx context.Context, since time.Time) ([]*model.EventType, error) {
	return queryListEventTypes(ctx, s.tx, since)
}

func (s *txStore) InsertEvent(ctx context.Context, ev *model.EventInstance) error {
	return queryInsertEvent(ctx, s.tx, ev)
}

func (s *txStore) UpsertUniqueEvent(ctx context.Context, ev *model.EventInstance) error {
	return queryUpsertUniqueEvent(ctx, s.tx, ev)
}

func (s *txStore) QueryEvents(ctx context.Context, d store.Discipline, eventTypeID, entityID uuid.UUID, mode model.QueryMode) ([]*model.EventInstance, error) {
	return queryEvents(ctx, s.tx, d, eventTypeID, entityID, mode)
}

func (s *txStore) RecordPhoto(ctx context.Context, p *model.Photo) error {
	return queryRecordPhoto(ctx, s.tx, p)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Ping is a no-op inside a transaction.
func (s *txStore) Ping(context.Context) error { return nil }

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
