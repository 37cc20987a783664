package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/runbookd/runbookd/internal/runbook"
)

// PostgresStore is the durable RunbookStore peer to Store, grounded on the
// teacher's internal/store/postgres.go: a pool-backed store that persists
// one JSONB blob per row and uses SELECT ... FOR UPDATE inside a
// transaction wherever a read-modify-write must be serialized, the same
// pattern the teacher's PostgresStore.CheckRateLimit uses for its
// rate-limit bucket updates.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ RunbookStore = (*PostgresStore)(nil)

// NewPostgresStore opens a pool against dsn and ensures the runbooks table
// exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("runstore: postgres DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("runstore: create postgres pool: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreFromPool wraps an already-open pool, for daemons that
// share one pool between runstore and the advisory lock service.
func NewPostgresStoreFromPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS runbooks (
			id   UUID PRIMARY KEY,
			data JSONB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("runstore: ensure schema: %w", err)
	}
	return nil
}

// Put inserts or replaces a compiled runbook row.
func (s *PostgresStore) Put(ctx context.Context, rb *runbook.CompiledRunbook) error {
	data, err := json.Marshal(rb)
	if err != nil {
		return fmt.Errorf("runstore: marshal runbook: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO runbooks (id, data)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data
	`, rb.ID, data)
	if err != nil {
		return fmt.Errorf("runstore: put runbook %s: %w", rb.ID, err)
	}
	return nil
}

// Get returns the runbook's current persisted state.
func (s *PostgresStore) Get(ctx context.Context, id runbook.CompiledRunbookID) (*runbook.CompiledRunbook, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM runbooks WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("runstore: get runbook %s: %w", id, err)
	}
	var rb runbook.CompiledRunbook
	if err := json.Unmarshal(data, &rb); err != nil {
		return nil, fmt.Errorf("runstore: unmarshal runbook %s: %w", id, err)
	}
	return &rb, nil
}

// UpdateStatus replaces the runbook's status field via the same
// read-modify-write transaction WithStatus uses, so the two never race
// against each other on the same row.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id runbook.CompiledRunbookID, status runbook.Status) error {
	return s.WithStatus(ctx, id, func(rb *runbook.CompiledRunbook) error {
		rb.Status = status
		return nil
	})
}

// WithStatus gives f exclusive access to the runbook row for the lifetime
// of one transaction: SELECT ... FOR UPDATE locks the row, f mutates the
// decoded value, and the transaction writes it back on commit. Any other
// writer for the same id blocks on the row lock until this transaction
// ends, giving the same single-writer guarantee Store.WithStatus gives
// in-process.
func (s *PostgresStore) WithStatus(ctx context.Context, id runbook.CompiledRunbookID, f func(rb *runbook.CompiledRunbook) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("runstore: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var data []byte
	err = tx.QueryRow(ctx, `SELECT data FROM runbooks WHERE id = $1 FOR UPDATE`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("runstore: lock runbook %s: %w", id, err)
	}

	var rb runbook.CompiledRunbook
	if err := json.Unmarshal(data, &rb); err != nil {
		return fmt.Errorf("runstore: unmarshal runbook %s: %w", id, err)
	}

	if err := f(&rb); err != nil {
		return err
	}

	updated, err := json.Marshal(&rb)
	if err != nil {
		return fmt.Errorf("runstore: marshal runbook %s: %w", id, err)
	}
	if _, err := tx.Exec(ctx, `UPDATE runbooks SET data = $2::jsonb WHERE id = $1`, id, updated); err != nil {
		return fmt.Errorf("runstore: update runbook %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("runstore: commit tx for runbook %s: %w", id, err)
	}
	return nil
}
