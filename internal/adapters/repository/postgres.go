package repository

import (
	"context"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/attrition/internal/domain/model"
)

// predictionsLockKey is the advisory lock taken by schema creation and
// appends so identifiers are assigned in commit order across processes.
const predictionsLockKey int64 = 0x61747472 // "attr"

// PostgresStore keeps the audit log in PostgreSQL. Identifiers are assigned
// as max(id)+1 under a transaction-scoped advisory lock, so they are dense
// and never reused.
type PostgresStore struct {
	pool  *pgxpool.Pool
	opts  options
	ready atomic.Bool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres connects a pool to dsn and verifies it with a ping.
func NewPostgres(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, persistErr("parse dsn", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, persistErr("create pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, persistErr("ping", err)
	}
	return NewPostgresFromPool(pool, opts...), nil
}

// NewPostgresFromPool wraps an existing pool. The store takes ownership and
// closes the pool on Close.
func NewPostgresFromPool(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &PostgresStore{pool: pool, opts: o}
}

// State implements Store.
func (s *PostgresStore) State() State {
	if s.ready.Load() {
		return StateReady
	}
	return StateUninitialized
}

// Init implements Store.
func (s *PostgresStore) Init(ctx context.Context) error {
	err := s.locked(ctx, "init", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, createTablePostgres)
		return err
	})
	if err != nil {
		return err
	}
	s.ready.Store(true)
	return nil
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, req model.ScoringRequest, res model.Result) (int64, error) {
	if !s.ready.Load() {
		return 0, ErrNotInitialized
	}

	var id int64
	err := s.locked(ctx, "append", func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, "SELECT COALESCE(MAX(id), 0) + 1 FROM "+tableName).Scan(&id); err != nil {
			return err
		}
		args := append([]any{id}, recordArgs(s.opts.now(), req, res)...)
		_, err := tx.Exec(ctx, insertSQL(dollar, true), args...)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// locked runs fn in a transaction holding the predictions advisory lock.
func (s *PostgresStore) locked(ctx context.Context, op string, fn func(pgx.Tx) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return persistErr(op+": acquire connection", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return persistErr(op+": begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", predictionsLockKey); err != nil {
		return persistErr(op+": lock", err)
	}
	if err := fn(tx); err != nil {
		return persistErr(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return persistErr(op+": commit", err)
	}
	return nil
}

// Recent implements Store.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]model.AuditRecord, error) {
	if !s.ready.Load() {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		return []model.AuditRecord{}, nil
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, persistErr("recent: acquire connection", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, selectRecentSQL("$1"), limit)
	if err != nil {
		return nil, persistErr("recent: query", err)
	}
	defer rows.Close()

	records := make([]model.AuditRecord, 0, min(limit, maxRecentPrealloc))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, persistErr("recent: scan", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("recent: iterate", err)
	}
	return records, nil
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	if !s.ready.Load() {
		return 0, ErrNotInitialized
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, persistErr("count: acquire connection", err)
	}
	defer conn.Release()

	var n int64
	if err := conn.QueryRow(ctx, countSQL).Scan(&n); err != nil {
		return 0, persistErr("count", err)
	}
	return n, nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
