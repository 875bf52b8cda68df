package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/okian/attrition/internal/domain/model"
)

const memoryPath = ":memory:"

// SQLiteStore keeps the audit log in a single SQLite file. Writes are
// serialized in-process and run in IMMEDIATE transactions so several
// processes can share one file.
type SQLiteStore struct {
	db    *sql.DB
	path  string
	opts  options
	ready atomic.Bool

	// writeMu orders appends issued through this handle.
	writeMu sync.Mutex
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens (creating if needed) the database at path. An empty path
// uses history.db in the working directory.
func NewSQLite(path string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if path == "" {
		path = defaultSQLitePath
	}

	if path != memoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, persistErr("create data dir", err)
			}
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path, o))
	if err != nil {
		return nil, persistErr("open database", err)
	}
	if path == memoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	return &SQLiteStore{db: db, path: path, opts: o}, nil
}

func sqliteDSN(path string, o options) string {
	return fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		path, o.busyTimeout.Milliseconds(),
	)
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// State implements Store.
func (s *SQLiteStore) State() State {
	if s.ready.Load() {
		return StateReady
	}
	return StateUninitialized
}

// Init implements Store.
func (s *SQLiteStore) Init(ctx context.Context) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return persistErr("init: acquire connection", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, createTableSQLite); err != nil {
		return persistErr("init: create table", err)
	}
	s.ready.Store(true)
	return nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, req model.ScoringRequest, res model.Result) (int64, error) {
	if !s.ready.Load() {
		return 0, ErrNotInitialized
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, persistErr("append: acquire connection", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, persistErr("append: begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	out, err := tx.ExecContext(ctx, insertSQL(questionMark, false), recordArgs(s.opts.now(), req, res)...)
	if err != nil {
		return 0, persistErr("append: insert", err)
	}
	id, err := out.LastInsertId()
	if err != nil {
		return 0, persistErr("append: last insert id", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, persistErr("append: commit", err)
	}
	committed = true
	return id, nil
}

// Recent implements Store.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]model.AuditRecord, error) {
	if !s.ready.Load() {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		return []model.AuditRecord{}, nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, persistErr("recent: acquire connection", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, selectRecentSQL("?"), limit)
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	if !s.ready.Load() {
		return 0, ErrNotInitialized
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, countSQL).Scan(&n); err != nil {
		return 0, persistErr("count", err)
	}
	return n, nil
}

// Close implements Store. Later calls fail with ErrPersistence.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return persistErr("close", err)
	}
	return nil
}
