// Package repository persists the append-only audit trail of scoring requests.
package repository

import (
	"context"
	"fmt"

	"github.com/okian/attrition/internal/domain/model"
)

// State is the lifecycle state of a Store.
type State int

// Store lifecycle states.
const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "uninitialized"
}

// Store is the append-only audit log.
type Store interface {
	// Init creates the schema if it is absent. Repeated calls leave existing
	// records untouched.
	Init(ctx context.Context) error

	// Append writes one record and returns its identifier. Identifiers are
	// strictly increasing and never reused.
	Append(ctx context.Context, req model.ScoringRequest, res model.Result) (int64, error)

	// Recent returns at most limit records, newest first. limit <= 0 yields
	// an empty slice.
	Recent(ctx context.Context, limit int) ([]model.AuditRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// State reports whether Init has completed.
	State() State

	Close() error
}

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and locates a Store.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN string
}

// Open builds the Store named by cfg.Driver. The returned store is
// uninitialized; call Init before use.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return NewSQLite(cfg.Path, opts...)
	case DriverPostgres:
		return NewPostgres(ctx, cfg.DSN, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}
