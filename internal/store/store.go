package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrWrite tags any failure inside a write transaction. The whole batch is
// rolled back before this is returned.
var ErrWrite = errors.New("store write failed")

// ErrNotFound is returned when a tenant-scoped lookup matches no rows.
var ErrNotFound = errors.New("not found")

// DB is the subset of pgxpool.Pool the store uses. pgxmock's pool interface
// satisfies it too, which keeps the transactional paths unit-testable
// without a live database.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type Store struct {
	db DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: pool}, nil
}

// NewWithDB wraps an existing connection, typically a pgxmock pool in tests.
func NewWithDB(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() {
	s.db.Close()
}
