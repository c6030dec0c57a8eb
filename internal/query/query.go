package query

import (
	"context"
	"errors"
	"time"
)

// DefaultRowLimit caps every result set.
const DefaultRowLimit = 100

var ErrNotConfigured = errors.New("database connection string is not configured")

type Request struct {
	SQL      string
	RowLimit int
}

// Result holds at most RowLimit rows. A nil cell is SQL NULL; every row has
// len(Columns) cells.
type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

// ExecutionError is a failure reported by the database while running a
// statement. Err holds the driver's error unchanged.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
