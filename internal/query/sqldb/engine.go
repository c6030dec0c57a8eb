// Package sqldb runs generated statements through database/sql. Each call
// opens its own handle limited to one connection and closes it before
// returning.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/nlquery/nlquery/internal/config"
	"github.com/nlquery/nlquery/internal/query"
)

const defaultCommandTimeout = 30 * time.Second

type OpenFunc func(driverName, dsn string) (*sql.DB, error)

type Config struct {
	Driver           string
	ConnectionString string
	CommandTimeout   time.Duration
}

type Engine struct {
	driverName string
	dsn        string
	timeout    time.Duration
	open       OpenFunc
}

func NewEngine(cfg Config) (*Engine, error) {
	driverName, err := DriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &Engine{
		driverName: driverName,
		dsn:        strings.TrimSpace(cfg.ConnectionString),
		timeout:    timeout,
		open:       sql.Open,
	}, nil
}

// DriverName maps a configured driver to its database/sql registration.
func DriverName(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case config.DriverSQLServer, "":
		return "sqlserver", nil
	case config.DriverPostgres:
		return "pgx", nil
	case config.DriverDuckDB:
		return "duckdb", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if e.dsn == "" {
		return query.Result{}, query.ErrNotConfigured
	}
	if strings.TrimSpace(request.SQL) == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	limit := request.RowLimit
	if limit <= 0 {
		limit = query.DefaultRowLimit
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	db, err := e.open(e.driverName, e.dsn)
	if err != nil {
		return query.Result{}, &query.ExecutionError{Op: "open database", Err: err}
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, request.SQL)
	if err != nil {
		return query.Result{}, &query.ExecutionError{Op: "execute query", Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, &query.ExecutionError{Op: "query columns", Err: err}
	}

	resultRows := make([][]any, 0)
	for len(resultRows) < limit && rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, &query.ExecutionError{Op: "scan row", Err: err}
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	// Peek one row past the cap so truncation is reported only when rows
	// were actually dropped.
	truncated := len(resultRows) == limit && rows.Next()
	if err := rows.Err(); err != nil {
		return query.Result{}, &query.ExecutionError{Op: "iterate rows", Err: err}
	}

	return query.Result{
		Columns:   columns,
		Rows:      resultRows,
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			if utf8.Valid(typed) {
				normalized[i] = string(typed)
			} else {
				normalized[i] = "0x" + strings.ToUpper(hex.EncodeToString(typed))
			}
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
