package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/nlquery/nlquery/internal/config"
	"github.com/nlquery/nlquery/internal/query"
)

func TestExecuteReadsColumnsAndNulls(t *testing.T) {
	engine, mock := newMockEngine(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT au_id, au_lname FROM authors")).
		WillReturnRows(sqlmock.NewRows([]string{"au_id", "au_lname"}).
			AddRow(int64(1), []byte("White")).
			AddRow(int64(2), nil))
	mock.ExpectClose()

	result, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT au_id, au_lname FROM authors"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "au_id" || result.Columns[1] != "au_lname" {
		t.Fatalf("Columns = %#v", result.Columns)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][1] != "White" {
		t.Fatalf("bytes should be normalized to string, got %#v", result.Rows[0][1])
	}
	if result.Rows[1][1] != nil {
		t.Fatalf("null should stay nil, got %#v", result.Rows[1][1])
	}
	if result.Truncated {
		t.Fatal("Truncated = true, want false")
	}
	assertSQLMock(t, mock)
}

func TestExecuteCapsRowsAtLimit(t *testing.T) {
	engine, mock := newMockEngine(t)
	rows := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 250; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery("SELECT n FROM numbers").WillReturnRows(rows)
	mock.ExpectClose()

	result, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT n FROM numbers", RowLimit: 100})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 100 {
		t.Fatalf("rows = %d, want 100", len(result.Rows))
	}
	if result.Rows[99][0] != int64(99) {
		t.Fatalf("last row = %#v", result.Rows[99])
	}
	if !result.Truncated {
		t.Fatal("Truncated = false, want true")
	}
	assertSQLMock(t, mock)
}

func TestExecuteExactlyAtLimitIsNotTruncated(t *testing.T) {
	engine, mock := newMockEngine(t)
	rows := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 3; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery("SELECT n").WillReturnRows(rows)
	mock.ExpectClose()

	result, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT n", RowLimit: 3})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 3 || result.Truncated {
		t.Fatalf("rows = %d truncated = %v", len(result.Rows), result.Truncated)
	}
	assertSQLMock(t, mock)
}

func TestExecuteDefaultsRowLimit(t *testing.T) {
	engine, mock := newMockEngine(t)
	rows := sqlmock.NewRows([]string{"n"})
	for i := 0; i < query.DefaultRowLimit+5; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery("SELECT n").WillReturnRows(rows)
	mock.ExpectClose()

	result, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT n"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != query.DefaultRowLimit {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	assertSQLMock(t, mock)
}

func TestExecuteWrapsDriverError(t *testing.T) {
	engine, mock := newMockEngine(t)
	driverErr := errors.New("Invalid object name 'author'.")
	mock.ExpectQuery("SELECT").WillReturnError(driverErr)
	mock.ExpectClose()

	_, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT * FROM author"})
	var execErr *query.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("error = %T %v, want *query.ExecutionError", err, err)
	}
	if !errors.Is(err, driverErr) {
		t.Fatalf("error should wrap the driver error: %v", err)
	}
	assertSQLMock(t, mock)
}

func TestExecuteHonoursCommandTimeout(t *testing.T) {
	engine, mock := newMockEngine(t)
	engine.timeout = 20 * time.Millisecond
	mock.ExpectQuery("SELECT").
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectClose()

	_, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT 1"})
	var execErr *query.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("error = %v, want timeout execution error", err)
	}
}

func TestExecuteRequiresConnectionString(t *testing.T) {
	engine, err := NewEngine(Config{Driver: config.DriverPostgres})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	opened := false
	engine.open = func(string, string) (*sql.DB, error) {
		opened = true
		return nil, errors.New("unreachable")
	}
	_, err = engine.Execute(context.Background(), query.Request{SQL: "SELECT 1"})
	if !errors.Is(err, query.ErrNotConfigured) {
		t.Fatalf("Execute() error = %v, want ErrNotConfigured", err)
	}
	if opened {
		t.Fatal("connection should not be opened without a connection string")
	}
}

func TestDriverName(t *testing.T) {
	tests := map[string]string{
		config.DriverSQLServer: "sqlserver",
		"":                     "sqlserver",
		config.DriverPostgres:  "pgx",
		"DuckDB":               "duckdb",
	}
	for driver, want := range tests {
		got, err := DriverName(driver)
		if err != nil {
			t.Fatalf("DriverName(%q) error = %v", driver, err)
		}
		if got != want {
			t.Fatalf("DriverName(%q) = %q, want %q", driver, got, want)
		}
	}
	if _, err := DriverName("oracle"); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestNormalizeValuesHexEncodesBinary(t *testing.T) {
	got := normalizeValues([]any{[]byte{0xff, 0x00}, int64(3), nil})
	if got[0] != "0xFF00" || got[1] != int64(3) || got[2] != nil {
		t.Fatalf("normalizeValues() = %#v", got)
	}
}

func newMockEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	engine, err := NewEngine(Config{Driver: config.DriverSQLServer, ConnectionString: "sqlserver://sa@localhost?database=pubs"})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	engine.open = func(driverName, dsn string) (*sql.DB, error) {
		if driverName != "sqlserver" {
			t.Errorf("driverName = %q", driverName)
		}
		return db, nil
	}
	return engine, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
