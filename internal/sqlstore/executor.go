package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sqlassist/sqlassist/internal/apperr"
)

const (
	DriverSQLite = "sqlite3"
	DriverDuckDB = "duckdb"
)

// ResultSet holds the columns in query order and one slice of values per row.
// Values are normalized to string, int64, float64, bool, time.Time or nil.
type ResultSet struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

type Config struct {
	Driver   string
	Path     string
	RowLimit int
}

// Opener opens a database handle for a driver and DSN. sql.Open satisfies it.
type Opener func(driver, dsn string) (*sql.DB, error)

// Executor runs sanitized statements against the embedded store. Every call
// opens its own read-only handle and closes it before returning.
type Executor struct {
	driver   string
	path     string
	dsn      string
	rowLimit int
	open     Opener
}

func NewExecutor(cfg Config) (*Executor, error) {
	return NewExecutorWithOpener(cfg, sql.Open)
}

func NewExecutorWithOpener(cfg Config, open Opener) (*Executor, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, apperr.New(apperr.ConfigurationError, "store path is required")
	}
	if cfg.RowLimit < 0 {
		return nil, apperr.New(apperr.ConfigurationError, "store row limit must be >= 0")
	}
	dsn, err := ReadOnlyDSN(driver, path)
	if err != nil {
		return nil, err
	}
	if open == nil {
		open = sql.Open
	}
	return &Executor{
		driver:   driver,
		path:     path,
		dsn:      dsn,
		rowLimit: cfg.RowLimit,
		open:     open,
	}, nil
}

// ReadOnlyDSN builds a DSN that makes the driver refuse writes.
func ReadOnlyDSN(driver, path string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "file:" + path + "?mode=ro&_query_only=true", nil
	case DriverDuckDB:
		return path + "?access_mode=read_only", nil
	default:
		return "", apperr.New(apperr.ConfigurationError, fmt.Sprintf("unsupported store driver %q", driver))
	}
}

func (e *Executor) Driver() string {
	return e.driver
}

func (e *Executor) Path() string {
	return e.path
}

// Ping reports whether the store file exists and accepts a connection.
func (e *Executor) Ping(ctx context.Context) error {
	db, err := e.connect(ctx)
	if err != nil {
		return err
	}
	return db.Close()
}

func (e *Executor) Execute(ctx context.Context, sqlText string) (ResultSet, error) {
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return ResultSet{}, apperr.New(apperr.QuerySyntaxError, "sql is required")
	}
	statement := sqlText
	if e.rowLimit > 0 {
		// The inner statement may end in a -- comment.
		statement = fmt.Sprintf("SELECT * FROM (\n%s\n) AS q LIMIT %d", sqlText, e.rowLimit)
	}
	return e.query(ctx, sqlText, statement)
}

// Sample returns up to limit rows of a table in storage order.
func (e *Executor) Sample(ctx context.Context, table string, limit int) (ResultSet, error) {
	if limit <= 0 {
		limit = 5
	}
	statement := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), limit)
	return e.query(ctx, statement, statement)
}

func (e *Executor) CountRows(ctx context.Context, table string) (int64, error) {
	statement := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))
	result, err := e.query(ctx, statement, statement)
	if err != nil {
		return 0, err
	}
	if len(result.Rows) != 1 || len(result.Rows[0]) != 1 {
		return 0, apperr.WithSQL(apperr.QuerySyntaxError, "count returned no value", statement, nil)
	}
	count, ok := result.Rows[0][0].(int64)
	if !ok {
		return 0, apperr.WithSQL(apperr.QuerySyntaxError, fmt.Sprintf("count returned %T", result.Rows[0][0]), statement, nil)
	}
	return count, nil
}

func (e *Executor) connect(ctx context.Context) (*sql.DB, error) {
	if _, err := os.Stat(e.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.Wrap(apperr.StoreUnavailable, fmt.Sprintf("store file %q does not exist", e.path), err)
		}
		return nil, apperr.Wrap(apperr.StoreUnavailable, fmt.Sprintf("stat store file %q", e.path), err)
	}
	db, err := e.open(e.driver, e.dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "open store", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(apperr.StoreUnavailable, "connect to store", err)
	}
	return db, nil
}

// query runs statement and attributes failures to sqlText, the statement the
// caller asked for before any row-limit wrapping.
func (e *Executor) query(ctx context.Context, sqlText, statement string) (ResultSet, error) {
	start := time.Now()
	db, err := e.connect(ctx)
	if err != nil {
		return ResultSet{}, err
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, statement)
	if err != nil {
		return ResultSet{}, queryError(ctx, "execute query", sqlText, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return ResultSet{}, queryError(ctx, "query columns", sqlText, err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return ResultSet{}, queryError(ctx, "scan row", sqlText, err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, queryError(ctx, "iterate rows", sqlText, err)
	}

	return ResultSet{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

func queryError(ctx context.Context, message, sqlText string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return apperr.WithSQL(apperr.StoreUnavailable, message+" interrupted", sqlText, errors.Join(ctxErr, err))
	}
	return apperr.WithSQL(apperr.QuerySyntaxError, message, sqlText, err)
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
