// Package seed writes the sample customers/orders store used by the
// assistant, for either embedded driver.
package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sqlassist/sqlassist/internal/sqlstore"
)

type Config struct {
	Driver string
	Path   string
	// Replace removes an existing store file before seeding.
	Replace bool
	// ExtraCustomers adds generated customers after the fixed sample rows.
	ExtraCustomers int
	Seed           int64
}

type Summary struct {
	Path      string
	Driver    string
	Customers int
	Orders    int
}

func (c Config) validate() error {
	if c.Path == "" {
		return errors.New("store path is required")
	}
	switch c.Driver {
	case sqlstore.DriverSQLite, sqlstore.DriverDuckDB:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Driver)
	}
	if c.ExtraCustomers < 0 {
		return errors.New("extra customers must be >= 0")
	}
	return nil
}

// Write creates the tables when missing and upserts the sample rows.
func Write(ctx context.Context, cfg Config) (Summary, error) {
	if cfg.Driver == "" {
		cfg.Driver = sqlstore.DriverSQLite
	}
	if err := cfg.validate(); err != nil {
		return Summary{}, err
	}

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Summary{}, fmt.Errorf("create store dir %q: %w", dir, err)
		}
	}
	if cfg.Replace {
		if err := os.Remove(cfg.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Summary{}, fmt.Errorf("remove existing store %q: %w", cfg.Path, err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return Summary{}, fmt.Errorf("open store %q: %w", cfg.Path, err)
	}
	defer func() { _ = db.Close() }()

	customers := append([]Customer(nil), Customers...)
	orders := append([]Order(nil), Orders...)
	if cfg.ExtraCustomers > 0 {
		generator := NewGenerator(cfg.Seed)
		for i := 0; i < cfg.ExtraCustomers; i++ {
			customer, placed := generator.NextCustomer()
			customers = append(customers, customer)
			orders = append(orders, placed...)
		}
	}

	if err := writeRows(ctx, db, ddlFor(cfg.Driver), customers, orders); err != nil {
		return Summary{}, err
	}
	return Summary{Path: cfg.Path, Driver: cfg.Driver, Customers: len(customers), Orders: len(orders)}, nil
}

func ddlFor(driver string) []string {
	amountType := "REAL"
	if driver == sqlstore.DriverDuckDB {
		amountType = "DOUBLE"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS customers (
	id INTEGER PRIMARY KEY,
	name TEXT,
	signup_date TEXT
)`,
		`CREATE TABLE IF NOT EXISTS orders (
	id INTEGER PRIMARY KEY,
	customer_id INTEGER REFERENCES customers (id),
	amount ` + amountType + `,
	order_date TEXT
)`,
	}
}

func writeRows(ctx context.Context, db *sql.DB, ddl []string, customers []Customer, orders []Order) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, statement := range ddl {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	insertCustomer, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO customers (id, name, signup_date) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare customer insert: %w", err)
	}
	defer func() { _ = insertCustomer.Close() }()
	for _, customer := range customers {
		if _, err := insertCustomer.ExecContext(ctx, customer.ID, customer.Name, customer.SignupDate); err != nil {
			return fmt.Errorf("insert customer %d: %w", customer.ID, err)
		}
	}

	insertOrder, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO orders (id, customer_id, amount, order_date) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare order insert: %w", err)
	}
	defer func() { _ = insertOrder.Close() }()
	for _, order := range orders {
		if _, err := insertOrder.ExecContext(ctx, order.ID, order.CustomerID, order.Amount, order.OrderDate); err != nil {
			return fmt.Errorf("insert order %d: %w", order.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	return nil
}
