package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/sqlassist/sqlassist/internal/apperr"
	"github.com/sqlassist/sqlassist/internal/config"
)

const (
	applicationName = "sqlassist"
	pingTimeout     = 5 * time.Second
)

// Open connects to the audit database described by cfg and verifies it with
// a ping. A malformed DSN is a ConfigurationError; an unreachable server is
// StoreUnavailable.
func Open(ctx context.Context, cfg config.AuditConfig) (*sql.DB, error) {
	connConfig, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDB(*connConfig)
	applyPoolLimits(db, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(apperr.StoreUnavailable, "ping audit db "+connConfig.Host, err)
	}
	return db, nil
}

// parseDSN accepts URL and keyword/value DSNs. Audit rows are tagged with
// the application name unless the DSN sets one.
func parseDSN(dsn string) (*pgx.ConnConfig, error) {
	if dsn == "" {
		return nil, apperr.New(apperr.ConfigurationError, "audit dsn is required")
	}
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigurationError, "parse audit dsn", err)
	}
	if connConfig.RuntimeParams == nil {
		connConfig.RuntimeParams = map[string]string{}
	}
	if connConfig.RuntimeParams["application_name"] == "" {
		connConfig.RuntimeParams["application_name"] = applicationName
	}
	return connConfig, nil
}

func applyPoolLimits(db *sql.DB, cfg config.AuditConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}
