// Package tenant owns the master relational store and the per-tenant
// scope provider. A scope is a self-contained SQLite database holding
// only one store's rows across the stores/orders/customers tables, so
// generated SQL can never read across tenants.
package tenant

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"

	"github.com/storequery/storequery/internal/config"
)

// Open connects to the master store. SQLite is the default backend;
// postgres and duckdb masters are supported for deployments that keep
// the order export in a warehouse.
func Open(ctx context.Context, cfg config.StoreConfig) (*sql.DB, error) {
	driverName, err := sqlDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open master store: %w", err)
	}
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
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping master store: %w", err)
	}
	return db, nil
}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case "sqlite":
		return "sqlite", nil
	case "postgres":
		return "pgx", nil
	case "duckdb":
		return "duckdb", nil
	default:
		return "", fmt.Errorf("unsupported store driver %q", driver)
	}
}

// placeholder renders the n-th bind parameter for the configured
// driver (1-based). SQLite and DuckDB use ?, postgres uses $n.
func placeholder(driver string, n int) string {
	if driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
