package tenant

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/storequery/storequery/internal/config"
)

func newMasterStore(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(context.Background(), config.StoreConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(dir, "master.db"),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	statements := []string{
		`CREATE TABLE stores (store_id TEXT PRIMARY KEY, external_store_id TEXT, name TEXT, active BOOLEAN)`,
		`CREATE TABLE orders (order_id TEXT PRIMARY KEY, store_id TEXT, customer_id TEXT, fulfillment_type TEXT, total_amount_in_cents INTEGER, created_at TEXT)`,
		`CREATE TABLE customers (customer_id TEXT PRIMARY KEY, store_id TEXT, external_customer_id TEXT)`,
		`INSERT INTO stores VALUES ('s1', 'ext-1', 'Coffee Drip', 1)`,
		`INSERT INTO stores VALUES ('s2', 'ext-2', 'Tikka Shack', 1)`,
		`INSERT INTO orders VALUES ('o1', 's1', 'c1', 'pickup', 1200, '2025-03-16 10:00:00')`,
		`INSERT INTO orders VALUES ('o2', 's1', 'c1', 'delivery', 2500, '2025-03-17 12:00:00')`,
		`INSERT INTO orders VALUES ('o3', 's2', 'c2', 'pickup', 900, '2025-03-18 09:00:00')`,
		`INSERT INTO customers VALUES ('c1', 's1', 'ext-c1')`,
		`INSERT INTO customers VALUES ('c2', 's2', 'ext-c2')`,
	}
	for _, statement := range statements {
		if _, err := db.ExecContext(context.Background(), statement); err != nil {
			t.Fatalf("seed master store: %v", err)
		}
	}
	return db
}

func TestScopeCopiesOnlyTenantRows(t *testing.T) {
	master := newMasterStore(t)
	provider := &Provider{Master: master, Driver: "sqlite", ScopeDir: t.TempDir()}

	scoped, err := provider.Scope(context.Background(), "Coffee Drip")
	if err != nil {
		t.Fatalf("Scope() error = %v", err)
	}
	defer func() { _ = scoped.Close() }()

	if scoped.TenantScope != "Coffee Drip" {
		t.Fatalf("TenantScope = %q", scoped.TenantScope)
	}
	if scoped.ContextLine != "Serving for merchant: Coffee Drip" {
		t.Fatalf("ContextLine = %q", scoped.ContextLine)
	}

	var orderCount int
	if err := scoped.DB.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM orders").Scan(&orderCount); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 2 {
		t.Fatalf("order count = %d, want 2", orderCount)
	}

	var foreignRows int
	if err := scoped.DB.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM orders WHERE store_id <> 's1'").Scan(&foreignRows); err != nil {
		t.Fatalf("count foreign orders: %v", err)
	}
	if foreignRows != 0 {
		t.Fatalf("scoped store leaked %d foreign rows", foreignRows)
	}

	var storeName string
	if err := scoped.DB.QueryRowContext(context.Background(), "SELECT name FROM stores").Scan(&storeName); err != nil {
		t.Fatalf("read scoped store: %v", err)
	}
	if storeName != "Coffee Drip" {
		t.Fatalf("scoped store name = %q", storeName)
	}
}

func TestScopeUnknownTenant(t *testing.T) {
	master := newMasterStore(t)
	provider := &Provider{Master: master, Driver: "sqlite", ScopeDir: t.TempDir()}

	_, err := provider.Scope(context.Background(), "Migos Fine Foods")
	if !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("error = %v, want ErrTenantNotFound", err)
	}
}

func TestScopeEmptyNameReturnsMaster(t *testing.T) {
	master := newMasterStore(t)
	provider := &Provider{Master: master, Driver: "sqlite", ScopeDir: t.TempDir()}

	scoped, err := provider.Scope(context.Background(), "")
	if err != nil {
		t.Fatalf("Scope() error = %v", err)
	}
	if scoped.DB != master {
		t.Fatal("unscoped session should use the master handle")
	}

	var total int
	if err := scoped.DB.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM orders").Scan(&total); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if total != 3 {
		t.Fatalf("order count = %d, want 3", total)
	}

	// Close on an unscoped store must not close the shared master.
	if err := scoped.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := master.PingContext(context.Background()); err != nil {
		t.Fatalf("master closed by unscoped Close: %v", err)
	}
}

func TestPlaceholderStyles(t *testing.T) {
	if got := placeholder("postgres", 2); got != "$2" {
		t.Fatalf("postgres placeholder = %q", got)
	}
	if got := placeholder("sqlite", 1); got != "?" {
		t.Fatalf("sqlite placeholder = %q", got)
	}
	if got := placeholder("duckdb", 1); got != "?" {
		t.Fatalf("duckdb placeholder = %q", got)
	}
}
