package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrTenantNotFound is returned when no store matches the requested
// scope name. Fatal for session setup; never retried.
var ErrTenantNotFound = errors.New("tenant not found")

var scopedTables = []string{"stores", "orders", "customers"}

// Scoped is a relational store restricted to one tenant, or the full
// master store for internal (unscoped) sessions.
type Scoped struct {
	DB          *sql.DB
	TenantScope string
	ContextLine string

	path  string
	owned bool
}

// Close releases the scoped database. The master handle of an unscoped
// session is left open; it is shared and owned by the caller.
func (s *Scoped) Close() error {
	if !s.owned {
		return nil
	}
	err := s.DB.Close()
	if s.path != "" {
		if removeErr := os.Remove(s.path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) && err == nil {
			err = removeErr
		}
	}
	return err
}

// Provider materializes tenant scopes from the master store.
type Provider struct {
	Master   *sql.DB
	Driver   string
	ScopeDir string
	Logger   *slog.Logger
}

// Scope returns a store restricted to the named tenant. An empty name
// grants full visibility over the master store for internal analysts.
func (p *Provider) Scope(ctx context.Context, storeName string) (*Scoped, error) {
	if p.Master == nil {
		return nil, fmt.Errorf("master store is required")
	}
	storeName = strings.TrimSpace(storeName)
	if storeName == "" {
		return &Scoped{
			DB:          p.Master,
			TenantScope: "",
			ContextLine: "Serving for an internal analyst with full visibility",
		}, nil
	}

	storeID, err := p.lookupStoreID(ctx, storeName)
	if err != nil {
		return nil, err
	}

	dir := p.ScopeDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "storequery-scope-"+uuid.NewString()+".db")
	scopedDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open scoped store: %w", err)
	}

	scoped := &Scoped{
		DB:          scopedDB,
		TenantScope: storeName,
		ContextLine: "Serving for merchant: " + storeName,
		path:        path,
		owned:       true,
	}
	for _, table := range scopedTables {
		if err := p.copyTable(ctx, scopedDB, table, storeID); err != nil {
			_ = scoped.Close()
			return nil, fmt.Errorf("scope table %s: %w", table, err)
		}
	}
	if p.Logger != nil {
		p.Logger.InfoContext(ctx, "tenant scope materialized",
			slog.String("tenant", storeName),
			slog.String("path", path),
		)
	}
	return scoped, nil
}

func (p *Provider) lookupStoreID(ctx context.Context, storeName string) (string, error) {
	query := "SELECT store_id FROM stores WHERE name = " + placeholder(p.Driver, 1)
	var raw any
	if err := p.Master.QueryRowContext(ctx, query, storeName).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: no store named %q", ErrTenantNotFound, storeName)
		}
		return "", fmt.Errorf("lookup store %q: %w", storeName, err)
	}
	switch id := raw.(type) {
	case string:
		return id, nil
	case []byte:
		return string(id), nil
	default:
		return fmt.Sprint(id), nil
	}
}

// copyTable copies the tenant's rows of one master table into the
// scoped SQLite database. Columns are discovered from the master result
// set so the copy works across all master drivers; SQLite's dynamic
// typing keeps the values as scanned.
func (p *Provider) copyTable(ctx context.Context, dst *sql.DB, table, storeID string) error {
	query := fmt.Sprintf("SELECT * FROM %s WHERE store_id = %s", table, placeholder(p.Driver, 1))
	rows, err := p.Master.QueryContext(ctx, query, storeID)
	if err != nil {
		return fmt.Errorf("read master rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("read master columns: %w", err)
	}
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = quoteIdent(column)
		marks[i] = "?"
	}

	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(quoted, ", "))
	if _, err := dst.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create scoped table: %w", err)
	}

	tx, err := dst.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scoped insert: %w", err)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(table), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare scoped insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("scan master row: %w", err)
		}
		for i, value := range values {
			if b, ok := value.([]byte); ok {
				values[i] = string(b)
			}
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert scoped row: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("iterate master rows: %w", err)
	}
	return tx.Commit()
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
