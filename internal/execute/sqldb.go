package execute

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DBEngine executes read-only statements over a database/sql handle.
// Query errors from the backend are returned unwrapped so callers can
// quote the native diagnostic text verbatim in repair prompts.
type DBEngine struct {
	DB *sql.DB
}

func NewDBEngine(db *sql.DB) *DBEngine {
	return &DBEngine{DB: db}
}

func (e *DBEngine) Execute(ctx context.Context, sqlText string) (Table, error) {
	if e.DB == nil {
		return Table{}, fmt.Errorf("database handle is required")
	}
	stmt := stripTrailingSemicolons(sqlText)
	if stmt == "" {
		return Table{}, fmt.Errorf("sql is required")
	}
	if !isReadOnlySQL(stmt) {
		return Table{}, fmt.Errorf("only read-only SELECT/WITH statements are allowed")
	}

	rows, err := e.DB.QueryContext(ctx, stmt)
	if err != nil {
		return Table{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Table{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Table{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Table{}, err
	}

	return Table{Columns: columns, Rows: resultRows}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func isReadOnlySQL(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	return strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with")
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
