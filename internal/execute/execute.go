// Package execute runs candidate SQL statements against a tenant-scoped
// relational store. Execution is purely mechanical: one statement in,
// a table or the backend's native error out. Retry policy lives with
// the caller.
package execute

import "context"

// Table is a materialized query result. Column order and row order are
// exactly as returned by the backend.
type Table struct {
	Columns []string
	Rows    [][]any
}

func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// SingleCell reports the sole value of a 1x1 result, if that is the
// result's shape.
func (t Table) SingleCell() (any, bool) {
	if len(t.Rows) == 1 && len(t.Columns) == 1 && len(t.Rows[0]) == 1 {
		return t.Rows[0][0], true
	}
	return nil, false
}

type Engine interface {
	Execute(ctx context.Context, sqlText string) (Table, error)
}
