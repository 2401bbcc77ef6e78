package execute

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestExecuteReturnsColumnsAndRowsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT name, total FROM orders").WillReturnRows(
		sqlmock.NewRows([]string{"name", "total"}).
			AddRow([]byte("Coffee Drip"), int64(4)).
			AddRow([]byte("Tikka Shack"), int64(9)),
	)

	table, err := NewDBEngine(db).Execute(context.Background(), "SELECT name, total FROM orders;")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(table.Columns) != 2 || table.Columns[0] != "name" {
		t.Fatalf("columns = %v", table.Columns)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows = %d", len(table.Rows))
	}
	if table.Rows[0][0] != "Coffee Drip" {
		t.Fatalf("byte slice not normalized to string: %v (%T)", table.Rows[0][0], table.Rows[0][0])
	}
	if table.Rows[1][1] != int64(9) {
		t.Fatalf("row order not preserved: %v", table.Rows[1])
	}
}

func TestExecutePassesBackendErrorThroughUnmodified(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	backendErr := errors.New("no such column: fulfilment_type")
	mock.ExpectQuery("SELECT").WillReturnError(backendErr)

	_, err = NewDBEngine(db).Execute(context.Background(), "SELECT fulfilment_type FROM orders")
	if !errors.Is(err, backendErr) {
		t.Fatalf("expected native backend error, got %v", err)
	}
}

func TestExecuteRejectsMutatingStatements(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	for _, stmt := range []string{
		"DELETE FROM orders",
		"UPDATE orders SET notes = ''",
		"DROP TABLE stores",
		"INSERT INTO orders VALUES (1)",
	} {
		if _, err := NewDBEngine(db).Execute(context.Background(), stmt); err == nil {
			t.Fatalf("Execute(%q) should be rejected", stmt)
		}
	}
}

func TestExecuteAllowsCTEs(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("WITH weekly AS").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(1)))
	if _, err := NewDBEngine(db).Execute(context.Background(), "WITH weekly AS (SELECT 1 AS n) SELECT n FROM weekly"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestExecuteRejectsEmptySQL(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := NewDBEngine(db).Execute(context.Background(), " ;; "); err == nil {
		t.Fatal("expected error for empty sql")
	}
}

func TestSingleCell(t *testing.T) {
	table := Table{Columns: []string{"count"}, Rows: [][]any{{int64(0)}}}
	value, ok := table.SingleCell()
	if !ok || value != int64(0) {
		t.Fatalf("SingleCell() = %v, %v", value, ok)
	}
	if _, ok := (Table{Columns: []string{"a", "b"}, Rows: [][]any{{1, 2}}}).SingleCell(); ok {
		t.Fatal("two-column row is not a single cell")
	}
	if _, ok := (Table{}).SingleCell(); ok {
		t.Fatal("empty table is not a single cell")
	}
}
