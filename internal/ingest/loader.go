package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/storequery/storequery/internal/observability"
)

// Pipeline runs one full ingest: list raw exports, clean them, replace
// the master tables, and optionally emit the cleaned CSVs to a sink.
type Pipeline struct {
	Source Source
	DB     *sql.DB
	Driver string
	Sink   Sink // optional
	Logger *slog.Logger
}

type Result struct {
	Files int
	Rows  map[Table]int
}

func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	result := Result{Rows: map[Table]int{}}
	names, err := p.Source.List(ctx)
	if err != nil {
		return result, err
	}
	sort.Strings(names)

	datasets := map[Table]*Dataset{
		TableOrders:    {},
		TableCustomers: {},
		TableStores:    {},
	}
	for _, name := range names {
		table, ok := classifyFile(name)
		if !ok {
			p.logger().WarnContext(ctx, "skipping unrecognized file", slog.String("file", name))
			continue
		}
		if err := p.readInto(ctx, name, table, datasets[table]); err != nil {
			return result, err
		}
		result.Files++
		observability.IncrementIngestFile()
	}

	for _, ds := range datasets {
		if len(ds.Rows) > 0 {
			ds.dedupe()
		}
	}
	cleanOrders(datasets[TableOrders])
	cleanStores(datasets[TableStores])

	for table, ds := range datasets {
		if len(ds.Columns) == 0 {
			continue
		}
		if err := p.replaceTable(ctx, table, *ds); err != nil {
			return result, err
		}
		result.Rows[table] = len(ds.Rows)
		observability.ObserveIngestRows(string(table), len(ds.Rows))

		if p.Sink != nil {
			if err := p.Sink.Write(ctx, fmt.Sprintf("cleaned_%s.csv", table), renderCSV(*ds)); err != nil {
				return result, fmt.Errorf("write cleaned %s: %w", table, err)
			}
		}
		p.logger().InfoContext(ctx, "table loaded",
			slog.String("table", string(table)),
			slog.Int("rows", len(ds.Rows)),
		)
	}
	return result, nil
}

func (p *Pipeline) readInto(ctx context.Context, name string, table Table, dst *Dataset) error {
	reader, err := p.Source.Open(ctx, name)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	ds, err := parseRaw(reader, table)
	if err != nil {
		return fmt.Errorf("parse %q: %w", name, err)
	}
	if err := dst.merge(ds); err != nil {
		return fmt.Errorf("merge %q: %w", name, err)
	}
	return nil
}

// replaceTable drops and recreates the target table from the cleaned
// dataset. The export's text representation is kept as-is; the query
// layer works against these string columns.
func (p *Pipeline) replaceTable(ctx context.Context, table Table, ds Dataset) error {
	quotedTable := quoteIdent(string(table))
	if _, err := p.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+quotedTable); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}

	quoted := make([]string, len(ds.Columns))
	marks := make([]string, len(ds.Columns))
	for i, column := range ds.Columns {
		quoted[i] = quoteIdent(column) + " TEXT"
		marks[i] = bindMark(p.Driver, i+1)
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quotedTable, strings.Join(quoted, ", "))
	if _, err := p.DB.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}

	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load %s: %w", table, err)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quotedTable, strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare load %s: %w", table, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range ds.Rows {
		values := make([]any, len(row))
		for i, value := range row {
			values[i] = value
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func bindMark(driver string, n int) string {
	if driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
