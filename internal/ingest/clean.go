package ingest

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"
)

type Table string

const (
	TableOrders    Table = "orders"
	TableCustomers Table = "customers"
	TableStores    Table = "stores"
)

var jsonColumnsByTable = map[Table][]string{
	TableOrders:    {"delivery_info", "subscription_discounts_metadata"},
	TableStores:    {"platform_fee", "delivery_fee", "pre_sale", "consumer_fee"},
	TableCustomers: {},
}

// classifyFile maps a raw export file name to its target table. Export
// batches are named orders_<batch>.csv etc.; a bare stores.csv is also
// accepted.
func classifyFile(name string) (Table, bool) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if !strings.HasSuffix(base, ".csv") {
		return "", false
	}
	switch {
	case strings.HasPrefix(base, "orders_"):
		return TableOrders, true
	case strings.HasPrefix(base, "customers_"):
		return TableCustomers, true
	case strings.HasPrefix(base, "stores_"), base == "stores.csv":
		return TableStores, true
	default:
		return "", false
	}
}

// escapeJSONCommas rewrites commas inside {...} spans as semicolons so
// the line parses as plain CSV. Nested objects are tracked by brace
// depth; an unterminated span is passed through unchanged.
func escapeJSONCommas(line string) string {
	var output, buffer strings.Builder
	depth := 0
	for _, ch := range line {
		switch {
		case ch == '{':
			depth++
			buffer.WriteRune(ch)
		case ch == '}':
			depth--
			buffer.WriteRune(ch)
			if depth == 0 {
				output.WriteString(strings.ReplaceAll(buffer.String(), ",", ";"))
				buffer.Reset()
			}
		case depth > 0:
			buffer.WriteRune(ch)
		default:
			output.WriteRune(ch)
		}
	}
	output.WriteString(buffer.String())
	return output.String()
}

// Dataset is one table's parsed rows. All values are strings; the
// master store keeps the export's text representation.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

func (d *Dataset) columnIndex(name string) int {
	for i, column := range d.Columns {
		if column == name {
			return i
		}
	}
	return -1
}

// parseRaw reads one raw export: escape JSON commas per line, parse as
// CSV, then restore the commas inside the table's JSON columns.
func parseRaw(r io.Reader, table Table) (Dataset, error) {
	var fixed strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		fixed.WriteString(escapeJSONCommas(scanner.Text()))
		fixed.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return Dataset{}, fmt.Errorf("read raw csv: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(fixed.String()))
	reader.FieldsPerRecord = -1
	// JSON cells are unquoted and carry literal double quotes.
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return Dataset{}, fmt.Errorf("parse raw csv: %w", err)
	}
	if len(records) == 0 {
		return Dataset{}, fmt.Errorf("raw csv has no header")
	}

	ds := Dataset{Columns: records[0]}
	jsonIdx := make(map[int]bool)
	for _, column := range jsonColumnsByTable[table] {
		if i := ds.columnIndex(column); i >= 0 {
			jsonIdx[i] = true
		}
	}
	for _, record := range records[1:] {
		row := make([]string, len(ds.Columns))
		for i := range row {
			if i < len(record) {
				row[i] = record[i]
			}
			if jsonIdx[i] {
				row[i] = strings.ReplaceAll(row[i], ";", ",")
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// merge appends other's rows; the first dataset's header wins. Batches
// of the same table are expected to share one header.
func (d *Dataset) merge(other Dataset) error {
	if len(d.Columns) == 0 {
		*d = other
		return nil
	}
	if len(other.Columns) != len(d.Columns) {
		return fmt.Errorf("column count mismatch: %d vs %d", len(other.Columns), len(d.Columns))
	}
	d.Rows = append(d.Rows, other.Rows...)
	return nil
}

// dedupe drops exact duplicate rows, keeping first occurrence order.
func (d *Dataset) dedupe() {
	seen := make(map[string]bool, len(d.Rows))
	kept := d.Rows[:0]
	for _, row := range d.Rows {
		key := strings.Join(row, "\x1f")
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, row)
	}
	d.Rows = kept
}

var zeroFeeFulfillments = map[string]bool{"pickup": true, "curbside": true}
var zeroFeeOrderTypes = map[string]bool{
	"store_credit_reload":   true,
	"gift_card":             true,
	"subscription_purchase": true,
}

// cleanOrders applies the imputation rules: missing delivery fees are
// zero for order shapes that cannot have one, empty JSON columns become
// {}, and unscheduled orders fall back to their creation time.
func cleanOrders(ds *Dataset) {
	feeIdx := ds.columnIndex("delivery_fee_in_cents")
	fulfillmentIdx := ds.columnIndex("fulfillment_type")
	orderTypeIdx := ds.columnIndex("order_type")
	scheduledIdx := ds.columnIndex("scheduled_fulfillment_at")
	createdIdx := ds.columnIndex("created_at")

	for _, row := range ds.Rows {
		if feeIdx >= 0 && strings.TrimSpace(row[feeIdx]) == "" {
			feeExempt := fulfillmentIdx >= 0 && zeroFeeFulfillments[row[fulfillmentIdx]] ||
				orderTypeIdx >= 0 && zeroFeeOrderTypes[row[orderTypeIdx]]
			if feeExempt {
				row[feeIdx] = "0"
			}
		}
		fillEmpty(ds, row, "subscription_discounts_metadata", "{}")
		fillEmpty(ds, row, "delivery_info", "{}")
		if scheduledIdx >= 0 && createdIdx >= 0 && strings.TrimSpace(row[scheduledIdx]) == "" {
			row[scheduledIdx] = row[createdIdx]
		}
	}
}

func cleanStores(ds *Dataset) {
	for _, row := range ds.Rows {
		fillEmpty(ds, row, "platform_fee", "{}")
		fillEmpty(ds, row, "consumer_fee", "{}")
	}
}

func fillEmpty(ds *Dataset, row []string, column, value string) {
	if i := ds.columnIndex(column); i >= 0 && strings.TrimSpace(row[i]) == "" {
		row[i] = value
	}
}

// renderCSV serializes a cleaned dataset for the optional sink output.
func renderCSV(ds Dataset) []byte {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(ds.Columns)
	for _, row := range ds.Rows {
		_ = w.Write(row)
	}
	w.Flush()
	return []byte(b.String())
}
