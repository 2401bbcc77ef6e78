package ingest

import (
	"strings"
	"testing"
)

func TestEscapeJSONCommas(t *testing.T) {
	cases := map[string]string{
		`o1,{"a":1,"b":2},done`:         `o1,{"a":1;"b":2},done`,
		`o1,{"a":{"x":1,"y":2},"b":3}`:  `o1,{"a":{"x":1;"y":2};"b":3}`,
		`plain,line,no,json`:            `plain,line,no,json`,
		`o1,{"unterminated":1,"x"`:      `o1,{"unterminated":1,"x"`,
		`{},{"a":1},tail`:               `{},{"a":1},tail`,
		`a,{"fee":{"flat":100,"pct":2}`: `a,{"fee":{"flat":100,"pct":2}`,
	}
	for input, want := range cases {
		if got := escapeJSONCommas(input); got != want {
			t.Fatalf("escapeJSONCommas(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestClassifyFile(t *testing.T) {
	cases := map[string]struct {
		table Table
		ok    bool
	}{
		"orders_2025_03.csv":    {TableOrders, true},
		"customers_batch1.csv":  {TableCustomers, true},
		"stores_export.csv":     {TableStores, true},
		"stores.csv":            {TableStores, true},
		"raw/orders_1.csv":      {TableOrders, true},
		"readme.txt":            {"", false},
		"inventory_2025_03.csv": {"", false},
	}
	for name, want := range cases {
		table, ok := classifyFile(name)
		if table != want.table || ok != want.ok {
			t.Fatalf("classifyFile(%q) = %q, %v", name, table, ok)
		}
	}
}

func TestParseRawRestoresJSONCommas(t *testing.T) {
	raw := "order_id,delivery_info,notes\n" +
		`o1,{"address":"1 Main St","eta":"noon"},left at door` + "\n"

	ds, err := parseRaw(strings.NewReader(raw), TableOrders)
	if err != nil {
		t.Fatalf("parseRaw() error = %v", err)
	}
	if len(ds.Rows) != 1 {
		t.Fatalf("rows = %d", len(ds.Rows))
	}
	if ds.Rows[0][1] != `{"address":"1 Main St","eta":"noon"}` {
		t.Fatalf("delivery_info = %q", ds.Rows[0][1])
	}
	if ds.Rows[0][2] != "left at door" {
		t.Fatalf("notes = %q", ds.Rows[0][2])
	}
}

func TestCleanOrdersImputations(t *testing.T) {
	ds := Dataset{
		Columns: []string{
			"order_id", "fulfillment_type", "order_type",
			"delivery_fee_in_cents", "subscription_discounts_metadata",
			"delivery_info", "notes", "created_at", "scheduled_fulfillment_at",
		},
		Rows: [][]string{
			{"o1", "pickup", "regular_checkout", "", "", "", "", "2025-03-16 10:00:00", ""},
			{"o2", "delivery", "regular_checkout", "", "", "", "", "2025-03-17 11:00:00", "2025-03-18 09:00:00"},
			{"o3", "delivery", "gift_card", "", "", "", "", "2025-03-18 12:00:00", ""},
			{"o4", "delivery", "regular_checkout", "350", "", "", "", "2025-03-19 13:00:00", ""},
		},
	}
	cleanOrders(&ds)

	// Pickup and gift card orders get a zero fee; a plain delivery with
	// a missing fee stays missing.
	if ds.Rows[0][3] != "0" || ds.Rows[2][3] != "0" {
		t.Fatalf("fee imputation failed: %q / %q", ds.Rows[0][3], ds.Rows[2][3])
	}
	if ds.Rows[1][3] != "" {
		t.Fatalf("delivery order fee should stay empty, got %q", ds.Rows[1][3])
	}
	if ds.Rows[3][3] != "350" {
		t.Fatalf("existing fee overwritten: %q", ds.Rows[3][3])
	}

	for i, row := range ds.Rows {
		if row[4] != "{}" || row[5] != "{}" {
			t.Fatalf("row %d JSON defaults = %q / %q", i, row[4], row[5])
		}
	}

	if ds.Rows[0][8] != "2025-03-16 10:00:00" {
		t.Fatalf("scheduled_fulfillment_at fallback = %q", ds.Rows[0][8])
	}
	if ds.Rows[1][8] != "2025-03-18 09:00:00" {
		t.Fatalf("existing schedule overwritten: %q", ds.Rows[1][8])
	}
}

func TestCleanStoresDefaults(t *testing.T) {
	ds := Dataset{
		Columns: []string{"store_id", "platform_fee", "consumer_fee", "delivery_fee"},
		Rows: [][]string{
			{"s1", "", "", ""},
			{"s2", `{"pct":2}`, `{"flat":50}`, ""},
		},
	}
	cleanStores(&ds)

	if ds.Rows[0][1] != "{}" || ds.Rows[0][2] != "{}" {
		t.Fatalf("store defaults = %q / %q", ds.Rows[0][1], ds.Rows[0][2])
	}
	if ds.Rows[1][1] != `{"pct":2}` {
		t.Fatalf("existing platform_fee overwritten: %q", ds.Rows[1][1])
	}
	// delivery_fee has no default.
	if ds.Rows[0][3] != "" {
		t.Fatalf("delivery_fee = %q", ds.Rows[0][3])
	}
}

func TestDatasetDedupe(t *testing.T) {
	ds := Dataset{
		Columns: []string{"a", "b"},
		Rows: [][]string{
			{"1", "x"},
			{"2", "y"},
			{"1", "x"},
		},
	}
	ds.dedupe()
	if len(ds.Rows) != 2 {
		t.Fatalf("rows = %d", len(ds.Rows))
	}
	if ds.Rows[0][0] != "1" || ds.Rows[1][0] != "2" {
		t.Fatalf("order not preserved: %v", ds.Rows)
	}
}

func TestDatasetMergeMismatch(t *testing.T) {
	ds := Dataset{Columns: []string{"a", "b"}}
	if err := ds.merge(Dataset{Columns: []string{"a"}}); err == nil {
		t.Fatal("expected column mismatch error")
	}
}
