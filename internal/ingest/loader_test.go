package ingest

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/storequery/storequery/internal/config"
	"github.com/storequery/storequery/internal/tenant"
)

type memorySource struct {
	files map[string]string
}

func (s memorySource) List(_ context.Context) ([]string, error) {
	var names []string
	for name := range s.files {
		names = append(names, name)
	}
	return names, nil
}

func (s memorySource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.files[name])), nil
}

type memorySink struct {
	writes map[string][]byte
}

func (s *memorySink) Write(_ context.Context, name string, body []byte) error {
	s.writes[name] = body
	return nil
}

func TestPipelineRun(t *testing.T) {
	db, err := tenant.Open(context.Background(), config.StoreConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "master.db"),
	})
	if err != nil {
		t.Fatalf("open master store: %v", err)
	}
	defer func() { _ = db.Close() }()

	source := memorySource{files: map[string]string{
		"orders_2025_03.csv": "order_id,store_id,fulfillment_type,order_type,delivery_fee_in_cents,delivery_info,subscription_discounts_metadata,notes,created_at,scheduled_fulfillment_at\n" +
			`o1,s1,pickup,regular_checkout,,{"eta":"noon","zone":"a"},,,2025-03-16 10:00:00,` + "\n" +
			"o2,s1,delivery,regular_checkout,350,,,,2025-03-17 11:00:00,2025-03-18 09:00:00\n",
		"orders_2025_04.csv": "order_id,store_id,fulfillment_type,order_type,delivery_fee_in_cents,delivery_info,subscription_discounts_metadata,notes,created_at,scheduled_fulfillment_at\n" +
			"o2,s1,delivery,regular_checkout,350,,,,2025-03-17 11:00:00,2025-03-18 09:00:00\n" +
			"o3,s2,delivery,gift_card,,,,,2025-04-01 08:00:00,\n",
		"stores.csv": "store_id,name,platform_fee,consumer_fee\n" +
			"s1,Coffee Drip,,\n" +
			`s2,Tikka Shack,{"pct":2},` + "\n",
		"customers_1.csv": "customer_id,store_id,external_customer_id\nc1,s1,ext-c1\n",
		"ignore_me.txt":   "not a csv",
	}}
	sink := &memorySink{writes: map[string][]byte{}}

	pipeline := &Pipeline{Source: source, DB: db, Driver: "sqlite", Sink: sink}
	result, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Files != 4 {
		t.Fatalf("files = %d", result.Files)
	}
	// o2 appears in both batches and is deduplicated.
	if result.Rows[TableOrders] != 3 {
		t.Fatalf("order rows = %d", result.Rows[TableOrders])
	}
	if result.Rows[TableStores] != 2 || result.Rows[TableCustomers] != 1 {
		t.Fatalf("rows = %v", result.Rows)
	}

	var fee string
	row := db.QueryRowContext(context.Background(),
		"SELECT delivery_fee_in_cents FROM orders WHERE order_id = 'o1'")
	if err := row.Scan(&fee); err != nil {
		t.Fatalf("read o1: %v", err)
	}
	if fee != "0" {
		t.Fatalf("pickup fee = %q, want imputed 0", fee)
	}

	var info string
	row = db.QueryRowContext(context.Background(),
		"SELECT delivery_info FROM orders WHERE order_id = 'o1'")
	if err := row.Scan(&info); err != nil {
		t.Fatalf("read o1 delivery_info: %v", err)
	}
	if info != `{"eta":"noon","zone":"a"}` {
		t.Fatalf("delivery_info = %q", info)
	}

	var scheduled string
	row = db.QueryRowContext(context.Background(),
		"SELECT scheduled_fulfillment_at FROM orders WHERE order_id = 'o3'")
	if err := row.Scan(&scheduled); err != nil {
		t.Fatalf("read o3: %v", err)
	}
	if scheduled != "2025-04-01 08:00:00" {
		t.Fatalf("scheduled_fulfillment_at = %q", scheduled)
	}

	var platformFee string
	row = db.QueryRowContext(context.Background(),
		"SELECT platform_fee FROM stores WHERE store_id = 's1'")
	if err := row.Scan(&platformFee); err != nil {
		t.Fatalf("read s1: %v", err)
	}
	if platformFee != "{}" {
		t.Fatalf("platform_fee = %q", platformFee)
	}

	for _, name := range []string{"cleaned_orders.csv", "cleaned_stores.csv", "cleaned_customers.csv"} {
		if _, ok := sink.writes[name]; !ok {
			t.Fatalf("missing cleaned output %q, wrote %v", name, sink.writes)
		}
	}
}

func TestPipelineRerunReplacesTables(t *testing.T) {
	db, err := tenant.Open(context.Background(), config.StoreConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "master.db"),
	})
	if err != nil {
		t.Fatalf("open master store: %v", err)
	}
	defer func() { _ = db.Close() }()

	source := memorySource{files: map[string]string{
		"customers_1.csv": "customer_id,store_id,external_customer_id\nc1,s1,ext-c1\nc2,s1,ext-c2\n",
	}}
	pipeline := &Pipeline{Source: source, DB: db, Driver: "sqlite"}

	if _, err := pipeline.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if _, err := pipeline.Run(context.Background()); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM customers").Scan(&count); err != nil {
		t.Fatalf("count customers: %v", err)
	}
	if count != 2 {
		t.Fatalf("customer rows = %d, want replacement not accumulation", count)
	}
}
