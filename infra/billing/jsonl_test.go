package billing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wastemaster/wastemaster/core/model"
)

func TestJSONLRendererWritesBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoices.jsonl")
	r, err := NewJSONLRenderer(path)
	if err != nil {
		t.Fatalf("NewJSONLRenderer: %v", err)
	}
	batch := []model.BillingLineItem{
		{
			ID:           "li-1",
			OccurrenceID: "occ-1",
			ServiceID:    "svc-1",
			CustomerID:   "cust-1",
			Description:  "Waste collection on 2024-01-08",
			Date:         time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
			Amount:       decimal.RequireFromString("32.50"),
			Currency:     "EUR",
		},
		{ID: "li-2", OccurrenceID: "occ-2", ServiceID: "svc-1", CustomerID: "cust-1"},
	}
	if err := r.Render(context.Background(), batch); err != nil {
		t.Fatalf("Render: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var item model.BillingLineItem
		if err := json.Unmarshal(sc.Bytes(), &item); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		if lines == 0 {
			if item.ID != "li-1" || !item.Amount.Equal(decimal.RequireFromString("32.50")) {
				t.Fatalf("unexpected first item %+v", item)
			}
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}

func TestJSONLRendererRequiresPath(t *testing.T) {
	if _, err := NewJSONLRenderer(""); err == nil {
		t.Fatal("expected error")
	}
}
