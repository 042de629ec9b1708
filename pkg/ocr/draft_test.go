package ocr

import (
	"testing"
	"time"
)

func TestToDraftCarriesEverything(t *testing.T) {
	merchant := "CORNER GROCERY"
	total := 12.34
	rec := ParsedReceipt{
		MerchantName:      &merchant,
		TransactionDate:   time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC),
		Total:             &total,
		Items:             []ParsedItem{{Name: "MILK", Price: 4.99, Quantity: 1, Confidence: 0.9}},
		OverallConfidence: 0.82,
		RawText:           "CORNER GROCERY\nMILK 4.99",
		Warnings:          []string{"tax not detected"},
	}
	d := ToDraft(rec)
	if d.MerchantName != merchant {
		t.Fatalf("merchant lost: %q", d.MerchantName)
	}
	if d.Total == nil || *d.Total != total {
		t.Fatalf("total lost: %v", d.Total)
	}
	if d.RawText == "" || len(d.Warnings) != 1 {
		t.Fatal("raw text and warnings must ride along for manual review")
	}
	if len(d.Items) != 1 || d.Items[0].Confidence != 0.9 {
		t.Fatalf("item confidence lost: %+v", d.Items)
	}
}

func TestToDraftItemsIncludedByDefault(t *testing.T) {
	rec := ParsedReceipt{Items: []ParsedItem{
		{Name: "A", Price: 1, Quantity: 1, Confidence: 0.9},
		{Name: "B", Price: 2, Quantity: 1, Confidence: 0.21},
	}}
	d := ToDraft(rec)
	for _, it := range d.Items {
		if !it.Include {
			t.Fatalf("item %q not included by default", it.Name)
		}
	}
}

func TestToDraftNilMerchant(t *testing.T) {
	d := ToDraft(ParsedReceipt{})
	if d.MerchantName != "" {
		t.Fatalf("expected empty merchant, got %q", d.MerchantName)
	}
	if d.Items == nil || len(d.Items) != 0 {
		t.Fatalf("expected empty non-nil item slice, got %#v", d.Items)
	}
}
