package ocr

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func mkLines(conf float64, texts ...string) []RecognizedLine {
	out := make([]RecognizedLine, 0, len(texts))
	for i, t := range texts {
		out = append(out, RecognizedLine{
			Text:        t,
			Confidence:  conf,
			BoundingBox: Box{X0: 0, Y0: i * 20, X1: 300, Y1: i*20 + 18},
		})
	}
	return out
}

func fixedNow() time.Time {
	return time.Date(2024, 7, 14, 12, 0, 0, 0, time.UTC)
}

func TestParseEmptyInput(t *testing.T) {
	rec := Parse(nil, ParseOptions{Now: fixedNow})
	if len(rec.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(rec.Items))
	}
	if rec.OverallConfidence != 0 {
		t.Fatalf("expected confidence 0, got %f", rec.OverallConfidence)
	}
	if !rec.DateDefaulted {
		t.Fatal("expected defaulted date on empty input")
	}
}

func TestParseIdempotent(t *testing.T) {
	lines := mkLines(0.8,
		"CORNER GROCERY",
		"07/14/2024",
		"MILK 2% GALLON $4.99",
		"TOTAL 4.99",
	)
	a := Parse(lines, ParseOptions{Now: fixedNow})
	b := Parse(lines, ParseOptions{Now: fixedNow})
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("parse not deterministic:\n%+v\nvs\n%+v", a, b)
	}
}

func TestItemMidLinePriceWithTrailingFlags(t *testing.T) {
	lines := mkLines(0.9, "GV 100 BRD 078742366900 F 1.88 N")
	rec := Parse(lines, ParseOptions{Now: fixedNow})
	if len(rec.Items) != 1 {
		t.Fatalf("expected 1 item, got %d (%+v)", len(rec.Items), rec.Items)
	}
	it := rec.Items[0]
	if it.Name != "GV 100 BRD" {
		t.Fatalf("expected name %q, got %q", "GV 100 BRD", it.Name)
	}
	if it.Price != 1.88 {
		t.Fatalf("expected price 1.88, got %f", it.Price)
	}
	if it.Quantity != 1 {
		t.Fatalf("expected quantity 1, got %d", it.Quantity)
	}
}

func TestItemEndOfLinePrice(t *testing.T) {
	lines := mkLines(0.9, "MILK 2% GALLON          $4.99")
	rec := Parse(lines, ParseOptions{Now: fixedNow})
	if len(rec.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(rec.Items))
	}
	if rec.Items[0].Name != "MILK 2% GALLON" {
		t.Fatalf("expected name %q, got %q", "MILK 2% GALLON", rec.Items[0].Name)
	}
	if rec.Items[0].Price != 4.99 {
		t.Fatalf("expected price 4.99, got %f", rec.Items[0].Price)
	}
}

func TestTotalsLabelToleratesOCRNoise(t *testing.T) {
	lines := mkLines(0.9, "Total Salesss 53.28")
	rec := Parse(lines, ParseOptions{Now: fixedNow})
	if rec.Total == nil || *rec.Total != 53.28 {
		t.Fatalf("expected total 53.28, got %v", rec.Total)
	}
	if len(rec.Items) != 0 {
		t.Fatalf("totals line misclassified as item: %+v", rec.Items)
	}
}

func TestTotalsCheckedBeforeItems(t *testing.T) {
	lines := mkLines(0.9,
		"BREAD 2.49",
		"SUBTOTAL 2.49",
		"TAX 1 0.15",
		"TOTAL 2.64 C",
	)
	rec := Parse(lines, ParseOptions{Now: fixedNow})
	if len(rec.Items) != 1 || rec.Items[0].Name != "BREAD" {
		t.Fatalf("expected only BREAD as item, got %+v", rec.Items)
	}
	if rec.Subtotal == nil || *rec.Subtotal != 2.49 {
		t.Fatalf("expected subtotal 2.49, got %v", rec.Subtotal)
	}
	if rec.Tax == nil || *rec.Tax != 0.15 {
		t.Fatalf("expected tax 0.15, got %v", rec.Tax)
	}
	if rec.Total == nil || *rec.Total != 2.64 {
		t.Fatalf("expected total 2.64, got %v", rec.Total)
	}
}

func TestDateFallbackWarning(t *testing.T) {
	lines := mkLines(0.9, "CORNER GROCERY", "MILK 3.49")
	rec := Parse(lines, ParseOptions{Now: fixedNow})
	if !rec.DateDefaulted {
		t.Fatal("expected defaulted date")
	}
	if !rec.TransactionDate.Equal(fixedNow()) {
		t.Fatalf("expected fallback to processing time, got %v", rec.TransactionDate)
	}
	found := false
	for _, w := range rec.Warnings {
		if strings.Contains(w, "date") && strings.Contains(w, "default") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected date-defaulted warning, got %v", rec.Warnings)
	}
}

func TestDatePatterns(t *testing.T) {
	cases := []struct {
		line string
		want time.Time
	}{
		{"07/14/2024 16:01", time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC)},
		{"14-07-2024", time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC)},
		{"2024-07-14", time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC)},
		{"July 14, 2024", time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC)},
		{"Jul 14 2024", time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		rec := Parse(mkLines(0.9, "STORE", tc.line), ParseOptions{Now: fixedNow})
		if rec.DateDefaulted {
			t.Fatalf("%q: date not detected", tc.line)
		}
		if !rec.TransactionDate.Equal(tc.want) {
			t.Fatalf("%q: expected %v, got %v", tc.line, tc.want, rec.TransactionDate)
		}
	}
}

func TestConfidenceFloorInvariant(t *testing.T) {
	lines := []RecognizedLine{
		{Text: "GOOD ITEM 2.99", Confidence: 0.6},
		{Text: "BAD ITEM 1.99", Confidence: 0.05},
	}
	rec := Parse(lines, ParseOptions{MinItemConfidence: 0.3, Now: fixedNow})
	if len(rec.Items) != 1 {
		t.Fatalf("expected 1 surviving item, got %d", len(rec.Items))
	}
	for _, it := range rec.Items {
		if it.Confidence < 0.3 {
			t.Fatalf("item %q below floor: %f", it.Name, it.Confidence)
		}
	}
	dropped := false
	for _, w := range rec.Warnings {
		if strings.Contains(w, "dropped") {
			dropped = true
		}
	}
	if !dropped {
		t.Fatalf("expected dropped-items warning, got %v", rec.Warnings)
	}
}

func TestQuantityMarkers(t *testing.T) {
	cases := []struct {
		line string
		qty  int
		name string
	}{
		{"2x SODA 3.00", 2, "SODA"},
		{"(3) APPLES 2.97", 3, "APPLES"},
		{"4 @ YOGURT 4.00", 4, "YOGURT"},
		{"SODA 1.50", 1, "SODA"},
	}
	for _, tc := range cases {
		rec := Parse(mkLines(0.9, tc.line), ParseOptions{Now: fixedNow})
		if len(rec.Items) != 1 {
			t.Fatalf("%q: expected 1 item, got %d", tc.line, len(rec.Items))
		}
		if rec.Items[0].Quantity != tc.qty {
			t.Fatalf("%q: expected quantity %d, got %d", tc.line, tc.qty, rec.Items[0].Quantity)
		}
		if rec.Items[0].Name != tc.name {
			t.Fatalf("%q: expected name %q, got %q", tc.line, tc.name, rec.Items[0].Name)
		}
	}
}

func TestMerchantFromHeader(t *testing.T) {
	lines := []RecognizedLine{
		{Text: "WAL*MART", Confidence: 0.95},
		{Text: "SAVE MONEY LIVE BETTER", Confidence: 0.7},
		{Text: "07/14/2024 16:01", Confidence: 0.9},
		{Text: "GV 100 BRD 078742366900 F 1.88 N", Confidence: 0.6},
	}
	rec := Parse(lines, ParseOptions{Now: fixedNow})
	if rec.MerchantName == nil || *rec.MerchantName != "WAL*MART" {
		t.Fatalf("expected merchant WAL*MART, got %v", rec.MerchantName)
	}
}

func TestMultiLineItemName(t *testing.T) {
	lines := mkLines(0.8,
		"ORGANIC BANANAS",
		"1.23 F",
	)
	rec := Parse(lines, ParseOptions{Now: fixedNow})
	if len(rec.Items) != 1 {
		t.Fatalf("expected 1 item, got %d (%+v)", len(rec.Items), rec.Items)
	}
	if rec.Items[0].Name != "ORGANIC BANANAS" {
		t.Fatalf("expected merged name, got %q", rec.Items[0].Name)
	}
	if rec.Items[0].Price != 1.23 {
		t.Fatalf("expected price 1.23, got %f", rec.Items[0].Price)
	}
}

func TestLookbackNameNeverDoublesAsMerchant(t *testing.T) {
	lines := mkLines(0.8,
		"CORNER GROCERY",
		"1.23 F",
	)
	rec := Parse(lines, ParseOptions{Now: fixedNow})
	if len(rec.Items) != 1 || rec.Items[0].Name != "CORNER GROCERY" {
		t.Fatalf("expected the leading line as item name, got %+v", rec.Items)
	}
	if rec.MerchantName != nil {
		t.Fatalf("line claimed as an item name must not double as merchant, got %q", *rec.MerchantName)
	}
}

func TestMalformedReceiptDegradesGracefully(t *testing.T) {
	lines := mkLines(0.4, "@@%%##", "????", "1234567890")
	rec := Parse(lines, ParseOptions{Now: fixedNow})
	if len(rec.Items) != 0 {
		t.Fatalf("expected no items from garbage, got %+v", rec.Items)
	}
	if rec.Total != nil {
		t.Fatalf("expected no total, got %v", rec.Total)
	}
	if len(rec.Warnings) == 0 {
		t.Fatal("expected warnings enumerating missing fields")
	}
	if rec.RawText == "" {
		t.Fatal("raw text must be retained for manual fallback")
	}
}

func TestCustomScoreFunc(t *testing.T) {
	lines := mkLines(0.5, "SODA 1.50")
	rec := Parse(lines, ParseOptions{
		Now:   fixedNow,
		Score: func(lineConf, strength float64) float64 { return 1.0 },
	})
	if len(rec.Items) != 1 || rec.Items[0].Confidence != 1.0 {
		t.Fatalf("custom score not applied: %+v", rec.Items)
	}
}
