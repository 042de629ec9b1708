package ocr

import (
	"image"
	"testing"

	"github.com/otiai10/gosseract/v2"
)

func word(text string, x0, y0, x1, y1 int, conf float64) gosseract.BoundingBox {
	return gosseract.BoundingBox{Box: image.Rect(x0, y0, x1, y1), Word: text, Confidence: conf}
}

func TestGroupWordsIntoLines(t *testing.T) {
	// Two rows, words deliberately out of reading order.
	words := []gosseract.BoundingBox{
		word("4.99", 300, 52, 340, 68, 90),
		word("MILK", 10, 50, 60, 70, 80),
		word("TOTAL", 10, 90, 70, 110, 95),
		word("GALLON", 70, 51, 150, 69, 70),
		word("57.01", 300, 92, 350, 108, 85),
		word("  ", 200, 90, 210, 108, 10),
	}
	lines := groupWordsIntoLines(words)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %+v", len(lines), lines)
	}
	if lines[0].Text != "MILK GALLON 4.99" {
		t.Fatalf("row not rebuilt left to right: %q", lines[0].Text)
	}
	if lines[1].Text != "TOTAL 57.01" {
		t.Fatalf("rows not ordered top to bottom: %q", lines[1].Text)
	}
	wantConf := (0.8 + 0.7 + 0.9) / 3
	if diff := lines[0].Confidence - wantConf; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected mean confidence %f, got %f", wantConf, lines[0].Confidence)
	}
	box := lines[0].BoundingBox
	if box.X0 != 10 || box.Y0 != 50 || box.X1 != 340 || box.Y1 != 70 {
		t.Fatalf("line box is not the union of word boxes: %+v", box)
	}
}

func TestGroupWordsSkipsBlankTokens(t *testing.T) {
	lines := groupWordsIntoLines([]gosseract.BoundingBox{
		word(" ", 0, 0, 5, 10, 50),
		word("", 6, 0, 9, 10, 50),
	})
	if len(lines) != 0 {
		t.Fatalf("expected no lines from blank words, got %+v", lines)
	}
}

func TestMeanConfidence(t *testing.T) {
	if got := meanConfidence(nil); got != 0 {
		t.Fatalf("empty input: expected 0, got %f", got)
	}
	lines := []RecognizedLine{{Confidence: 0.4}, {Confidence: 0.8}}
	if got := meanConfidence(lines); got != 0.6 {
		t.Fatalf("expected 0.6, got %f", got)
	}
}

func TestClamp01(t *testing.T) {
	cases := map[float64]float64{-0.5: 0, 0: 0, 0.42: 0.42, 1: 1, 1.7: 1}
	for in, want := range cases {
		if got := clamp01(in); got != want {
			t.Fatalf("clamp01(%f): expected %f, got %f", in, want, got)
		}
	}
}

func TestCollapseSpaces(t *testing.T) {
	if got := collapseSpaces("  GV   100  BRD "); got != "GV 100 BRD" {
		t.Fatalf("got %q", got)
	}
}
