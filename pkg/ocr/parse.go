package ocr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultMinItemConfidence is the confidence floor for surfacing an item.
// Real-world line confidence on receipt photos commonly lands in the
// 0.2-0.5 band, so the floor has to sit below that to retain usable items.
const DefaultMinItemConfidence = 0.2

// merchantWindow is how many leading lines are scanned for the merchant name.
const merchantWindow = 8

// ParseOptions tunes a single parse. The zero value gets sensible defaults.
type ParseOptions struct {
	// MinItemConfidence drops items below this floor. Zero means
	// DefaultMinItemConfidence; a negative value disables the filter.
	MinItemConfidence float64

	// Score combines a line's OCR confidence with the pattern-match strength
	// into an item confidence. Nil means DefaultScore.
	Score ScoreFunc

	// Now supplies the fallback transaction date. Nil means time.Now.
	Now func() time.Time
}

var (
	amountRE = regexp.MustCompile(`\$?\s*([0-9]{1,6})[.,]([0-9]{2})\b`)

	// Labels are matched with trailing run-on characters allowed, since OCR
	// routinely glues noise onto them ("Totals", "Total Salesss").
	subtotalLabelRE = regexp.MustCompile(`(?i)\bsub[\s-]?total[a-z]*`)
	taxLabelRE      = regexp.MustCompile(`(?i)\b(tax|hst|gst|pst|vat)[a-z]*`)
	totalLabelRE    = regexp.MustCompile(`(?i)\b(total|balance|amount\s*due)[a-z]*`)

	// Primary item form: price mid-line followed by a short tax-flag/code
	// token ("... 1.88 N"). Fallback form: price at end of line.
	itemPriceMidRE = regexp.MustCompile(`\$?\s*([0-9]{1,4})[.,]([0-9]{2})\s+[A-Za-z]{1,2}\b`)
	itemPriceEndRE = regexp.MustCompile(`\$?\s*([0-9]{1,4})[.,]([0-9]{2})\s*$`)

	// Explicit quantity markers: "2x NAME", "2 X NAME", "(3) NAME", "2 @ NAME".
	qtyPrefixRE = regexp.MustCompile(`^\s*(?:\(([0-9]{1,2})\)|([0-9]{1,2})\s*[xX@])\s+`)

	digitsRE = regexp.MustCompile(`^[0-9]+$`)
)

// datePatterns are tried in order; the first line match that also parses wins.
var datePatterns = []struct {
	re      *regexp.Regexp
	layouts []string
}{
	{regexp.MustCompile(`\b[0-9]{1,2}/[0-9]{1,2}/(?:[0-9]{4}|[0-9]{2})\b`), []string{"1/2/2006", "1/2/06"}},
	{regexp.MustCompile(`\b[0-9]{1,2}-[0-9]{1,2}-[0-9]{4}\b`), []string{"2-1-2006"}},
	{regexp.MustCompile(`\b[0-9]{4}-[0-9]{2}-[0-9]{2}\b`), []string{"2006-01-02"}},
	{regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+[0-9]{1,2},?\s+[0-9]{4}\b`),
		[]string{"January 2, 2006", "Jan 2, 2006", "January 2 2006", "Jan 2 2006"}},
}

// Parse turns a recognized line sequence into a structured receipt. It is a
// pure function of its inputs: identical lines produce an identical result
// (the defaulted transaction date aside). It never fails; whatever subset of
// fields could be determined is returned, with the rest listed in Warnings.
func Parse(lines []RecognizedLine, opts ParseOptions) ParsedReceipt {
	if opts.MinItemConfidence == 0 {
		opts.MinItemConfidence = DefaultMinItemConfidence
	}
	if opts.Score == nil {
		opts.Score = DefaultScore
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	rec := ParsedReceipt{RawText: joinRawText(lines), Items: []ParsedItem{}}
	if len(lines) == 0 {
		rec.TransactionDate = opts.Now()
		rec.DateDefaulted = true
		rec.Warnings = append(rec.Warnings, "no text lines recognized")
		return rec
	}

	// consumed marks lines as claimed: totals lines never become items, and
	// lines claimed by the item pass (including lookback names) never
	// double as the merchant.
	consumed := make([]bool, len(lines))

	date, dateFound := extractDate(lines)
	if dateFound {
		rec.TransactionDate = date
	} else {
		rec.TransactionDate = opts.Now()
		rec.DateDefaulted = true
		rec.Warnings = append(rec.Warnings, "transaction date not detected; defaulted to processing time")
	}

	subtotal, tax, total := extractTotals(lines, consumed)
	rec.Subtotal = subtotal
	rec.Tax = tax
	rec.Total = total
	if total == nil {
		rec.Warnings = append(rec.Warnings, "total not detected")
	}

	items, dropped := extractItems(lines, consumed, opts)
	rec.Items = items

	merchant := extractMerchant(lines, consumed)
	rec.MerchantName = merchant
	if merchant == nil {
		rec.Warnings = append(rec.Warnings, "merchant name not detected")
	}
	if dropped > 0 {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("%d low-confidence item(s) dropped", dropped))
	}
	if len(items) == 0 {
		rec.Warnings = append(rec.Warnings, "no line items detected")
	}

	detected := 0
	if merchant != nil {
		detected++
	}
	if dateFound {
		detected++
	}
	if total != nil {
		detected++
	}
	if len(items) > 0 {
		detected++
	}
	rec.OverallConfidence = receiptConfidence(lines, detected, 4)
	return rec
}

func joinRawText(lines []RecognizedLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.Text)
	}
	return strings.Join(parts, "\n")
}

// extractDate applies the ordered date patterns across all lines.
func extractDate(lines []RecognizedLine) (time.Time, bool) {
	for _, p := range datePatterns {
		for _, l := range lines {
			m := p.re.FindString(l.Text)
			if m == "" {
				continue
			}
			for _, layout := range p.layouts {
				if t, err := time.Parse(layout, m); err == nil {
					return t, true
				}
			}
		}
	}
	return time.Time{}, false
}

// extractTotals claims subtotal/tax/total lines. Checked before item
// detection: a line matching both a totals label and an item-price pattern
// is a totals line. The amount may sit anywhere on the line since receipts
// place flags and codes after it.
func extractTotals(lines []RecognizedLine, consumed []bool) (subtotal, tax, total *float64) {
	for i, l := range lines {
		amt, ok := firstAmount(l.Text)
		if !ok {
			continue
		}
		switch {
		case subtotalLabelRE.MatchString(l.Text):
			if subtotal == nil {
				subtotal = &amt
			}
			consumed[i] = true
		case taxLabelRE.MatchString(l.Text):
			if tax == nil {
				tax = &amt
			}
			consumed[i] = true
		case totalLabelRE.MatchString(l.Text):
			if total == nil {
				total = &amt
			}
			consumed[i] = true
		}
	}
	return subtotal, tax, total
}

func firstAmount(text string) (float64, bool) {
	m := amountRE.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	return parseAmount(m[1], m[2]), true
}

func parseAmount(intPart, centsPart string) float64 {
	whole, _ := strconv.Atoi(intPart)
	cents, _ := strconv.Atoi(centsPart)
	return float64(whole) + float64(cents)/100
}

// extractMerchant picks the highest-confidence leading line that was not
// already claimed and does not look like a price or date line.
func extractMerchant(lines []RecognizedLine, consumed []bool) *string {
	limit := merchantWindow
	if len(lines) < limit {
		limit = len(lines)
	}
	best := -1
	for i := 0; i < limit; i++ {
		if consumed[i] {
			continue
		}
		text := lines[i].Text
		if amountRE.MatchString(text) || lineHasDate(text) {
			continue
		}
		if letterCount(text) < 3 {
			continue
		}
		if best == -1 || lines[i].Confidence > lines[best].Confidence {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	name := collapseSpaces(lines[best].Text)
	return &name
}

func lineHasDate(text string) bool {
	for _, p := range datePatterns {
		if p.re.MatchString(text) {
			return true
		}
	}
	return false
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			n++
		}
	}
	return n
}

// extractItems runs price detection over every unclaimed line. A line with a
// price but an empty remainder takes its name from the preceding unclaimed
// line, covering names that wrapped onto their own row.
func extractItems(lines []RecognizedLine, consumed []bool, opts ParseOptions) ([]ParsedItem, int) {
	items := []ParsedItem{}
	dropped := 0
	for i, l := range lines {
		if consumed[i] {
			continue
		}
		qty, text := extractQuantity(l.Text)
		name, price, strength, ok := extractItemPrice(text)
		if !ok {
			continue
		}
		conf := l.Confidence
		if name == "" && i > 0 && !consumed[i-1] && !amountRE.MatchString(lines[i-1].Text) {
			name = cleanItemName(lines[i-1].Text)
			consumed[i-1] = true
			if lines[i-1].Confidence < conf {
				conf = lines[i-1].Confidence
			}
		}
		if name == "" {
			continue
		}
		consumed[i] = true
		score := opts.Score(conf, strength)
		if score < opts.MinItemConfidence {
			dropped++
			continue
		}
		items = append(items, ParsedItem{Name: name, Price: price, Quantity: qty, Confidence: score})
	}
	return items, dropped
}

func extractQuantity(text string) (int, string) {
	m := qtyPrefixRE.FindStringSubmatch(text)
	if m == nil {
		return 1, text
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	qty, err := strconv.Atoi(raw)
	if err != nil || qty < 1 {
		return 1, text
	}
	return qty, text[len(m[0]):]
}

// extractItemPrice locates the price on an item line. The mid-line form
// (price followed by a trailing flag/code token) is tried first, then the
// end-of-line form; a line is rejected only when neither matches. The name
// is everything before the match with the match and all trailing characters
// stripped, so stray flags and codes never leak into it.
func extractItemPrice(text string) (name string, price float64, strength float64, ok bool) {
	if loc := itemPriceMidRE.FindStringSubmatchIndex(text); loc != nil {
		price = parseAmount(text[loc[2]:loc[3]], text[loc[4]:loc[5]])
		return cleanItemName(text[:loc[0]]), price, MatchStrengthPrimary, true
	}
	if loc := itemPriceEndRE.FindStringSubmatchIndex(text); loc != nil {
		price = parseAmount(text[loc[2]:loc[3]], text[loc[4]:loc[5]])
		return cleanItemName(text[:loc[0]]), price, MatchStrengthFallback, true
	}
	return "", 0, 0, false
}

// cleanItemName collapses whitespace and strips trailing barcode digit runs
// and single-character flag tokens left between the name and the price.
func cleanItemName(s string) string {
	tokens := strings.Fields(s)
	for len(tokens) > 0 {
		last := tokens[len(tokens)-1]
		if len(last) >= 5 && digitsRE.MatchString(last) {
			tokens = tokens[:len(tokens)-1]
			continue
		}
		if len(last) == 1 && last != "%" {
			tokens = tokens[:len(tokens)-1]
			continue
		}
		break
	}
	return strings.Join(tokens, " ")
}
