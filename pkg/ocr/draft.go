package ocr

import "time"

// DraftItem is one editable candidate row. Include defaults to true; the
// reviewer toggles it off instead of deleting rows, so nothing parsed is
// ever lost before commit.
type DraftItem struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	Confidence float64 `json:"confidence"`
	Include    bool    `json:"include"`
}

// ReviewDraft is the user-facing, editable form of a parsed receipt.
// Persistence is deferred until the reviewer explicitly confirms it; the
// raw OCR text rides along for manual transcription when parse quality is
// too poor to trust.
type ReviewDraft struct {
	MerchantName      string      `json:"merchant_name"`
	TransactionDate   time.Time   `json:"transaction_date"`
	DateDefaulted     bool        `json:"date_defaulted"`
	Subtotal          *float64    `json:"subtotal"`
	Tax               *float64    `json:"tax"`
	Total             *float64    `json:"total"`
	Items             []DraftItem `json:"items"`
	OverallConfidence float64     `json:"overall_confidence"`
	RawText           string      `json:"raw_text"`
	Warnings          []string    `json:"warnings"`
}

// ToDraft packages a parsed receipt for review. Purely structural: no
// business rules beyond carrying confidence through so the UI can flag
// low-confidence rows for extra scrutiny.
func ToDraft(rec ParsedReceipt) ReviewDraft {
	d := ReviewDraft{
		TransactionDate:   rec.TransactionDate,
		DateDefaulted:     rec.DateDefaulted,
		Subtotal:          rec.Subtotal,
		Tax:               rec.Tax,
		Total:             rec.Total,
		Items:             make([]DraftItem, 0, len(rec.Items)),
		OverallConfidence: rec.OverallConfidence,
		RawText:           rec.RawText,
		Warnings:          rec.Warnings,
	}
	if rec.MerchantName != nil {
		d.MerchantName = *rec.MerchantName
	}
	for _, it := range rec.Items {
		d.Items = append(d.Items, DraftItem{
			Name:       it.Name,
			Price:      it.Price,
			Quantity:   it.Quantity,
			Confidence: it.Confidence,
			Include:    true,
		})
	}
	return d
}
