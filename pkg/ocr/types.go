package ocr

import "time"

// RawImage is an image buffer plus decoded metadata. It is request-scoped:
// produced from an upload, optionally rewritten by preprocessing, and
// discarded once recognition finishes.
type RawImage struct {
	Data   []byte
	Width  int
	Height int
	Format string // "png", "jpeg", ...
}

// Box is a bounding rectangle in pixel coordinates of the source image.
type Box struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// RecognizedLine is one line of engine output, confidence normalized to 0..1.
// Lines are ordered top-to-bottom as emitted by the engine. Immutable once
// produced; the parser never mutates them.
type RecognizedLine struct {
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	BoundingBox Box     `json:"bounding_box"`
}

// RecognizeResult is the stable contract every engine implementation must
// produce, regardless of how the underlying library nests its output.
type RecognizeResult struct {
	Lines             []RecognizedLine `json:"lines"`
	OverallConfidence float64          `json:"overall_confidence"`
	RawText           string           `json:"raw_text"`
}

// ParsedItem is a candidate line item extracted from one recognized line.
type ParsedItem struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	Confidence float64 `json:"confidence"`
}

// ParsedReceipt aggregates everything the parser could determine. Missing
// fields are nil and enumerated in Warnings; parsing never fails outright.
type ParsedReceipt struct {
	MerchantName      *string      `json:"merchant_name"`
	TransactionDate   time.Time    `json:"transaction_date"`
	DateDefaulted     bool         `json:"date_defaulted"`
	Subtotal          *float64     `json:"subtotal"`
	Tax               *float64     `json:"tax"`
	Total             *float64     `json:"total"`
	Items             []ParsedItem `json:"items"`
	OverallConfidence float64      `json:"overall_confidence"`
	RawText           string       `json:"raw_text"`
	Warnings          []string     `json:"warnings"`
}
