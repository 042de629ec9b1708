package models

import "time"

// Draft statuses.
const (
	DraftPending   = "pending"
	DraftCommitted = "committed"
)

// ReceiptDraft holds a parsed receipt awaiting review. Items are stored as
// a JSON document since they stay editable until commit; only committed
// items become first-class Item rows.
type ReceiptDraft struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	// Token is the public identifier handed to clients.
	Token             string `gorm:"size:64;uniqueIndex;not null"`
	FileName          string `gorm:"size:255"`
	MerchantName      string `gorm:"size:255"`
	TransactionDate   time.Time
	DateDefaulted     bool
	Subtotal          *float64
	Tax               *float64
	Total             *float64
	ItemsJSON         string `gorm:"type:text;not null"`
	OverallConfidence float64
	RawText           string `gorm:"type:text"`
	WarningsJSON      string `gorm:"type:text"`
	Status            string `gorm:"size:32;not null;default:pending;index"`
}
