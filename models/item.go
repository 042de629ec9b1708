package models

import "time"

// Item is an inventory record created from a confirmed draft item.
type Item struct {
	ID         uint `gorm:"primaryKey"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Name       string  `gorm:"size:255;not null"`
	Price      float64 `gorm:"not null"`
	Quantity   int     `gorm:"not null;default:1"`
	CategoryID uint    `gorm:"index;not null"`
	LocationID uint    `gorm:"index;not null"`
	// DraftID links back to the receipt draft the item came from (nullable
	// so manually created items fit the same table).
	DraftID *uint `gorm:"index"`
}
