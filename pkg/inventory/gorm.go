package inventory

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"homestock/models"
)

// GormCreator persists items with the application's GORM handle. Creation is
// per item so one bad row never sinks the rest of the batch.
type GormCreator struct {
	DB *gorm.DB
}

func (g *GormCreator) CreateItems(ctx context.Context, items []NewItem) ([]CreatedItem, []Failure, error) {
	created := []CreatedItem{}
	failed := []Failure{}
	for i, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			failed = append(failed, Failure{Index: i, Reason: "empty item name"})
			continue
		}
		if it.Price < 0 {
			failed = append(failed, Failure{Index: i, Reason: "negative price"})
			continue
		}
		row := models.Item{
			Name:       it.Name,
			Price:      it.Price,
			Quantity:   it.Quantity,
			CategoryID: it.CategoryID,
			LocationID: it.LocationID,
			DraftID:    it.DraftID,
		}
		if err := g.DB.WithContext(ctx).Create(&row).Error; err != nil {
			failed = append(failed, Failure{Index: i, Reason: fmt.Sprintf("create failed: %v", err)})
			continue
		}
		created = append(created, CreatedItem{Index: i, ID: row.ID, Name: row.Name})
	}
	return created, failed, nil
}
