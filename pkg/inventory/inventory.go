// Package inventory bridges confirmed receipt drafts into the inventory
// CRUD layer. The bridge owns the mapping and the partial-failure
// reporting; persistence itself sits behind the Creator interface.
package inventory

import (
	"context"

	"homestock/pkg/ocr"
)

// NewItem is the shape supplied to the inventory-creation interface.
type NewItem struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	CategoryID uint    `json:"category_id"`
	LocationID uint    `json:"location_id"`
	DraftID    *uint   `json:"draft_id,omitempty"`
}

// CreatedItem reports one successful creation, Index referring to the
// position in the submitted batch.
type CreatedItem struct {
	Index int    `json:"index"`
	ID    uint   `json:"id"`
	Name  string `json:"name"`
}

// Failure reports one item that could not be created.
type Failure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Creator is the external collaborator that persists inventory items.
type Creator interface {
	CreateItems(ctx context.Context, items []NewItem) ([]CreatedItem, []Failure, error)
}

// Target is where committed items land in the inventory tree.
type Target struct {
	CategoryID uint `json:"category_id"`
	LocationID uint `json:"location_id"`
}

// CommitResult enumerates the outcome per item. A partially failed batch is
// reported item by item, never swallowed, so the caller can retry just the
// failed subset.
type CommitResult struct {
	Created []CreatedItem `json:"created"`
	Failed  []Failure     `json:"failed"`
}

// Commit maps the included draft items 1:1 onto the creation interface.
// Excluded items are skipped entirely; indexes in the result refer to the
// included subset in order.
func Commit(ctx context.Context, c Creator, draft ocr.ReviewDraft, target Target, draftID *uint) (CommitResult, error) {
	batch := make([]NewItem, 0, len(draft.Items))
	for _, it := range draft.Items {
		if !it.Include {
			continue
		}
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		batch = append(batch, NewItem{
			Name:       it.Name,
			Price:      it.Price,
			Quantity:   qty,
			CategoryID: target.CategoryID,
			LocationID: target.LocationID,
			DraftID:    draftID,
		})
	}
	if len(batch) == 0 {
		return CommitResult{Created: []CreatedItem{}, Failed: []Failure{}}, nil
	}
	created, failed, err := c.CreateItems(ctx, batch)
	if err != nil {
		return CommitResult{}, err
	}
	if created == nil {
		created = []CreatedItem{}
	}
	if failed == nil {
		failed = []Failure{}
	}
	return CommitResult{Created: created, Failed: failed}, nil
}
