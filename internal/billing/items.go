package billing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"go-billing-core/internal/logger"
	"go-billing-core/internal/models"
)

// LineItemService mutates the items of quotes and invoices. Every mutation
// locks the parent document, runs in one transaction and leaves sort orders
// dense (0..n-1).
type LineItemService struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewLineItemService(db *gorm.DB) *LineItemService {
	return &LineItemService{db: db, log: logger.WithComponent("items")}
}

// ItemPatch is a partial update. Nil fields keep the stored value.
type ItemPatch struct {
	Description       *string             `json:"description"`
	Quantity          *decimal.Decimal    `json:"quantity"`
	UnitPrice         *decimal.Decimal    `json:"unit_price"`
	DiscountAmount    *decimal.Decimal    `json:"discount_amount"`
	TaxCategory       *models.TaxCategory `json:"tax_category"`
	TaxRate           *decimal.Decimal    `json:"tax_rate"`
	ClearTaxRate      bool                `json:"clear_tax_rate"`
	Unit              *string             `json:"unit"`
	SKU               *string             `json:"sku"`
	SortOrder         *int                `json:"sort_order"`
	ExpectedUpdatedAt time.Time           `json:"expected_updated_at"`
}

// apply returns item with the patch laid over it.
func (p ItemPatch) apply(item models.LineItem) models.LineItem {
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	if p.UnitPrice != nil {
		item.UnitPrice = *p.UnitPrice
	}
	if p.DiscountAmount != nil {
		item.DiscountAmount = *p.DiscountAmount
	}
	if p.TaxCategory != nil {
		item.TaxCategory = *p.TaxCategory
	}
	if p.ClearTaxRate {
		item.TaxRate = nil
	} else if p.TaxRate != nil {
		rate := *p.TaxRate
		item.TaxRate = &rate
	}
	if p.Unit != nil {
		item.Unit = *p.Unit
	}
	if p.SKU != nil {
		item.SKU = *p.SKU
	}
	if p.SortOrder != nil {
		item.SortOrder = *p.SortOrder
	}
	return item
}

// Bulk actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// BulkOp is one entry of a BulkProcess batch. Item is read for create, Patch
// for update, ItemID for update and delete.
type BulkOp struct {
	Action string          `json:"action"`
	ItemID uint            `json:"item_id"`
	Item   models.LineItem `json:"item"`
	Patch  ItemPatch       `json:"patch"`
}

type BulkResult struct {
	Created int               `json:"created"`
	Updated int               `json:"updated"`
	Deleted int               `json:"deleted"`
	Items   []models.LineItem `json:"items"`
}

// Move sets one item's sort order, guarded by its token.
type Move struct {
	ItemID            uint      `json:"item_id"`
	SortOrder         int       `json:"sort_order"`
	ExpectedUpdatedAt time.Time `json:"expected_updated_at"`
}

// List returns the items of a live document in display order.
func (s *LineItemService) List(ctx context.Context, k Kind, companyID, documentID uint) ([]models.LineItem, error) {
	db := s.db.WithContext(ctx)
	if _, err := loadHeader(db, k, companyID, documentID, false); err != nil {
		return nil, err
	}
	return loadItems(db, k, documentID)
}

// Create adds one item. A zero SortOrder appends it after the last item; a
// positive one inserts it at that index, ahead of the row already there.
func (s *LineItemService) Create(ctx context.Context, k Kind, companyID, documentID uint, item models.LineItem) (*models.LineItem, error) {
	if err := ValidateItem(item); err != nil {
		return nil, err
	}

	var created models.LineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadHeader(tx, k, companyID, documentID, true); err != nil {
			return err
		}
		next, err := nextSortOrder(tx, k, documentID)
		if err != nil {
			return err
		}
		if item.SortOrder <= 0 {
			item.SortOrder = next
		}
		if err := createItem(tx, k, documentID, &item); err != nil {
			return err
		}
		if err := renormalizeAt(tx, k, documentID, item.ID, item.SortOrder); err != nil {
			return err
		}
		return reloadItem(tx, k, documentID, item.ID, &created)
	})
	if err != nil {
		return nil, err
	}

	log := logger.For(ctx, s.log)
	log.Info().Str("kind", k.Name).Uint("document_id", documentID).Uint("item_id", created.ID).Msg("item created")
	return &created, nil
}

// Update applies a partial patch. The invariants are checked against the
// merged item, so a patch cannot break them by omission. A new SortOrder
// moves the item to that index.
func (s *LineItemService) Update(ctx context.Context, k Kind, companyID, documentID, itemID uint, patch ItemPatch) (*models.LineItem, error) {
	var updated models.LineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadHeader(tx, k, companyID, documentID, true); err != nil {
			return err
		}
		reorder, err := updateItem(tx, k, documentID, itemID, patch)
		if err != nil {
			return err
		}
		if reorder {
			if err := renormalizeAt(tx, k, documentID, itemID, *patch.SortOrder); err != nil {
				return err
			}
		}
		return reloadItem(tx, k, documentID, itemID, &updated)
	})
	if err != nil {
		return nil, err
	}

	log := logger.For(ctx, s.log)
	log.Info().Str("kind", k.Name).Uint("document_id", documentID).Uint("item_id", itemID).Msg("item updated")
	return &updated, nil
}

// Delete removes an item for good. Items are not soft-deleted.
func (s *LineItemService) Delete(ctx context.Context, k Kind, companyID, documentID, itemID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadHeader(tx, k, companyID, documentID, true); err != nil {
			return err
		}
		if err := deleteItem(tx, k, documentID, itemID); err != nil {
			return err
		}
		return renormalize(tx, k, documentID)
	})
	if err != nil {
		return err
	}

	log := logger.For(ctx, s.log)
	log.Info().Str("kind", k.Name).Uint("document_id", documentID).Uint("item_id", itemID).Msg("item deleted")
	return nil
}

// BulkProcess applies ops in order inside one transaction. The first failing
// op aborts the batch; its error carries the 1-indexed row.
func (s *LineItemService) BulkProcess(ctx context.Context, k Kind, companyID, documentID uint, ops []BulkOp) (*BulkResult, error) {
	result := &BulkResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadHeader(tx, k, companyID, documentID, true); err != nil {
			return err
		}
		next, err := nextSortOrder(tx, k, documentID)
		if err != nil {
			return err
		}

		for i, op := range ops {
			switch op.Action {
			case ActionCreate:
				item := op.Item
				if err := ValidateItem(item); err != nil {
					return atRow(err, i)
				}
				if item.SortOrder <= 0 {
					item.SortOrder = next
					next++
				}
				if err := createItem(tx, k, documentID, &item); err != nil {
					return atRow(err, i)
				}
				result.Created++
			case ActionUpdate:
				if _, err := updateItem(tx, k, documentID, op.ItemID, op.Patch); err != nil {
					return atRow(err, i)
				}
				result.Updated++
			case ActionDelete:
				if err := deleteItem(tx, k, documentID, op.ItemID); err != nil {
					return atRow(err, i)
				}
				result.Deleted++
			default:
				return atRow(invalid("action", "unknown action %q", op.Action), i)
			}
		}

		if err := renormalize(tx, k, documentID); err != nil {
			return err
		}
		result.Items, err = loadItems(tx, k, documentID)
		return err
	})
	if err != nil {
		log := logger.For(ctx, s.log)
		log.Debug().Err(err).Str("kind", k.Name).Uint("document_id", documentID).Msg("bulk item batch rejected")
		return nil, err
	}

	log := logger.For(ctx, s.log)
	log.Info().Str("kind", k.Name).Uint("document_id", documentID).
		Int("created", result.Created).Int("updated", result.Updated).Int("deleted", result.Deleted).
		Msg("bulk items processed")
	return result, nil
}

// ReplaceAll swaps the whole item list of a document. Items without a sort
// order take their array position.
func (s *LineItemService) ReplaceAll(ctx context.Context, k Kind, companyID, documentID uint, items []models.LineItem) ([]models.LineItem, error) {
	if err := ValidateItems(items); err != nil {
		return nil, err
	}

	var stored []models.LineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadHeader(tx, k, companyID, documentID, true); err != nil {
			return err
		}
		err := tx.Table(k.itemTable).Where("document_id = ?", documentID).Delete(&models.LineItem{}).Error
		if err != nil {
			return fmt.Errorf("clear %s items: %w", k.Name, err)
		}
		if _, err := insertItems(tx, k, documentID, items); err != nil {
			return err
		}
		if err := renormalize(tx, k, documentID); err != nil {
			return err
		}
		stored, err = loadItems(tx, k, documentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log := logger.For(ctx, s.log)
	log.Info().Str("kind", k.Name).Uint("document_id", documentID).Int("count", len(stored)).Msg("items replaced")
	return stored, nil
}

// Reorder applies every move or none. All stale or unknown items are reported
// together in one ConflictError.
func (s *LineItemService) Reorder(ctx context.Context, k Kind, companyID, documentID uint, moves []Move) ([]models.LineItem, error) {
	for i, m := range moves {
		if m.SortOrder < 0 {
			return nil, atRow(invalid("sort_order", "sort order cannot be negative"), i)
		}
	}

	var stored []models.LineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadHeader(tx, k, companyID, documentID, true); err != nil {
			return err
		}

		var conflicts []uint
		for _, m := range moves {
			res := tx.Table(k.itemTable).
				Where("id = ? AND document_id = ? AND updated_at = ?", m.ItemID, documentID, m.ExpectedUpdatedAt.UTC()).
				Updates(map[string]any{
					"sort_order": m.SortOrder,
					"updated_at": nextToken(tx, m.ExpectedUpdatedAt),
				})
			if res.Error != nil {
				return fmt.Errorf("move %s item %d: %w", k.Name, m.ItemID, res.Error)
			}
			if res.RowsAffected != 1 {
				conflicts = append(conflicts, m.ItemID)
			}
		}
		if len(conflicts) > 0 {
			return &ConflictError{Entity: k.Name + " items", ItemIDs: conflicts}
		}

		if err := renormalize(tx, k, documentID); err != nil {
			return err
		}
		var err error
		stored, err = loadItems(tx, k, documentID)
		return err
	})
	if err != nil {
		log := logger.For(ctx, s.log)
		log.Debug().Err(err).Str("kind", k.Name).Uint("document_id", documentID).Msg("reorder rejected")
		return nil, err
	}
	return stored, nil
}

func nextSortOrder(tx *gorm.DB, k Kind, documentID uint) (int, error) {
	// COALESCE gives -1 for an empty document, so the first item lands on 0
	var last int
	err := tx.Table(k.itemTable).
		Select("COALESCE(MAX(sort_order), -1)").
		Where("document_id = ?", documentID).
		Scan(&last).Error
	if err != nil {
		return 0, fmt.Errorf("read %s sort order: %w", k.Name, err)
	}
	return last + 1, nil
}

func createItem(tx *gorm.DB, k Kind, documentID uint, item *models.LineItem) error {
	item.ID = 0
	item.DocumentID = documentID
	if err := tx.Table(k.itemTable).Create(item).Error; err != nil {
		return fmt.Errorf("create %s item: %w", k.Name, err)
	}
	return nil
}

// insertItems stores items under documentID; unset sort orders take the
// array position.
func insertItems(tx *gorm.DB, k Kind, documentID uint, items []models.LineItem) ([]models.LineItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	rows := make([]models.LineItem, len(items))
	for i, item := range items {
		item.ID = 0
		item.DocumentID = documentID
		if item.SortOrder <= 0 {
			item.SortOrder = i
		}
		rows[i] = item
	}
	if err := tx.Table(k.itemTable).Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("insert %s items: %w", k.Name, err)
	}
	return rows, nil
}

func findItem(tx *gorm.DB, k Kind, documentID, itemID uint) (*models.LineItem, error) {
	var item models.LineItem
	err := tx.Table(k.itemTable).Where("id = ? AND document_id = ?", itemID, documentID).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(k.Name+" item", itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s item %d: %w", k.Name, itemID, err)
	}
	return &item, nil
}

func reloadItem(tx *gorm.DB, k Kind, documentID, itemID uint, dst *models.LineItem) error {
	item, err := findItem(tx, k, documentID, itemID)
	if err != nil {
		return err
	}
	*dst = *item
	return nil
}

// updateItem applies patch under the optimistic lock and reports whether the
// sort order changed.
func updateItem(tx *gorm.DB, k Kind, documentID, itemID uint, patch ItemPatch) (bool, error) {
	if patch.ExpectedUpdatedAt.IsZero() {
		return false, &ValidationError{Field: "expected_updated_at", ItemID: itemID, Message: "expected_updated_at is required"}
	}
	current, err := findItem(tx, k, documentID, itemID)
	if err != nil {
		return false, err
	}
	if !current.UpdatedAt.Equal(patch.ExpectedUpdatedAt) {
		return false, &ConflictError{Entity: k.Name + " item", ID: itemID, ItemIDs: []uint{itemID}}
	}

	merged := patch.apply(*current)
	if err := ValidateItem(merged); err != nil {
		return false, atItem(err, itemID)
	}
	if merged.SortOrder < 0 {
		return false, &ValidationError{Field: "sort_order", ItemID: itemID, Message: "sort order cannot be negative"}
	}

	res := tx.Table(k.itemTable).
		Where("id = ? AND document_id = ? AND updated_at = ?", itemID, documentID, patch.ExpectedUpdatedAt.UTC()).
		Updates(map[string]any{
			"description":     merged.Description,
			"quantity":        merged.Quantity,
			"unit_price":      merged.UnitPrice,
			"discount_amount": merged.DiscountAmount,
			"tax_category":    merged.TaxCategory,
			"tax_rate":        merged.TaxRate,
			"unit":            merged.Unit,
			"sku":             merged.SKU,
			"sort_order":      merged.SortOrder,
			"updated_at":      nextToken(tx, current.UpdatedAt),
		})
	if res.Error != nil {
		return false, fmt.Errorf("update %s item %d: %w", k.Name, itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, &ConflictError{Entity: k.Name + " item", ID: itemID, ItemIDs: []uint{itemID}}
	}
	return merged.SortOrder != current.SortOrder, nil
}

func deleteItem(tx *gorm.DB, k Kind, documentID, itemID uint) error {
	res := tx.Table(k.itemTable).Where("id = ? AND document_id = ?", itemID, documentID).Delete(&models.LineItem{})
	if res.Error != nil {
		return fmt.Errorf("delete %s item %d: %w", k.Name, itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(k.Name+" item", itemID)
	}
	return nil
}

// renormalize rewrites sort orders to 0..n-1 in display order, touching only
// the rows whose position changed.
func renormalize(tx *gorm.DB, k Kind, documentID uint) error {
	items, err := loadItems(tx, k, documentID)
	if err != nil {
		return err
	}
	return writePositions(tx, k, items)
}

// renormalizeAt is renormalize with itemID placed at index pos. Positions past
// the end append.
func renormalizeAt(tx *gorm.DB, k Kind, documentID, itemID uint, pos int) error {
	items, err := loadItems(tx, k, documentID)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(items, func(item models.LineItem) bool { return item.ID == itemID })
	if idx < 0 {
		return notFound(k.Name+" item", itemID)
	}
	placed := items[idx]
	items = slices.Delete(items, idx, idx+1)
	items = slices.Insert(items, min(max(pos, 0), len(items)), placed)
	return writePositions(tx, k, items)
}

func writePositions(tx *gorm.DB, k Kind, items []models.LineItem) error {
	for i, item := range items {
		if item.SortOrder == i {
			continue
		}
		err := tx.Table(k.itemTable).
			Where("id = ?", item.ID).
			Updates(map[string]any{
				"sort_order": i,
				"updated_at": nextToken(tx, item.UpdatedAt),
			}).Error
		if err != nil {
			return fmt.Errorf("renumber %s item %d: %w", k.Name, item.ID, err)
		}
	}
	return nil
}
