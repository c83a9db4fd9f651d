package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go-billing-core/internal/logger"
	"go-billing-core/internal/models"
)

// ConversionService turns quotes into invoices.
type ConversionService struct {
	db       *gorm.DB
	invoices *InvoiceService
	log      zerolog.Logger
}

func NewConversionService(db *gorm.DB, invoices *InvoiceService) *ConversionService {
	return &ConversionService{db: db, invoices: invoices, log: logger.WithComponent("conversion")}
}

type ConversionInput struct {
	IssueDate       time.Time  `json:"issue_date" binding:"required"`
	DueDate         *time.Time `json:"due_date"`
	Notes           *string    `json:"notes"`
	SelectedItemIDs []uint     `json:"selected_item_ids"`
}

type ConversionResult struct {
	Invoice               *models.Invoice          `json:"invoice"`
	DuplicatedItemsCount  int                      `json:"duplicated_items_count"`
	TotalSourceItemsCount int                      `json:"total_source_items_count"`
	Record                *models.ConversionRecord `json:"record"`
}

// ConvertQuoteToInvoice creates a DRAFT invoice linked to the quote and copies
// the selected items (all of them when none are selected) in their current
// order. The invoice, its items and the audit record commit together.
func (s *ConversionService) ConvertQuoteToInvoice(ctx context.Context, companyID, quoteID uint, in ConversionInput) (*ConversionResult, error) {
	if err := validateDates("due_date", in.IssueDate, in.DueDate); err != nil {
		return nil, err
	}

	var invoiceID uint
	result := &ConversionResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Load the source quote with its items
		var quote models.Quote
		err := tx.Where("id = ? AND company_id = ?", quoteID, companyID).Take(&quote).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("quote", quoteID)
		}
		if err != nil {
			return fmt.Errorf("load quote %d: %w", quoteID, err)
		}
		source, err := loadItems(tx, QuoteKind, quote.ID)
		if err != nil {
			return err
		}
		if len(source) == 0 {
			return invalid("items", "quote %d has no items to convert", quote.ID)
		}
		result.TotalSourceItemsCount = len(source)

		// 2. Resolve the subset
		selected, err := selectItems(source, in.SelectedItemIDs, quote.ID)
		if err != nil {
			return err
		}

		// 3. Create the invoice
		if err := checkClient(tx, companyID, quote.ClientID); err != nil {
			return err
		}
		notes := quote.Notes
		if in.Notes != nil {
			notes = *in.Notes
		}
		invoice := models.Invoice{
			DocumentHeader: models.DocumentHeader{
				CompanyID: companyID,
				ClientID:  quote.ClientID,
				Number:    PlaceholderNumber(),
				Status:    models.InvoiceDraft,
				IssueDate: in.IssueDate.UTC(),
				Notes:     notes,
			},
			DueDate: utcPtr(in.DueDate),
			QuoteID: &quote.ID,
		}
		if err := tx.Create(&invoice).Error; err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		invoiceID = invoice.ID

		// 4. Duplicate items, re-indexed 0..n-1
		copies := make([]models.LineItem, len(selected))
		for i, src := range selected {
			copies[i] = models.LineItem{
				Description:    src.Description,
				Quantity:       src.Quantity,
				UnitPrice:      src.UnitPrice,
				DiscountAmount: src.DiscountAmount,
				TaxCategory:    src.TaxCategory,
				TaxRate:        src.TaxRate,
				Unit:           src.Unit,
				SKU:            src.SKU,
				SortOrder:      i,
			}
		}
		if _, err := insertItems(tx, InvoiceKind, invoice.ID, copies); err != nil {
			return err
		}
		result.DuplicatedItemsCount = len(copies)

		// 5. Audit trail
		record := models.ConversionRecord{
			CompanyID:             companyID,
			QuoteID:               quote.ID,
			InvoiceID:             invoice.ID,
			DuplicatedItemsCount:  result.DuplicatedItemsCount,
			TotalSourceItemsCount: result.TotalSourceItemsCount,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("record conversion: %w", err)
		}
		result.Record = &record
		return nil
	})
	if err != nil {
		log := logger.For(ctx, s.log)
		log.Debug().Err(err).Uint("quote_id", quoteID).Msg("conversion rejected")
		return nil, err
	}

	result.Invoice, err = s.invoices.Get(ctx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}

	log := logger.For(ctx, s.log)
	log.Info().
		Uint("quote_id", quoteID).
		Uint("invoice_id", invoiceID).
		Int("duplicated", result.DuplicatedItemsCount).
		Int("total", result.TotalSourceItemsCount).
		Msg("quote converted")
	return result, nil
}

// History returns the conversion records of a quote, oldest first.
func (s *ConversionService) History(ctx context.Context, companyID, quoteID uint) ([]models.ConversionRecord, error) {
	records := []models.ConversionRecord{}
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND quote_id = ?", companyID, quoteID).
		Order("created_at, id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load conversions of quote %d: %w", quoteID, err)
	}
	return records, nil
}

// selectItems keeps source order. An empty ids list selects everything.
func selectItems(source []models.LineItem, ids []uint, quoteID uint) ([]models.LineItem, error) {
	if len(ids) == 0 {
		return source, nil
	}

	present := make(map[uint]bool, len(source))
	for _, item := range source {
		present[item.ID] = true
	}
	wanted := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if !present[id] {
			return nil, &ValidationError{
				Field:   "selected_item_ids",
				ItemID:  id,
				Message: fmt.Sprintf("item is not part of quote %d", quoteID),
			}
		}
		wanted[id] = true
	}

	selected := make([]models.LineItem, 0, len(wanted))
	for _, item := range source {
		if wanted[item.ID] {
			selected = append(selected, item)
		}
	}
	if len(selected) == 0 {
		return nil, invalid("selected_item_ids", "no items selected")
	}
	return selected, nil
}
