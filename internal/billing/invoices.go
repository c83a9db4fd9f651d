package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"go-billing-core/internal/logger"
	"go-billing-core/internal/models"
)

// InvoiceService runs the invoice lifecycle.
type InvoiceService struct {
	documents
}

func NewInvoiceService(db *gorm.DB, numberPattern string) *InvoiceService {
	return &InvoiceService{documents: newDocuments(db, InvoiceKind, numberPattern)}
}

type InvoiceInput struct {
	ClientID      uint              `json:"client_id" binding:"required"`
	QuoteID       *uint             `json:"quote_id"`
	IssueDate     time.Time         `json:"issue_date" binding:"required"`
	DueDate       *time.Time        `json:"due_date"`
	Notes         string            `json:"notes"`
	PaymentMethod string            `json:"payment_method"`
	PaymentTerms  string            `json:"payment_terms"`
	Items         []models.LineItem `json:"items"`
}

// InvoicePatch is a partial header update guarded by ExpectedUpdatedAt.
// Status and payment date only change through TransitionStatus.
type InvoicePatch struct {
	ClientID          *uint      `json:"client_id"`
	IssueDate         *time.Time `json:"issue_date"`
	DueDate           *time.Time `json:"due_date"`
	ClearDueDate      bool       `json:"clear_due_date"`
	Notes             *string    `json:"notes"`
	PaymentMethod     *string    `json:"payment_method"`
	PaymentTerms      *string    `json:"payment_terms"`
	ExpectedUpdatedAt time.Time  `json:"expected_updated_at"`
}

// Create stores a new DRAFT invoice. A QuoteID must name a live quote of the
// same company.
func (s *InvoiceService) Create(ctx context.Context, companyID uint, in InvoiceInput) (*models.Invoice, error) {
	if err := validateDates("due_date", in.IssueDate, in.DueDate); err != nil {
		return nil, err
	}
	if in.QuoteID != nil {
		if _, err := loadHeader(s.db.WithContext(ctx), QuoteKind, companyID, *in.QuoteID, false); err != nil {
			return nil, err
		}
	}

	inv := models.Invoice{
		DocumentHeader: models.DocumentHeader{
			CompanyID: companyID,
			ClientID:  in.ClientID,
			IssueDate: in.IssueDate.UTC(),
			Notes:     in.Notes,
		},
		DueDate:       utcPtr(in.DueDate),
		QuoteID:       in.QuoteID,
		PaymentMethod: in.PaymentMethod,
		PaymentTerms:  in.PaymentTerms,
	}
	if err := s.create(ctx, &inv.DocumentHeader, &inv, in.Items); err != nil {
		return nil, err
	}

	log := logger.For(ctx, s.log)
	log.Info().Uint("id", inv.ID).Uint("client_id", inv.ClientID).Int("items", len(in.Items)).Msg("invoice created")
	return s.Get(ctx, companyID, inv.ID)
}

// Get loads a live invoice with its items in display order.
func (s *InvoiceService) Get(ctx context.Context, companyID, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Where("id = ? AND company_id = ?", id, companyID).Take(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("invoice", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load invoice %d: %w", id, err)
	}
	if inv.Items, err = s.items(ctx, inv.ID); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *InvoiceService) List(ctx context.Context, companyID uint, f ListFilter) ([]models.Invoice, error) {
	invoices := []models.Invoice{}
	err := f.apply(s.db.WithContext(ctx).Where("company_id = ?", companyID)).Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

// Update applies patch if the stored invoice still carries ExpectedUpdatedAt.
func (s *InvoiceService) Update(ctx context.Context, companyID, id uint, patch InvoicePatch) (*models.Invoice, error) {
	if patch.ExpectedUpdatedAt.IsZero() {
		return nil, invalid("expected_updated_at", "expected_updated_at is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Invoice
		err := tx.Where("id = ? AND company_id = ?", id, companyID).Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("invoice", id)
		}
		if err != nil {
			return fmt.Errorf("load invoice %d: %w", id, err)
		}

		changes := map[string]any{}
		if patch.ClientID != nil && *patch.ClientID != current.ClientID {
			if err := checkClient(tx, companyID, *patch.ClientID); err != nil {
				return err
			}
			changes["client_id"] = *patch.ClientID
		}

		issue, due := current.IssueDate, current.DueDate
		if patch.IssueDate != nil {
			issue = patch.IssueDate.UTC()
			changes["issue_date"] = issue
		}
		if patch.ClearDueDate {
			due = nil
			changes["due_date"] = nil
		} else if patch.DueDate != nil {
			due = utcPtr(patch.DueDate)
			changes["due_date"] = *due
		}
		if err := validateDates("due_date", issue, due); err != nil {
			return err
		}
		if patch.Notes != nil {
			changes["notes"] = *patch.Notes
		}
		if patch.PaymentMethod != nil {
			changes["payment_method"] = *patch.PaymentMethod
		}
		if patch.PaymentTerms != nil {
			changes["payment_terms"] = *patch.PaymentTerms
		}

		return updateHeader(tx, InvoiceKind, companyID, id, patch.ExpectedUpdatedAt, changes)
	})
	if err != nil {
		log := logger.For(ctx, s.log)
		log.Debug().Err(err).Uint("id", id).Msg("invoice update rejected")
		return nil, err
	}
	return s.Get(ctx, companyID, id)
}

// TransitionStatus moves the invoice to in.Status. Payment from OVERDUE needs
// an explicit date; payment from SENT defaults to now.
func (s *InvoiceService) TransitionStatus(ctx context.Context, companyID, id uint, in TransitionInput) (*models.Invoice, error) {
	if err := s.transition(ctx, companyID, id, in); err != nil {
		return nil, err
	}
	return s.Get(ctx, companyID, id)
}

func (s *InvoiceService) Delete(ctx context.Context, companyID, id uint) error {
	return s.softDelete(ctx, companyID, id)
}

func (s *InvoiceService) Totals(ctx context.Context, companyID uint, inv *models.Invoice) (Totals, error) {
	return s.totals(ctx, companyID, inv.Items)
}

// AllCompanies makes MarkOverdue sweep every company.
const AllCompanies uint = 0

// MarkOverdue flips every unpaid SENT invoice of companyID whose due date is
// before now to OVERDUE and returns how many changed.
func (s *InvoiceService) MarkOverdue(ctx context.Context, companyID uint, now time.Time) (int64, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("status = ? AND due_date < ? AND payment_date IS NULL", models.InvoiceSent, now.UTC())
	if companyID != AllCompanies {
		q = q.Where("company_id = ?", companyID)
	}
	res := q.Updates(map[string]any{
		"status":     models.InvoiceOverdue,
		"updated_at": s.db.NowFunc(),
	})
	if res.Error != nil {
		return 0, fmt.Errorf("mark overdue invoices: %w", res.Error)
	}

	log := logger.For(ctx, s.log)
	log.Info().Uint("company_id", companyID).Int64("count", res.RowsAffected).Time("cutoff", now).Msg("overdue sweep finished")
	return res.RowsAffected, nil
}
