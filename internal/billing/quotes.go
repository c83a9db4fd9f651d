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

// QuoteService runs the quote lifecycle.
type QuoteService struct {
	documents
}

func NewQuoteService(db *gorm.DB, numberPattern string) *QuoteService {
	return &QuoteService{documents: newDocuments(db, QuoteKind, numberPattern)}
}

type QuoteInput struct {
	ClientID   uint              `json:"client_id" binding:"required"`
	IssueDate  time.Time         `json:"issue_date" binding:"required"`
	ExpiryDate *time.Time        `json:"expiry_date"`
	Notes      string            `json:"notes"`
	Items      []models.LineItem `json:"items"`
}

// QuotePatch is a partial header update guarded by ExpectedUpdatedAt.
type QuotePatch struct {
	ClientID          *uint      `json:"client_id"`
	IssueDate         *time.Time `json:"issue_date"`
	ExpiryDate        *time.Time `json:"expiry_date"`
	ClearExpiryDate   bool       `json:"clear_expiry_date"`
	Notes             *string    `json:"notes"`
	ExpectedUpdatedAt time.Time  `json:"expected_updated_at"`
}

// Create stores a new DRAFT quote for a live client of the company.
func (s *QuoteService) Create(ctx context.Context, companyID uint, in QuoteInput) (*models.Quote, error) {
	if err := validateDates("expiry_date", in.IssueDate, in.ExpiryDate); err != nil {
		return nil, err
	}
	q := models.Quote{
		DocumentHeader: models.DocumentHeader{
			CompanyID: companyID,
			ClientID:  in.ClientID,
			IssueDate: in.IssueDate.UTC(),
			Notes:     in.Notes,
		},
		ExpiryDate: utcPtr(in.ExpiryDate),
	}
	if err := s.create(ctx, &q.DocumentHeader, &q, in.Items); err != nil {
		return nil, err
	}

	log := logger.For(ctx, s.log)
	log.Info().Uint("id", q.ID).Uint("client_id", q.ClientID).Int("items", len(in.Items)).Msg("quote created")
	return s.Get(ctx, companyID, q.ID)
}

// Get loads a live quote with its items in display order.
func (s *QuoteService) Get(ctx context.Context, companyID, id uint) (*models.Quote, error) {
	var q models.Quote
	err := s.db.WithContext(ctx).Where("id = ? AND company_id = ?", id, companyID).Take(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("quote", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load quote %d: %w", id, err)
	}
	if q.Items, err = s.items(ctx, q.ID); err != nil {
		return nil, err
	}
	return &q, nil
}

// List returns live quotes without their items.
func (s *QuoteService) List(ctx context.Context, companyID uint, f ListFilter) ([]models.Quote, error) {
	quotes := []models.Quote{}
	err := f.apply(s.db.WithContext(ctx).Where("company_id = ?", companyID)).Find(&quotes).Error
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	return quotes, nil
}

// Update applies patch if the stored quote still carries ExpectedUpdatedAt.
func (s *QuoteService) Update(ctx context.Context, companyID, id uint, patch QuotePatch) (*models.Quote, error) {
	if patch.ExpectedUpdatedAt.IsZero() {
		return nil, invalid("expected_updated_at", "expected_updated_at is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Quote
		err := tx.Where("id = ? AND company_id = ?", id, companyID).Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("quote", id)
		}
		if err != nil {
			return fmt.Errorf("load quote %d: %w", id, err)
		}

		changes := map[string]any{}
		if patch.ClientID != nil && *patch.ClientID != current.ClientID {
			if err := checkClient(tx, companyID, *patch.ClientID); err != nil {
				return err
			}
			changes["client_id"] = *patch.ClientID
		}

		issue, expiry := current.IssueDate, current.ExpiryDate
		if patch.IssueDate != nil {
			issue = patch.IssueDate.UTC()
			changes["issue_date"] = issue
		}
		if patch.ClearExpiryDate {
			expiry = nil
			changes["expiry_date"] = nil
		} else if patch.ExpiryDate != nil {
			expiry = utcPtr(patch.ExpiryDate)
			changes["expiry_date"] = *expiry
		}
		if err := validateDates("expiry_date", issue, expiry); err != nil {
			return err
		}
		if patch.Notes != nil {
			changes["notes"] = *patch.Notes
		}

		return updateHeader(tx, QuoteKind, companyID, id, patch.ExpectedUpdatedAt, changes)
	})
	if err != nil {
		log := logger.For(ctx, s.log)
		log.Debug().Err(err).Uint("id", id).Msg("quote update rejected")
		return nil, err
	}
	return s.Get(ctx, companyID, id)
}

// TransitionStatus moves the quote to in.Status, minting its number on the
// first send.
func (s *QuoteService) TransitionStatus(ctx context.Context, companyID, id uint, in TransitionInput) (*models.Quote, error) {
	if err := s.transition(ctx, companyID, id, in); err != nil {
		return nil, err
	}
	return s.Get(ctx, companyID, id)
}

func (s *QuoteService) Delete(ctx context.Context, companyID, id uint) error {
	return s.softDelete(ctx, companyID, id)
}

// Totals computes the quote's figures with the company's tax settings.
func (s *QuoteService) Totals(ctx context.Context, companyID uint, q *models.Quote) (Totals, error) {
	return s.totals(ctx, companyID, q.Items)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
