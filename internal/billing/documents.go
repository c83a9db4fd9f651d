package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go-billing-core/internal/logger"
	"go-billing-core/internal/models"
)

// documents is the lifecycle engine shared by QuoteService and InvoiceService.
type documents struct {
	db      *gorm.DB
	kind    Kind
	pattern string
	log     zerolog.Logger
}

func newDocuments(db *gorm.DB, kind Kind, pattern string) documents {
	return documents{
		db:      db,
		kind:    kind,
		pattern: pattern,
		log:     logger.WithComponent(kind.Name + "s"),
	}
}

// ListFilter narrows a document listing. Zero values mean "any".
type ListFilter struct {
	Status   string
	ClientID uint
	Limit    int
	Offset   int
}

func (f ListFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return q.Order("issue_date DESC, id DESC").Limit(limit).Offset(f.Offset)
}

// TransitionInput carries the target status and, for payment, the date paid.
type TransitionInput struct {
	Status      string     `json:"status" binding:"required"`
	PaymentDate *time.Time `json:"payment_date"`
}

func loadHeader(tx *gorm.DB, k Kind, companyID, id uint, lock bool) (*models.DocumentHeader, error) {
	var h models.DocumentHeader
	q := tx.Table(k.docTable)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Where("id = ? AND company_id = ?", id, companyID).Take(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(k.Name, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %d: %w", k.Name, id, err)
	}
	return &h, nil
}

func loadItems(tx *gorm.DB, k Kind, documentID uint) ([]models.LineItem, error) {
	items := []models.LineItem{}
	err := tx.Table(k.itemTable).
		Where("document_id = ?", documentID).
		Order("sort_order, id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("load %s items: %w", k.Name, err)
	}
	return items, nil
}

func checkClient(tx *gorm.DB, companyID, clientID uint) error {
	err := tx.Where("id = ? AND company_id = ?", clientID, companyID).Take(&models.Client{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("client", clientID)
	}
	if err != nil {
		return fmt.Errorf("load client %d: %w", clientID, err)
	}
	return nil
}

// nextToken returns the updated_at value for a row whose current token is
// prev. It always moves forward, even inside one clock tick.
func nextToken(tx *gorm.DB, prev time.Time) time.Time {
	now := tx.NowFunc()
	if !now.After(prev) {
		now = prev.UTC().Add(time.Millisecond)
	}
	return now
}

// nextSequence increments the company counter for k and returns the new value.
// The UPDATE holds the row lock until commit, so two finalizations never read
// the same value.
func nextSequence(tx *gorm.DB, k Kind, companyID uint) (int64, error) {
	res := tx.Model(&models.Company{}).
		Where("id = ?", companyID).
		UpdateColumn(k.seqColumn, gorm.Expr(k.seqColumn+" + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("increment %s: %w", k.seqColumn, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, notFound("company", companyID)
	}

	var seq int64
	err := tx.Model(&models.Company{}).
		Select(k.seqColumn).
		Where("id = ?", companyID).
		Scan(&seq).Error
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", k.seqColumn, err)
	}
	return seq, nil
}

// updateHeader applies changes only if the row still carries expected as its
// token. Zero rows affected is a conflict.
func updateHeader(tx *gorm.DB, k Kind, companyID, id uint, expected time.Time, changes map[string]any) error {
	changes["updated_at"] = nextToken(tx, expected)
	res := tx.Table(k.docTable).
		Where("id = ? AND company_id = ? AND updated_at = ? AND deleted_at IS NULL", id, companyID, expected.UTC()).
		Updates(changes)
	if res.Error != nil {
		return fmt.Errorf("update %s %d: %w", k.Name, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &ConflictError{Entity: k.Name, ID: id}
	}
	return nil
}

func (d documents) lookupClient(ctx context.Context, companyID, clientID uint) error {
	return checkClient(d.db.WithContext(ctx), companyID, clientID)
}

// create inserts doc (a *models.Quote or *models.Invoice) in DRAFT with a
// placeholder number, then its initial items.
func (d documents) create(ctx context.Context, header *models.DocumentHeader, doc any, items []models.LineItem) error {
	if err := ValidateItems(items); err != nil {
		return err
	}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkClient(tx, header.CompanyID, header.ClientID); err != nil {
			return err
		}
		header.Status = models.StatusDraft
		header.Number = PlaceholderNumber()
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("create %s: %w", d.kind.Name, err)
		}
		_, err := insertItems(tx, d.kind, header.ID, items)
		return err
	})
}

// transition moves a document along its policy table inside one transaction.
// Nothing is written unless every precondition holds.
func (d documents) transition(ctx context.Context, companyID, id uint, in TransitionInput) error {
	log := logger.For(ctx, d.log)

	var from, number string
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Lock the document and load its items
		h, err := loadHeader(tx, d.kind, companyID, id, true)
		if err != nil {
			return err
		}
		from = h.Status
		items, err := loadItems(tx, d.kind, h.ID)
		if err != nil {
			return err
		}

		// 2. Consult the policy
		rule, err := d.kind.policy.Check(h.Status, in.Status)
		if err != nil {
			return err
		}

		// 3. Items must exist and be valid
		if rule.RequiresItems {
			if len(items) == 0 {
				return &ValidationError{Field: "items", Message: "items required"}
			}
			for i, item := range items {
				if err := ValidateItem(item); err != nil {
					return atItem(atRow(err, i), item.ID)
				}
			}
		}

		changes := map[string]any{"status": in.Status}

		// 4. Payment date
		if d.kind.Name == InvoiceKind.Name && in.Status == models.InvoicePaid {
			paid := tx.NowFunc()
			switch {
			case in.PaymentDate != nil:
				if dateOnly(*in.PaymentDate).Before(dateOnly(h.IssueDate)) {
					return invalid("payment_date", "payment date cannot be before the issue date")
				}
				paid = in.PaymentDate.UTC()
			case rule.RequiresPaymentDate:
				return invalid("payment_date", "payment date is required")
			}
			changes["payment_date"] = paid
		}

		// 5. Mint the permanent number
		if rule.RequiresNumber {
			seq, err := nextSequence(tx, d.kind, companyID)
			if err != nil {
				return err
			}
			number = FormatNumber(d.pattern, seq)
			changes["number"] = number
		}

		// 6. Persist, guarded on the status we validated against
		changes["updated_at"] = nextToken(tx, h.UpdatedAt)
		res := tx.Table(d.kind.docTable).
			Where("id = ? AND status = ? AND deleted_at IS NULL", h.ID, h.Status).
			Updates(changes)
		if res.Error != nil {
			return fmt.Errorf("update %s %d: %w", d.kind.Name, id, res.Error)
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Entity: d.kind.Name, ID: id}
		}
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Uint("id", id).Str("to", in.Status).Msg("status transition rejected")
		return err
	}

	ev := log.Info().Uint("id", id).Str("from", from).Str("to", in.Status)
	if number != "" {
		ev = ev.Str("number", number)
	}
	ev.Msg("status changed")
	return nil
}

func (d documents) softDelete(ctx context.Context, companyID, id uint) error {
	res := d.db.WithContext(ctx).
		Table(d.kind.docTable).
		Where("id = ? AND company_id = ?", id, companyID).
		Delete(&models.DocumentHeader{})
	if res.Error != nil {
		return fmt.Errorf("delete %s %d: %w", d.kind.Name, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(d.kind.Name, id)
	}
	log := logger.For(ctx, d.log)
	log.Info().Uint("id", id).Msg("deleted")
	return nil
}

func (d documents) items(ctx context.Context, id uint) ([]models.LineItem, error) {
	return loadItems(d.db.WithContext(ctx), d.kind, id)
}

// totals computes the figures for a stored document with its company's settings.
func (d documents) totals(ctx context.Context, companyID uint, items []models.LineItem) (Totals, error) {
	var company models.Company
	err := d.db.WithContext(ctx).Take(&company, companyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Totals{}, notFound("company", companyID)
	}
	if err != nil {
		return Totals{}, err
	}
	return ComputeTotals(items, SettingsFor(company)), nil
}
