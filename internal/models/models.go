package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User - A person logging in on behalf of a company
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CompanyID    uint      `gorm:"not null;index" json:"company_id"`
	Username     string    `gorm:"uniqueIndex;size:50" json:"username"`
	PasswordHash string    `json:"-"`    // Never return this in JSON
	Role         string    `json:"role"` // 'admin', 'staff'
	CreatedAt    time.Time `json:"created_at"`
}

// Company - The issuer of quotes and invoices, and the owner of the tax settings
// and the two document number sequences.
type Company struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	Name              string          `gorm:"size:200;not null" json:"name"`
	StandardTaxRate   decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"standard_tax_rate"`
	ReducedTaxRate    decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"reduced_tax_rate"`
	PriceIncludesTax  bool            `gorm:"not null;default:false" json:"price_includes_tax"`
	TaxRoundingPlaces int32           `gorm:"not null;default:0" json:"tax_rounding_places"`
	QuoteNumberSeq    int64           `gorm:"not null;default:0" json:"quote_number_seq"`
	InvoiceNumberSeq  int64           `gorm:"not null;default:0" json:"invoice_number_seq"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Client - The customer a document is addressed to
type Client struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CompanyID uint           `gorm:"not null;index" json:"company_id"`
	Name      string         `gorm:"size:200;not null" json:"name"`
	Email     string         `gorm:"size:200" json:"email"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TaxCategory decides which company default rate applies to a line.
type TaxCategory string

const (
	TaxStandard TaxCategory = "STANDARD"
	TaxReduced  TaxCategory = "REDUCED"
	TaxExempt   TaxCategory = "EXEMPT"
	TaxNonTax   TaxCategory = "NON_TAX"
)

// Valid reports whether c is one of the known categories.
func (c TaxCategory) Valid() bool {
	switch c {
	case TaxStandard, TaxReduced, TaxExempt, TaxNonTax:
		return true
	}
	return false
}

// Untaxed reports whether lines in this category never carry tax.
func (c TaxCategory) Untaxed() bool {
	return c == TaxExempt || c == TaxNonTax
}

// StatusDraft is where every document starts.
const StatusDraft = "DRAFT"

// Quote statuses
const (
	QuoteDraft    = StatusDraft
	QuoteSent     = "SENT"
	QuoteAccepted = "ACCEPTED"
	QuoteDeclined = "DECLINED"
)

// Invoice statuses
const (
	InvoiceDraft   = StatusDraft
	InvoiceSent    = "SENT"
	InvoicePaid    = "PAID"
	InvoiceOverdue = "OVERDUE"
)

// DocumentHeader - The columns quotes and invoices share. The lifecycle engine
// reads and writes documents through this shape, whatever the table.
type DocumentHeader struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CompanyID uint           `gorm:"not null;index" json:"company_id"`
	ClientID  uint           `gorm:"not null;index" json:"client_id"`
	Number    string         `gorm:"size:64;not null;index" json:"number"` // DRAFT-<uuid> until first sent
	Status    string         `gorm:"size:20;not null;index" json:"status"`
	IssueDate time.Time      `gorm:"not null" json:"issue_date"`
	Notes     string         `gorm:"type:text" json:"notes"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"` // optimistic lock token
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Quote - An offer sent to a client
type Quote struct {
	DocumentHeader
	ExpiryDate *time.Time `json:"expiry_date"`
	Items      []LineItem `gorm:"-" json:"items"`
}

// Invoice - A bill sent to a client, optionally converted from a quote
type Invoice struct {
	DocumentHeader
	DueDate       *time.Time `gorm:"index" json:"due_date"`
	QuoteID       *uint      `gorm:"index" json:"quote_id"`
	PaymentMethod string     `gorm:"size:50" json:"payment_method"`
	PaymentTerms  string     `gorm:"size:200" json:"payment_terms"`
	PaymentDate   *time.Time `json:"payment_date"`
	Items         []LineItem `gorm:"-" json:"items"`
}

// LineItem - One row of a quote or an invoice. The same shape is stored in
// quote_items and invoice_items; DocumentID points into the owning table.
type LineItem struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	DocumentID     uint             `gorm:"not null;index" json:"document_id"`
	Description    string           `gorm:"type:text;not null" json:"description"`
	Quantity       decimal.Decimal  `gorm:"type:decimal(15,3);not null" json:"quantity"`
	UnitPrice      decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"unit_price"`
	DiscountAmount decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"discount_amount"`
	TaxCategory    TaxCategory      `gorm:"size:20;not null" json:"tax_category"`
	TaxRate        *decimal.Decimal `gorm:"type:decimal(5,2)" json:"tax_rate"` // nil = company default
	Unit           string           `gorm:"size:20" json:"unit"`
	SKU            string           `gorm:"size:64" json:"sku"`
	SortOrder      int              `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"` // optimistic lock token
}

// QuoteItem and InvoiceItem only describe the two item tables to the migrator
// (index names, cascade on the owning document). Reads and writes go through
// LineItem with an explicit table name.
type QuoteItem struct {
	LineItem
	Quote Quote `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}

func (QuoteItem) TableName() string { return "quote_items" }

type InvoiceItem struct {
	LineItem
	Invoice Invoice `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}

func (InvoiceItem) TableName() string { return "invoice_items" }

// ConversionRecord - Append-only audit row written when a quote becomes an invoice
type ConversionRecord struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	CompanyID             uint      `gorm:"not null;index" json:"company_id"`
	QuoteID               uint      `gorm:"not null;index" json:"quote_id"`
	InvoiceID             uint      `gorm:"not null;index" json:"invoice_id"`
	DuplicatedItemsCount  int       `gorm:"not null" json:"duplicated_items_count"`
	TotalSourceItemsCount int       `gorm:"not null" json:"total_source_items_count"`
	CreatedAt             time.Time `json:"created_at"`
}
