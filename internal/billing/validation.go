package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"go-billing-core/internal/models"
)

// Storage scale of the item columns. Values are checked against it before
// any invariant so the stored row is exactly the validated one.
const (
	quantityPlaces = 3
	moneyPlaces    = 2
	ratePlaces     = 2
)

var (
	maxQuantity = decimal.New(1, 12) // decimal(15,3)
	maxMoney    = decimal.New(1, 13) // decimal(15,2)
	maxRate     = decimal.RequireFromString("999.99")
)

// fits reports whether d has at most places fractional digits and stays below limit.
func fits(d decimal.Decimal, places int32, limit decimal.Decimal) bool {
	return d.Equal(d.Truncate(places)) && d.Abs().LessThan(limit)
}

// ValidateItem checks the invariants every stored line item must satisfy.
func ValidateItem(item models.LineItem) error {
	if strings.TrimSpace(item.Description) == "" {
		return invalid("description", "description is required")
	}
	if !item.Quantity.IsPositive() {
		return invalid("quantity", "quantity must be greater than 0")
	}
	if !fits(item.Quantity, quantityPlaces, maxQuantity) {
		return invalid("quantity", "quantity allows at most %d decimal places and must be below %s", quantityPlaces, maxQuantity)
	}
	if item.UnitPrice.IsNegative() {
		return invalid("unit_price", "unit price cannot be negative")
	}
	if !fits(item.UnitPrice, moneyPlaces, maxMoney) {
		return invalid("unit_price", "unit price allows at most %d decimal places and must be below %s", moneyPlaces, maxMoney)
	}
	if item.DiscountAmount.IsNegative() {
		return invalid("discount_amount", "discount cannot be negative")
	}
	if !fits(item.DiscountAmount, moneyPlaces, maxMoney) {
		return invalid("discount_amount", "discount allows at most %d decimal places and must be below %s", moneyPlaces, maxMoney)
	}
	gross := item.UnitPrice.Mul(item.Quantity)
	if item.DiscountAmount.GreaterThan(gross) {
		return invalid("discount_amount", "discount %s exceeds line amount %s",
			item.DiscountAmount.String(), gross.String())
	}
	if !item.TaxCategory.Valid() {
		return invalid("tax_category", "unknown tax category %q", item.TaxCategory)
	}
	if item.TaxRate != nil {
		if item.TaxRate.IsNegative() {
			return invalid("tax_rate", "tax rate cannot be negative")
		}
		if !item.TaxRate.Equal(item.TaxRate.Truncate(ratePlaces)) || item.TaxRate.GreaterThan(maxRate) {
			return invalid("tax_rate", "tax rate allows at most %d decimal places and cannot exceed %s", ratePlaces, maxRate)
		}
		if item.TaxCategory.Untaxed() && !item.TaxRate.IsZero() {
			return invalid("tax_rate", "%s items cannot carry a tax rate", item.TaxCategory)
		}
	}
	return nil
}

// ValidateItems validates a list, tagging the first failure with its 1-indexed row.
func ValidateItems(items []models.LineItem) error {
	for i, item := range items {
		if err := ValidateItem(item); err != nil {
			return atRow(err, i)
		}
	}
	return nil
}

// validateDates rejects a secondary date (expiry, due) before the issue date.
func validateDates(field string, issue time.Time, secondary *time.Time) error {
	if issue.IsZero() {
		return invalid("issue_date", "issue date is required")
	}
	if secondary != nil && dateOnly(*secondary).Before(dateOnly(issue)) {
		return invalid(field, "%s cannot be before the issue date", strings.ReplaceAll(field, "_", " "))
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
