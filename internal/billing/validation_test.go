package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-billing-core/internal/models"
)

func TestValidateItemDiscountBoundary(t *testing.T) {
	// gross = 3 * 33.33 = 99.99
	atLimit := line("3", "33.33", "99.99", models.TaxStandard)
	assert.NoError(t, ValidateItem(atLimit))

	overByCent := line("3", "33.33", "100.00", models.TaxStandard)
	err := ValidateItem(overByCent)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "discount_amount", ve.Field)

	fractional := line("0.5", "10", "5", models.TaxStandard)
	assert.NoError(t, ValidateItem(fractional))
	assert.Error(t, ValidateItem(line("0.5", "10", "5.01", models.TaxStandard)))
}

func TestValidateItemRules(t *testing.T) {
	withRate := func(item models.LineItem, r string) models.LineItem {
		item.TaxRate = rate(r)
		return item
	}
	blank := line("1", "10", "0", models.TaxStandard)
	blank.Description = "  "

	tests := []struct {
		name  string
		item  models.LineItem
		field string
	}{
		{"blank description", blank, "description"},
		{"zero quantity", line("0", "10", "0", models.TaxStandard), "quantity"},
		{"negative quantity", line("-2", "10", "0", models.TaxStandard), "quantity"},
		{"negative price", line("1", "-0.01", "0", models.TaxStandard), "unit_price"},
		{"negative discount", line("1", "10", "-1", models.TaxStandard), "discount_amount"},
		{"unknown category", line("1", "10", "0", "LUXURY"), "tax_category"},
		{"negative rate", withRate(line("1", "10", "0", models.TaxStandard), "-1"), "tax_rate"},
		{"exempt with rate", withRate(line("1", "10", "0", models.TaxExempt), "10"), "tax_rate"},
		{"non taxable with rate", withRate(line("1", "10", "0", models.TaxNonTax), "5"), "tax_rate"},
		{"quantity past column scale", line("1.0005", "10", "0", models.TaxStandard), "quantity"},
		{"quantity too large", line("1000000000000", "1", "0", models.TaxStandard), "quantity"},
		{"price past column scale", line("3", "0.333", "0", models.TaxStandard), "unit_price"},
		{"price too large", line("1", "10000000000000", "0", models.TaxStandard), "unit_price"},
		{"discount past column scale", line("3", "0.33", "0.999", models.TaxStandard), "discount_amount"},
		{"rate past column scale", withRate(line("1", "10", "0", models.TaxStandard), "7.125"), "tax_rate"},
		{"rate out of range", withRate(line("1", "10", "0", models.TaxStandard), "1000"), "tax_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateItem(tt.item)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	assert.NoError(t, ValidateItem(line("1", "0", "0", models.TaxStandard)))
	assert.NoError(t, ValidateItem(withRate(line("1", "10", "0", models.TaxExempt), "0")))
	assert.NoError(t, ValidateItem(withRate(line("0.125", "19.99", "1.50", models.TaxStandard), "999.99")))
	// trailing zeros are not extra precision
	assert.NoError(t, ValidateItem(line("2.5000", "10.0000", "0.000", models.TaxStandard)))
}

func TestValidateItemsReportsRow(t *testing.T) {
	err := ValidateItems([]models.LineItem{
		line("1", "10", "0", models.TaxStandard),
		line("1", "10", "0", models.TaxStandard),
		line("0", "10", "0", models.TaxStandard),
	})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, 3, ve.Row)
	assert.Contains(t, err.Error(), "row 3")
}

func TestValidateDates(t *testing.T) {
	issue := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	sameDay := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	before := issue.AddDate(0, 0, -1)

	assert.NoError(t, validateDates("due_date", issue, nil))
	assert.NoError(t, validateDates("due_date", issue, &sameDay))
	assert.Error(t, validateDates("due_date", issue, &before))
	assert.Error(t, validateDates("due_date", time.Time{}, nil))
}
