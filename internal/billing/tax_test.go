package billing

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"go-billing-core/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rate(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func line(qty, price, discount string, cat models.TaxCategory) models.LineItem {
	return models.LineItem{
		Description:    "item",
		Quantity:       dec(qty),
		UnitPrice:      dec(price),
		DiscountAmount: dec(discount),
		TaxCategory:    cat,
	}
}

var settings = TaxSettings{StandardRate: dec("10"), ReducedRate: dec("8")}

func TestComputeLineStandard(t *testing.T) {
	res := ComputeLine(line("2", "1000", "0", models.TaxStandard), settings)

	assert.Equal(t, "2000", res.NetAmount.String())
	assert.Equal(t, "200", res.TaxAmount.String())
	assert.Equal(t, "2200", res.LineTotal.String())
	assert.Equal(t, "10", res.EffectiveTaxRate.String())
	assert.Equal(t, OriginStandard, res.Origin)
}

func TestComputeLineOverrideRounding(t *testing.T) {
	item := line("1", "999", "0", models.TaxStandard)
	item.TaxRate = rate("8")

	res := ComputeLine(item, settings)
	assert.Equal(t, "80", res.TaxAmount.String()) // 79.92
	assert.Equal(t, OriginOverride, res.Origin)

	totals := ComputeTotals([]models.LineItem{item}, settings)
	assert.Len(t, totals.Buckets, 1)
	assert.Equal(t, "8", totals.Buckets[0].Rate.String())
}

func TestComputeLineRoundsHalfUp(t *testing.T) {
	// 105 * 10% = 10.5
	res := ComputeLine(line("1", "105", "0", models.TaxStandard), settings)
	assert.Equal(t, "11", res.TaxAmount.String())

	withCents := settings
	withCents.Places = 2
	res = ComputeLine(line("1", "10.05", "0", models.TaxStandard), withCents)
	assert.Equal(t, "1.01", res.TaxAmount.String()) // 1.005
}

func TestComputeLineCategories(t *testing.T) {
	tests := []struct {
		name     string
		category models.TaxCategory
		tax      string
		origin   RateOrigin
	}{
		{"standard", models.TaxStandard, "100", OriginStandard},
		{"reduced", models.TaxReduced, "80", OriginReduced},
		{"exempt", models.TaxExempt, "0", OriginUntaxed},
		{"non taxable", models.TaxNonTax, "0", OriginUntaxed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ComputeLine(line("1", "1000", "0", tt.category), settings)
			assert.Equal(t, tt.tax, res.TaxAmount.String())
			assert.Equal(t, tt.origin, res.Origin)
		})
	}
}

func TestComputeLineDiscount(t *testing.T) {
	res := ComputeLine(line("3", "100", "50", models.TaxStandard), settings)
	assert.Equal(t, "250", res.NetAmount.String())
	assert.Equal(t, "25", res.TaxAmount.String())
	assert.Equal(t, "275", res.LineTotal.String())
}

func TestComputeLineDegradesOnBadInput(t *testing.T) {
	for _, item := range []models.LineItem{
		line("-1", "100", "0", models.TaxStandard),
		line("1", "-100", "0", models.TaxStandard),
		line("1", "100", "-5", models.TaxStandard),
	} {
		res := ComputeLine(item, settings)
		assert.True(t, res.NetAmount.IsZero())
		assert.True(t, res.TaxAmount.IsZero())
		assert.True(t, res.LineTotal.IsZero())
	}

	// discount beyond gross clamps to zero while editing
	res := ComputeLine(line("1", "100", "150", models.TaxStandard), settings)
	assert.True(t, res.NetAmount.IsZero())
}

func TestComputeLineTaxInclusive(t *testing.T) {
	inclusive := settings
	inclusive.PriceIncludesTax = true

	res := ComputeLine(line("1", "1100", "0", models.TaxStandard), inclusive)
	assert.Equal(t, "100", res.TaxAmount.String())
	assert.Equal(t, "1000", res.NetAmount.String())
	assert.Equal(t, "1100", res.LineTotal.String())
}

func TestComputeTotalsEmpty(t *testing.T) {
	totals := ComputeTotals(nil, settings)
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.TotalTax.IsZero())
	assert.True(t, totals.TotalAmount.IsZero())
	assert.Empty(t, totals.Buckets)
}

func TestComputeTotalsBucketsByResolvedRate(t *testing.T) {
	override := line("1", "500", "0", models.TaxReduced)
	override.TaxRate = rate("10.00")

	items := []models.LineItem{
		line("2", "1000", "0", models.TaxStandard),
		override,
		line("1", "300", "0", models.TaxReduced),
		line("1", "200", "0", models.TaxExempt),
		line("1", "100", "0", models.TaxNonTax),
	}
	totals := ComputeTotals(items, settings)

	assert.Equal(t, "3100", totals.Subtotal.String())
	assert.Equal(t, "274", totals.TotalTax.String()) // 200 + 50 + 24
	assert.Equal(t, "3374", totals.TotalAmount.String())

	assert.Len(t, totals.Buckets, 3)
	assert.Equal(t, "0", totals.Buckets[0].Rate.String())
	assert.Equal(t, "300", totals.Buckets[0].Taxable.String())
	assert.Equal(t, 2, totals.Buckets[0].Lines)
	assert.Equal(t, "8", totals.Buckets[1].Rate.String())
	assert.Equal(t, "10", totals.Buckets[2].Rate.String())
	assert.Equal(t, "2500", totals.Buckets[2].Taxable.String())
	assert.Equal(t, "250", totals.Buckets[2].Tax.String())
}

func TestComputeTotalsOrderIndependent(t *testing.T) {
	items := []models.LineItem{
		line("2", "1000", "0", models.TaxStandard),
		line("1.5", "333.33", "10", models.TaxReduced),
		line("7", "12.99", "0", models.TaxStandard),
		line("1", "999", "0", models.TaxExempt),
		line("3", "0.35", "0.05", models.TaxReduced),
	}
	want := ComputeTotals(items, settings)

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.LineItem(nil), items...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := ComputeTotals(shuffled, settings)
		assert.True(t, want.Subtotal.Equal(got.Subtotal))
		assert.True(t, want.TotalTax.Equal(got.TotalTax))
		assert.True(t, want.TotalAmount.Equal(got.TotalAmount))
		assert.Equal(t, len(want.Buckets), len(got.Buckets))
	}
}
