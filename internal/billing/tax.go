package billing

import (
	"sort"

	"github.com/shopspring/decimal"

	"go-billing-core/internal/models"
)

var hundred = decimal.NewFromInt(100)

// TaxSettings is the slice of company configuration the tax engine reads.
type TaxSettings struct {
	StandardRate     decimal.Decimal `json:"standard_tax_rate"`
	ReducedRate      decimal.Decimal `json:"reduced_tax_rate"`
	PriceIncludesTax bool            `json:"price_includes_tax"`
	Places           int32           `json:"tax_rounding_places"`
}

func SettingsFor(c models.Company) TaxSettings {
	return TaxSettings{
		StandardRate:     c.StandardTaxRate,
		ReducedRate:      c.ReducedTaxRate,
		PriceIncludesTax: c.PriceIncludesTax,
		Places:           c.TaxRoundingPlaces,
	}
}

// RateOrigin says where a resolved rate came from.
type RateOrigin string

const (
	OriginOverride RateOrigin = "override"
	OriginStandard RateOrigin = "standard"
	OriginReduced  RateOrigin = "reduced"
	OriginUntaxed  RateOrigin = "untaxed"
)

type ResolvedRate struct {
	Rate   decimal.Decimal `json:"rate"`
	Origin RateOrigin      `json:"origin"`
}

// ResolveRate picks the rate for one line: the item override if present,
// otherwise the company default for its category. Untaxed categories resolve
// to zero even when an override is set.
func ResolveRate(item models.LineItem, s TaxSettings) ResolvedRate {
	if item.TaxCategory.Untaxed() {
		return ResolvedRate{Rate: decimal.Zero, Origin: OriginUntaxed}
	}
	if item.TaxRate != nil {
		return ResolvedRate{Rate: *item.TaxRate, Origin: OriginOverride}
	}
	if item.TaxCategory == models.TaxReduced {
		return ResolvedRate{Rate: s.ReducedRate, Origin: OriginReduced}
	}
	return ResolvedRate{Rate: s.StandardRate, Origin: OriginStandard}
}

type LineResult struct {
	NetAmount        decimal.Decimal `json:"net_amount"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	LineTotal        decimal.Decimal `json:"line_total"`
	EffectiveTaxRate decimal.Decimal `json:"effective_tax_rate"`
	Origin           RateOrigin      `json:"rate_origin"`
}

// ComputeLine returns the figures for one line. Negative inputs degrade to a
// zero line instead of failing; persisted items are validated elsewhere.
func ComputeLine(item models.LineItem, s TaxSettings) LineResult {
	rate := ResolveRate(item, s)
	res := LineResult{
		NetAmount:        decimal.Zero,
		TaxAmount:        decimal.Zero,
		LineTotal:        decimal.Zero,
		EffectiveTaxRate: rate.Rate,
		Origin:           rate.Origin,
	}
	if item.Quantity.IsNegative() || item.UnitPrice.IsNegative() ||
		item.DiscountAmount.IsNegative() || rate.Rate.IsNegative() {
		return res
	}

	amount := item.UnitPrice.Mul(item.Quantity).Sub(item.DiscountAmount)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	if s.PriceIncludesTax {
		res.TaxAmount = amount.Mul(rate.Rate).Div(hundred.Add(rate.Rate)).Round(s.Places)
		res.NetAmount = amount.Sub(res.TaxAmount)
		res.LineTotal = amount
		return res
	}

	res.NetAmount = amount
	res.TaxAmount = amount.Mul(rate.Rate).Div(hundred).Round(s.Places)
	res.LineTotal = amount.Add(res.TaxAmount)
	return res
}

// RateBucket aggregates every line resolved to the same rate.
type RateBucket struct {
	Rate    decimal.Decimal `json:"rate"`
	Taxable decimal.Decimal `json:"taxable_amount"`
	Tax     decimal.Decimal `json:"tax_amount"`
	Lines   int             `json:"lines"`
}

type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	TotalTax    decimal.Decimal `json:"total_tax"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Buckets     []RateBucket    `json:"tax_summary"`
}

// ComputeTotals sums independently rounded lines. Buckets are keyed by the
// resolved rate value and sorted ascending, so the result does not depend on
// the order of items.
func ComputeTotals(items []models.LineItem, s TaxSettings) Totals {
	t := Totals{
		Subtotal:    decimal.Zero,
		TotalTax:    decimal.Zero,
		TotalAmount: decimal.Zero,
		Buckets:     []RateBucket{},
	}
	byRate := map[string]*RateBucket{}

	for _, item := range items {
		line := ComputeLine(item, s)
		t.Subtotal = t.Subtotal.Add(line.NetAmount)
		t.TotalTax = t.TotalTax.Add(line.TaxAmount)

		// 10 and 10.00 must land in the same bucket
		key := line.EffectiveTaxRate.String()
		b, ok := byRate[key]
		if !ok {
			b = &RateBucket{Rate: line.EffectiveTaxRate, Taxable: decimal.Zero, Tax: decimal.Zero}
			byRate[key] = b
		}
		b.Taxable = b.Taxable.Add(line.NetAmount)
		b.Tax = b.Tax.Add(line.TaxAmount)
		b.Lines++
	}
	t.TotalAmount = t.Subtotal.Add(t.TotalTax)

	for _, b := range byRate {
		t.Buckets = append(t.Buckets, *b)
	}
	sort.Slice(t.Buckets, func(i, j int) bool {
		return t.Buckets[i].Rate.LessThan(t.Buckets[j].Rate)
	})
	return t
}
