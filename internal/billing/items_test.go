package billing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-billing-core/internal/models"
)

func TestCreateItemAppends(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t, named("a", line("1", "10", "0", models.TaxStandard)))

	b, err := f.items.Create(f.ctx, QuoteKind, f.company.ID, q.ID, named("b", line("1", "10", "0", models.TaxStandard)))
	require.NoError(t, err)
	assert.Equal(t, 1, b.SortOrder)
	assert.Equal(t, q.ID, b.DocumentID)

	// an explicit position inserts there and pushes b down
	mid := named("mid", line("1", "10", "0", models.TaxStandard))
	mid.SortOrder = 1
	created, err := f.items.Create(f.ctx, QuoteKind, f.company.ID, q.ID, mid)
	require.NoError(t, err)
	assert.Equal(t, 1, created.SortOrder)

	items, err := f.items.List(f.ctx, QuoteKind, f.company.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "mid", "b"}, descriptions(items))
	assert.Equal(t, []int{0, 1, 2}, sortOrders(items))
	assert.True(t, items[0].UpdatedAt.Equal(q.Items[0].UpdatedAt))
	assert.True(t, items[2].UpdatedAt.After(b.UpdatedAt))

	// past the end appends
	tail := named("tail", line("1", "10", "0", models.TaxStandard))
	tail.SortOrder = 99
	created, err = f.items.Create(f.ctx, QuoteKind, f.company.ID, q.ID, tail)
	require.NoError(t, err)
	assert.Equal(t, 3, created.SortOrder)
}

func TestUpdateItemMovesToIndex(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t,
		named("a", line("1", "1", "0", models.TaxStandard)),
		named("b", line("1", "1", "0", models.TaxStandard)),
		named("c", line("1", "1", "0", models.TaxStandard)),
	)

	tests := []struct {
		name string
		item string
		to   int
		want []string
	}{
		{"down", "a", 2, []string{"b", "c", "a"}},
		{"up", "a", 0, []string{"a", "b", "c"}},
		{"to the front", "c", 0, []string{"c", "a", "b"}},
		{"into the middle", "b", 1, []string{"c", "b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := f.items.List(f.ctx, QuoteKind, f.company.ID, q.ID)
			require.NoError(t, err)
			var target models.LineItem
			for _, item := range items {
				if item.Description == tt.item {
					target = item
				}
			}

			to := tt.to
			moved, err := f.items.Update(f.ctx, QuoteKind, f.company.ID, q.ID, target.ID, ItemPatch{
				SortOrder: &to, ExpectedUpdatedAt: target.UpdatedAt,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.to, moved.SortOrder)

			items, err = f.items.List(f.ctx, QuoteKind, f.company.ID, q.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, descriptions(items))
			assert.Equal(t, []int{0, 1, 2}, sortOrders(items))
		})
	}
}

func TestCreateItemRejects(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t)

	_, err := f.items.Create(f.ctx, QuoteKind, f.company.ID, q.ID, line("1", "10", "10.01", models.TaxStandard))
	assert.True(t, errors.Is(err, ErrValidation))

	// would round to price 0.33 and discount 1 once stored
	_, err = f.items.Create(f.ctx, QuoteKind, f.company.ID, q.ID, line("3", "0.333", "0.999", models.TaxStandard))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "unit_price", ve.Field)

	items, err := f.items.List(f.ctx, QuoteKind, f.company.ID, q.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = f.items.Create(f.ctx, QuoteKind, f.company.ID, 999, line("1", "10", "0", models.TaxStandard))
	assert.True(t, errors.Is(err, ErrNotFound))

	// the quote id does not exist among invoices
	_, err = f.items.Create(f.ctx, InvoiceKind, f.company.ID, q.ID+100, line("1", "10", "0", models.TaxStandard))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateItemUsesEffectiveValues(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t, line("10", "10", "90", models.TaxStandard))
	item := q.Items[0]

	// lowering the quantity alone would leave the discount above gross
	qty := dec("5")
	_, err := f.items.Update(f.ctx, QuoteKind, f.company.ID, q.ID, item.ID, ItemPatch{
		Quantity:          &qty,
		ExpectedUpdatedAt: item.UpdatedAt,
	})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "discount_amount", ve.Field)
	assert.Equal(t, item.ID, ve.ItemID)

	discount := dec("50")
	updated, err := f.items.Update(f.ctx, QuoteKind, f.company.ID, q.ID, item.ID, ItemPatch{
		Quantity:          &qty,
		DiscountAmount:    &discount,
		ExpectedUpdatedAt: item.UpdatedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, "5", updated.Quantity.String())
	assert.Equal(t, "50", updated.DiscountAmount.String())
	assert.True(t, updated.UpdatedAt.After(item.UpdatedAt))
}

func TestUpdateItemTaxRate(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t, line("1", "100", "0", models.TaxStandard))
	item := q.Items[0]

	exempt := models.TaxExempt
	r := dec("10")
	_, err := f.items.Update(f.ctx, QuoteKind, f.company.ID, q.ID, item.ID, ItemPatch{
		TaxCategory: &exempt, TaxRate: &r, ExpectedUpdatedAt: item.UpdatedAt,
	})
	assert.True(t, errors.Is(err, ErrValidation))

	withRate, err := f.items.Update(f.ctx, QuoteKind, f.company.ID, q.ID, item.ID, ItemPatch{
		TaxRate: &r, ExpectedUpdatedAt: item.UpdatedAt,
	})
	require.NoError(t, err)
	require.NotNil(t, withRate.TaxRate)

	cleared, err := f.items.Update(f.ctx, QuoteKind, f.company.ID, q.ID, item.ID, ItemPatch{
		ClearTaxRate: true, TaxCategory: &exempt, ExpectedUpdatedAt: withRate.UpdatedAt,
	})
	require.NoError(t, err)
	assert.Nil(t, cleared.TaxRate)
	assert.Equal(t, models.TaxExempt, cleared.TaxCategory)
}

func TestUpdateItemStaleToken(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t, line("1", "100", "0", models.TaxStandard))
	item := q.Items[0]

	desc := "first"
	_, err := f.items.Update(f.ctx, QuoteKind, f.company.ID, q.ID, item.ID, ItemPatch{Description: &desc, ExpectedUpdatedAt: item.UpdatedAt})
	require.NoError(t, err)

	stale := "second"
	_, err = f.items.Update(f.ctx, QuoteKind, f.company.ID, q.ID, item.ID, ItemPatch{Description: &stale, ExpectedUpdatedAt: item.UpdatedAt})
	assert.True(t, errors.Is(err, ErrConflict))

	items, err := f.items.List(f.ctx, QuoteKind, f.company.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", items[0].Description)
}

func TestDeleteItemRenormalizes(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t,
		named("a", line("1", "1", "0", models.TaxStandard)),
		named("b", line("1", "1", "0", models.TaxStandard)),
		named("c", line("1", "1", "0", models.TaxStandard)),
	)

	require.NoError(t, f.items.Delete(f.ctx, QuoteKind, f.company.ID, q.ID, q.Items[1].ID))
	assert.True(t, errors.Is(f.items.Delete(f.ctx, QuoteKind, f.company.ID, q.ID, q.Items[1].ID), ErrNotFound))

	items, err := f.items.List(f.ctx, QuoteKind, f.company.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, descriptions(items))
	assert.Equal(t, []int{0, 1}, sortOrders(items))

	// a untouched, c moved from 2 to 1
	assert.True(t, items[0].UpdatedAt.Equal(q.Items[0].UpdatedAt))
	assert.True(t, items[1].UpdatedAt.After(q.Items[2].UpdatedAt))
}

func TestBulkProcess(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t,
		named("a", line("1", "1", "0", models.TaxStandard)),
		named("b", line("1", "1", "0", models.TaxStandard)),
	)

	price := dec("25")
	res, err := f.items.BulkProcess(f.ctx, QuoteKind, f.company.ID, q.ID, []BulkOp{
		{Action: ActionDelete, ItemID: q.Items[0].ID},
		{Action: ActionCreate, Item: named("c", line("2", "5", "0", models.TaxReduced))},
		{Action: ActionUpdate, ItemID: q.Items[1].ID, Patch: ItemPatch{UnitPrice: &price, ExpectedUpdatedAt: q.Items[1].UpdatedAt}},
		{Action: ActionCreate, Item: named("d", line("1", "5", "0", models.TaxStandard))},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []string{"b", "c", "d"}, descriptions(res.Items))
	assert.Equal(t, []int{0, 1, 2}, sortOrders(res.Items))
	assert.Equal(t, "25", res.Items[0].UnitPrice.String())
}

func TestBulkProcessIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t,
		named("a", line("1", "1", "0", models.TaxStandard)),
		named("b", line("1", "1", "0", models.TaxStandard)),
	)

	_, err := f.items.BulkProcess(f.ctx, QuoteKind, f.company.ID, q.ID, []BulkOp{
		{Action: ActionDelete, ItemID: q.Items[0].ID},
		{Action: ActionCreate, Item: named("c", line("1", "5", "0", models.TaxStandard))},
		{Action: ActionCreate, Item: named("bad", line("1", "5", "6", models.TaxStandard))},
	})
	require.Error(t, err)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, 3, ve.Row)

	items, err := f.items.List(f.ctx, QuoteKind, f.company.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, descriptions(items))

	_, err = f.items.BulkProcess(f.ctx, QuoteKind, f.company.ID, q.ID, []BulkOp{
		{Action: ActionUpdate, ItemID: q.Items[0].ID, Patch: ItemPatch{ExpectedUpdatedAt: q.Items[0].UpdatedAt.Add(-1)}},
	})
	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Row)

	_, err = f.items.BulkProcess(f.ctx, QuoteKind, f.company.ID, q.ID, []BulkOp{{Action: "upsert"}})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestReplaceAll(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice(t, named("old", line("1", "1", "0", models.TaxStandard)))

	items, err := f.items.ReplaceAll(f.ctx, InvoiceKind, f.company.ID, inv.ID, []models.LineItem{
		named("x", line("1", "10", "0", models.TaxStandard)),
		named("y", line("2", "10", "0", models.TaxStandard)),
		named("z", line("3", "10", "0", models.TaxStandard)),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, descriptions(items))
	assert.Equal(t, []int{0, 1, 2}, sortOrders(items))

	_, err = f.items.ReplaceAll(f.ctx, InvoiceKind, f.company.ID, inv.ID, []models.LineItem{
		named("ok", line("1", "10", "0", models.TaxStandard)),
		named("bad", line("1", "10", "11", models.TaxStandard)),
	})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, 2, ve.Row)

	current, err := f.items.List(f.ctx, InvoiceKind, f.company.ID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, descriptions(current))
}

func TestReorder(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t,
		named("a", line("1", "1", "0", models.TaxStandard)),
		named("b", line("1", "1", "0", models.TaxStandard)),
		named("c", line("1", "1", "0", models.TaxStandard)),
	)
	a, b, c := q.Items[0], q.Items[1], q.Items[2]

	items, err := f.items.Reorder(f.ctx, QuoteKind, f.company.ID, q.ID, []Move{
		{ItemID: c.ID, SortOrder: 0, ExpectedUpdatedAt: c.UpdatedAt},
		{ItemID: a.ID, SortOrder: 1, ExpectedUpdatedAt: a.UpdatedAt},
		{ItemID: b.ID, SortOrder: 2, ExpectedUpdatedAt: b.UpdatedAt},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, descriptions(items))
	assert.Equal(t, []int{0, 1, 2}, sortOrders(items))
}

func TestReorderConflictRollsBack(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t,
		named("a", line("1", "1", "0", models.TaxStandard)),
		named("b", line("1", "1", "0", models.TaxStandard)),
		named("c", line("1", "1", "0", models.TaxStandard)),
	)
	a, b, c := q.Items[0], q.Items[1], q.Items[2]

	// someone edits b and c first
	desc := "b2"
	_, err := f.items.Update(f.ctx, QuoteKind, f.company.ID, q.ID, b.ID, ItemPatch{Description: &desc, ExpectedUpdatedAt: b.UpdatedAt})
	require.NoError(t, err)
	desc = "c2"
	_, err = f.items.Update(f.ctx, QuoteKind, f.company.ID, q.ID, c.ID, ItemPatch{Description: &desc, ExpectedUpdatedAt: c.UpdatedAt})
	require.NoError(t, err)

	_, err = f.items.Reorder(f.ctx, QuoteKind, f.company.ID, q.ID, []Move{
		{ItemID: a.ID, SortOrder: 2, ExpectedUpdatedAt: a.UpdatedAt},
		{ItemID: b.ID, SortOrder: 0, ExpectedUpdatedAt: b.UpdatedAt},
		{ItemID: c.ID, SortOrder: 1, ExpectedUpdatedAt: c.UpdatedAt},
	})
	require.Error(t, err)
	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.ElementsMatch(t, []uint{b.ID, c.ID}, ce.ItemIDs)

	items, err := f.items.List(f.ctx, QuoteKind, f.company.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b2", "c2"}, descriptions(items))
	assert.True(t, items[0].UpdatedAt.Equal(a.UpdatedAt), "a's move was rolled back")
}
