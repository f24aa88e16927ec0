package order

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecalculate(t *testing.T) {
	d := decimal.RequireFromString
	items := []Item{
		{Qty: 3, UnitPrice: d("0.335"), LineTotal: LineTotal(3, d("0.335"))},
		{Qty: 1, UnitPrice: d("19.99"), LineTotal: LineTotal(1, d("19.99"))},
	}

	got := Recalculate(items, d("5.1234"))
	assert.True(t, d("20.995").Equal(items[0].LineTotal.Add(items[1].LineTotal)))
	assert.Equal(t, "21", got.USD.StringFixed(0))
	assert.Equal(t, "21.00", got.USD.StringFixed(2))
	assert.Equal(t, "107.59", got.Local.StringFixed(2))

	empty := Recalculate(nil, d("5"))
	assert.True(t, empty.USD.IsZero())
	assert.True(t, empty.Local.IsZero())
}

func TestItemPatchApply(t *testing.T) {
	d := decimal.RequireFromString
	qty, price := 4, d("2.50")

	it := Item{SKU: "A", Qty: 1, UnitPrice: d("1"), LineTotal: d("1")}
	require.NoError(t, ItemPatch{Qty: &qty, UnitPrice: &price}.apply(&it))
	assert.Equal(t, "A", it.SKU)
	assert.True(t, d("10").Equal(it.LineTotal))

	bad := 0
	before := it
	err := ItemPatch{Qty: &bad}.apply(&it)
	require.True(t, IsValidation(err))
	assert.Equal(t, before, it)
}

func TestValidateNewItem_Limits(t *testing.T) {
	d := decimal.RequireFromString
	tests := []struct {
		name  string
		item  NewItem
		field string
	}{
		{"huge exponent", NewItem{Qty: 1, UnitPrice: d("1e30000000")}, "unit_price"},
		{"tiny exponent", NewItem{Qty: 1, UnitPrice: d("1e-30000000")}, "unit_price"},
		{"zero with exponent", NewItem{Qty: 1, UnitPrice: d("0e99999")}, "unit_price"},
		{"too many decimals", NewItem{Qty: 1, UnitPrice: d("1.23456")}, "unit_price"},
		{"price too large", NewItem{Qty: 1, UnitPrice: d("1000000000000")}, "unit_price"},
		{"wide coefficient", NewItem{Qty: 1, UnitPrice: d("123456789012345678901234.5")}, "unit_price"},
		{"line total too large", NewItem{Qty: 2, UnitPrice: d("500000000000")}, "line_total"},
		{"qty overflow", NewItem{Qty: maxQty + 1, UnitPrice: d("1")}, "qty"},
		{"long sku", NewItem{SKU: strings.Repeat("s", 65), Qty: 1, UnitPrice: d("1")}, "sku"},
		{"long description", NewItem{Description: strings.Repeat("é", 256), Qty: 1, UnitPrice: d("1")}, "description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *ValidationError
			require.ErrorAs(t, validateNewItem(tt.item), &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	for _, it := range []NewItem{
		{Qty: 1, UnitPrice: d("999999999999.9999")},
		{Qty: 1, UnitPrice: d("0.0001")},
		{Qty: 1, UnitPrice: d("0")},
		{Qty: 3, UnitPrice: d("1.5e3")},
		{SKU: strings.Repeat("s", 64), Description: strings.Repeat("é", 255), Qty: 1, UnitPrice: d("1")},
	} {
		assert.NoError(t, validateNewItem(it), "%+v", it)
	}
}

func TestItemPatchApply_Limits(t *testing.T) {
	d := decimal.RequireFromString
	it := Item{SKU: "A", Qty: 1, UnitPrice: d("400000000000"), LineTotal: d("400000000000")}
	before := it

	qty := 3
	var ve *ValidationError
	require.ErrorAs(t, ItemPatch{Qty: &qty}.apply(&it), &ve)
	assert.Equal(t, "line_total", ve.Field)

	sku := strings.Repeat("s", 65)
	require.ErrorAs(t, ItemPatch{SKU: &sku}.apply(&it), &ve)
	assert.Equal(t, "sku", ve.Field)
	assert.Equal(t, before, it)
}
