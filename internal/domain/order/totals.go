package order

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Limits matching the order_items and orders columns. Money columns are
// NUMERIC(14,2), so every amount stays below 10^12.
const (
	maxQty         = math.MaxInt32
	maxSKULen      = 64
	maxDescLen     = 255
	maxPriceScale  = 4
	maxMoneyDigits = 12
)

var maxMoney = decimal.New(1, maxMoneyDigits)

// LineTotal returns qty * unitPrice without rounding.
func LineTotal(qty int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

// Recalculate derives order totals from the current item set and rate:
// USD is the line total sum rounded to cents, Local is USD converted at rate
// and rounded to cents.
func Recalculate(items []Item, rate decimal.Decimal) Totals {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal)
	}
	usd := sum.Round(2)
	return Totals{
		USD:   usd,
		Local: usd.Mul(rate).Round(2),
		Rate:  rate,
	}
}

// integerDigits returns the number of digits left of the decimal point that
// d would print with, without rescaling its coefficient. Coefficients wider
// than 64 bits count as 20 digits, a lower bound.
func integerDigits(d decimal.Decimal) int64 {
	coef := d.Coefficient()
	if coef.Sign() == 0 {
		return 0
	}
	coef.Abs(coef)
	digits := int64(20)
	if coef.IsUint64() {
		digits = int64(len(strconv.FormatUint(coef.Uint64(), 10)))
	}
	return digits + int64(d.Exponent())
}

func validateQty(qty int) error {
	switch {
	case qty < 1:
		return &ValidationError{Field: "qty", Reason: "must be >= 1"}
	case qty > maxQty:
		return &ValidationError{Field: "qty", Reason: "must be <= 2147483647"}
	}
	return nil
}

// validateUnitPrice checks sign, scale and magnitude using only the exponent
// and coefficient length, so hostile exponents are rejected cheaply.
func validateUnitPrice(p decimal.Decimal) error {
	switch {
	case p.IsNegative():
		return &ValidationError{Field: "unit_price", Reason: "must be >= 0"}
	case p.IsZero():
		if p.Exponent() < -maxPriceScale || p.Exponent() > maxMoneyDigits {
			return &ValidationError{Field: "unit_price", Reason: "has an invalid scale"}
		}
	case p.Exponent() < -maxPriceScale:
		return &ValidationError{Field: "unit_price", Reason: "must have at most 4 decimal places"}
	case integerDigits(p) > maxMoneyDigits:
		return &ValidationError{Field: "unit_price", Reason: "must be below 1000000000000"}
	}
	return nil
}

func validateText(field, v string, limit int) error {
	if utf8.RuneCountInString(v) > limit {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", limit)}
	}
	return nil
}

// validateLineTotal expects qty and unit price to be validated already.
func validateLineTotal(qty int, p decimal.Decimal) error {
	if !LineTotal(qty, p).LessThan(maxMoney) {
		return &ValidationError{Field: "line_total", Reason: "must be below 1000000000000"}
	}
	return nil
}

func validateNewItem(it NewItem) error {
	if err := validateText("sku", it.SKU, maxSKULen); err != nil {
		return err
	}
	if err := validateText("description", it.Description, maxDescLen); err != nil {
		return err
	}
	if err := validateQty(it.Qty); err != nil {
		return err
	}
	if err := validateUnitPrice(it.UnitPrice); err != nil {
		return err
	}
	return validateLineTotal(it.Qty, it.UnitPrice)
}

// validateTotals rejects totals the money columns cannot hold.
func validateTotals(t Totals) error {
	switch {
	case !t.USD.LessThan(maxMoney):
		return &ValidationError{Field: "total_usd", Reason: "must be below 1000000000000"}
	case !t.Local.LessThan(maxMoney):
		return &ValidationError{Field: "total_local", Reason: "must be below 1000000000000"}
	}
	return nil
}

func buildItem(orderID int64, it NewItem) Item {
	return Item{
		OrderID:     orderID,
		SKU:         it.SKU,
		Description: it.Description,
		Qty:         it.Qty,
		UnitPrice:   it.UnitPrice,
		LineTotal:   LineTotal(it.Qty, it.UnitPrice),
	}
}

// apply validates p and writes the provided fields onto it, rederiving the
// line total. it is left untouched when validation fails.
func (p ItemPatch) apply(it *Item) error {
	if p.SKU != nil {
		if err := validateText("sku", *p.SKU, maxSKULen); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if err := validateText("description", *p.Description, maxDescLen); err != nil {
			return err
		}
	}
	qty, price := it.Qty, it.UnitPrice
	if p.Qty != nil {
		if err := validateQty(*p.Qty); err != nil {
			return err
		}
		qty = *p.Qty
	}
	if p.UnitPrice != nil {
		if err := validateUnitPrice(*p.UnitPrice); err != nil {
			return err
		}
		price = *p.UnitPrice
	}
	if err := validateLineTotal(qty, price); err != nil {
		return err
	}
	if p.SKU != nil {
		it.SKU = *p.SKU
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Qty != nil {
		it.Qty = *p.Qty
	}
	if p.UnitPrice != nil {
		it.UnitPrice = *p.UnitPrice
	}
	it.LineTotal = LineTotal(it.Qty, it.UnitPrice)
	return nil
}
