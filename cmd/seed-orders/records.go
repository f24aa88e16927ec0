package main

import (
	"io"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/orders-api/internal/domain/order"
)

// record is one order line of the seed file. Bad is set when the record is
// well-formed JSON but cannot become an order, e.g. a non-numeric price.
type record struct {
	Request order.CreateOrderRequest
	Bad     error
}

// readRecords streams orders from r. The input is either a single JSON array
// of orders or newline-delimited order objects. Malformed JSON stops the read.
func readRecords(r io.Reader, fn func(rec record) error) error {
	d := jx.Decode(r, 64*1024)
	switch d.Next() {
	case jx.Array:
		return d.Arr(func(d *jx.Decoder) error {
			return decodeAndEmit(d, fn)
		})
	case jx.Invalid:
		return nil
	}
	for d.Next() != jx.Invalid {
		if err := decodeAndEmit(d, fn); err != nil {
			return err
		}
	}
	return nil
}

func decodeAndEmit(d *jx.Decoder, fn func(rec record) error) error {
	rec, err := decodeRecord(d)
	if err != nil {
		return errors.Wrap(err, "decode order")
	}
	return fn(rec)
}

func decodeRecord(d *jx.Decoder) (record, error) {
	var rec record
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "customer_id":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			rec.Request.CustomerID = s
		case "items":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				it, bad, err := decodeItem(d)
				if err != nil {
					return err
				}
				if bad != nil && rec.Bad == nil {
					rec.Bad = bad
				}
				rec.Request.Items = append(rec.Request.Items, it)
				return nil
			})
		default:
			return d.Skip()
		}
		return nil
	})
	return rec, err
}

// decodeItem returns the item, a non-nil bad when a value is unusable, and an
// error only for malformed JSON. It is looser than the API decoder in
// internal/handler: unit_price may be a numeric string, as exported price
// lists often quote it. Range and length checks are left to
// order.Service.CreateOrder, same as for API requests.
func decodeItem(d *jx.Decoder) (it order.NewItem, bad, err error) {
	hasQty, hasPrice := false, false
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		switch string(key) {
		case "sku":
			s, err := d.Str()
			it.SKU = s
			return err
		case "description":
			s, err := d.Str()
			it.Description = s
			return err
		case "qty":
			n, err := d.Int()
			it.Qty = n
			hasQty = true
			return err
		case "unit_price":
			p, perr, err := decodePrice(d)
			if perr != nil {
				bad = perr
			}
			it.UnitPrice = p
			hasPrice = perr == nil
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return it, nil, err
	}
	switch {
	case bad != nil:
	case !hasQty:
		bad = &order.ValidationError{Field: "qty", Reason: "is required"}
	case !hasPrice:
		bad = &order.ValidationError{Field: "unit_price", Reason: "is required"}
	}
	return it, bad, nil
}

// decodePrice accepts both numbers and numeric strings. bad reports a value
// that is valid JSON but not a price.
func decodePrice(d *jx.Decoder) (p decimal.Decimal, bad, err error) {
	notNumber := &order.ValidationError{Field: "unit_price", Reason: "must be a number"}
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, nil, err
		}
		raw = string(n)
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, nil, err
		}
		raw = strings.TrimSpace(s)
	default:
		return decimal.Zero, notNumber, d.Skip()
	}
	p, perr := decimal.NewFromString(raw)
	if perr != nil {
		return decimal.Zero, notNumber, nil
	}
	return p, nil, nil
}
