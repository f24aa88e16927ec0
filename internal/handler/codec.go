package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/orders-api/internal/domain/order"
)

const maxBody = 1 << 20

var errBadBody = errors.New("invalid request body")

// itemBody is the JSON shape of an item in requests. Absent and null fields
// stay nil.
type itemBody struct {
	SKU         *string
	Description *string
	Qty         *int
	UnitPrice   *decimal.Decimal
}

type createOrderBody struct {
	CustomerID string
	Items      []itemBody
}

// decodeBody reads a single JSON object from the request, calling field for
// every non-null member. Anything but whitespace after the object is an error.
func decodeBody(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		return errBadBody
	}
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return errBadBody
	}
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		return field(d, string(key))
	})
	if err != nil || d.Next() != jx.Invalid {
		return errBadBody
	}
	return nil
}

func decodeItemField(d *jx.Decoder, key string, b *itemBody) error {
	switch key {
	case "sku":
		s, err := d.Str()
		if err != nil {
			return err
		}
		b.SKU = &s
	case "description":
		s, err := d.Str()
		if err != nil {
			return err
		}
		b.Description = &s
	case "qty":
		n, err := d.Int()
		if err != nil {
			return err
		}
		b.Qty = &n
	case "unit_price":
		p, err := decodeMoney(d)
		if err != nil {
			return err
		}
		b.UnitPrice = &p
	default:
		return d.Skip()
	}
	return nil
}

func decodeItem(d *jx.Decoder) (itemBody, error) {
	var b itemBody
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		return decodeItemField(d, string(key), &b)
	})
	return b, err
}

func decodeCreateOrder(d *jx.Decoder, key string, b *createOrderBody) error {
	switch key {
	case "customer_id":
		s, err := d.Str()
		if err != nil {
			return err
		}
		b.CustomerID = s
	case "items":
		return d.Arr(func(d *jx.Decoder) error {
			it, err := decodeItem(d)
			if err != nil {
				return err
			}
			b.Items = append(b.Items, it)
			return nil
		})
	default:
		return d.Skip()
	}
	return nil
}

// decodeMoney reads a JSON number exactly, without a float round trip.
// Quoted amounts are rejected here; only the seeder accepts them.
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() != jx.Number {
		return decimal.Zero, errors.New("expected number")
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(string(n))
}

// newItem converts a create payload into a domain item. qty and unit_price are
// required.
func (b itemBody) newItem() (order.NewItem, error) {
	if b.Qty == nil {
		return order.NewItem{}, &order.ValidationError{Field: "qty", Reason: "is required"}
	}
	if b.UnitPrice == nil {
		return order.NewItem{}, &order.ValidationError{Field: "unit_price", Reason: "is required"}
	}
	it := order.NewItem{Qty: *b.Qty, UnitPrice: *b.UnitPrice}
	if b.SKU != nil {
		it.SKU = *b.SKU
	}
	if b.Description != nil {
		it.Description = *b.Description
	}
	return it, nil
}

func (b itemBody) patch() order.ItemPatch {
	return order.ItemPatch{
		SKU:         b.SKU,
		Description: b.Description,
		Qty:         b.Qty,
		UnitPrice:   b.UnitPrice,
	}
}

func writeJSON(w http.ResponseWriter, status int, enc func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	enc(e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Float64(v.InexactFloat64())
}

func encodeItem(e *jx.Encoder, it *order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID) })
		e.Field("order_id", func(e *jx.Encoder) { e.Int64(it.OrderID) })
		e.Field("sku", func(e *jx.Encoder) { e.Str(it.SKU) })
		e.Field("description", func(e *jx.Encoder) { e.Str(it.Description) })
		e.Field("qty", func(e *jx.Encoder) { e.Int(it.Qty) })
		e.Field("unit_price", func(e *jx.Encoder) { money(e, it.UnitPrice) })
		e.Field("line_total", func(e *jx.Encoder) { money(e, it.LineTotal) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("customer_id", func(e *jx.Encoder) { e.Str(o.CustomerID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("total_usd", func(e *jx.Encoder) { money(e, o.Totals.USD) })
		e.Field("total_local", func(e *jx.Encoder) { money(e, o.Totals.Local) })
		e.Field("rate", func(e *jx.Encoder) { money(e, o.Totals.Rate) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range o.Items {
					encodeItem(e, &o.Items[i])
				}
			})
		})
	})
}

func encodeTotals(e *jx.Encoder, t order.Totals) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("total_usd", func(e *jx.Encoder) { money(e, t.USD) })
		e.Field("total_local", func(e *jx.Encoder) { money(e, t.Local) })
	})
}

func encodeSummaries(e *jx.Encoder, list []order.Summary) {
	e.Arr(func(e *jx.Encoder) {
		for _, s := range list {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Int64(s.ID) })
				e.Field("customer_id", func(e *jx.Encoder) { e.Str(s.CustomerID) })
				e.Field("total_usd", func(e *jx.Encoder) { money(e, s.TotalUSD) })
				e.Field("status", func(e *jx.Encoder) { e.Str(string(s.Status)) })
			})
		}
	})
}

func encodeMessage(e *jx.Encoder, key, msg string) {
	e.Obj(func(e *jx.Encoder) {
		e.Field(key, func(e *jx.Encoder) { e.Str(msg) })
	})
}
