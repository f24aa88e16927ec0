package rate

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

var (
	errUnknownShape = errors.New("unknown payload shape")
	errNoBid        = errors.New("bid not found")
	errNonPositive  = errors.New("bid is not positive")
	errOutOfRange   = errors.New("bid is out of range")
)

// ParseBid extracts the bid quote from a rate payload. Two shapes are
// understood:
//
//	{"USDBRL": {"bid": "5.1234", ...}}
//	[{"bid": "5.1234", ...}]
//
// For the keyed shape the entry named pair wins, otherwise the first nested
// object with a bid is used. The bid may be a string or a number and may use
// a decimal comma.
func ParseBid(data []byte, pair string) (decimal.Decimal, error) {
	d := jx.DecodeBytes(data)

	var raw string
	switch d.Next() {
	case jx.Object:
		var first string
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if d.Next() != jx.Object {
				return d.Skip()
			}
			bid, err := decodeQuote(d)
			if err != nil {
				return err
			}
			if bid == "" {
				return nil
			}
			if first == "" {
				first = bid
			}
			if string(key) == pair {
				raw = bid
			}
			return nil
		}); err != nil {
			return decimal.Zero, errors.Wrap(err, "decode object")
		}
		if raw == "" {
			raw = first
		}
	case jx.Array:
		idx := 0
		if err := d.Arr(func(d *jx.Decoder) error {
			idx++
			if idx > 1 || d.Next() != jx.Object {
				return d.Skip()
			}
			bid, err := decodeQuote(d)
			raw = bid
			return err
		}); err != nil {
			return decimal.Zero, errors.Wrap(err, "decode array")
		}
	default:
		return decimal.Zero, errUnknownShape
	}

	if raw == "" {
		return decimal.Zero, errNoBid
	}
	bid, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse bid %q", raw)
	}
	if !bid.IsPositive() {
		return decimal.Zero, errNonPositive
	}
	if err := checkRange(bid); err != nil {
		return decimal.Zero, err
	}
	return bid, nil
}

// Rates are multiplied into cent-rounded totals, so both the scale and the
// integer part are kept small. The checks read only the exponent and the
// coefficient width, never rescaling.
const (
	maxRateScale  = 10
	maxRateDigits = 6
)

func checkRange(r decimal.Decimal) error {
	if r.Exponent() < -maxRateScale {
		return errOutOfRange
	}
	coef := r.Coefficient()
	if coef.BitLen() > 64 || int64(len(coef.Text(10)))+int64(r.Exponent()) > maxRateDigits {
		return errOutOfRange
	}
	return nil
}

// decodeQuote reads a quote object and returns its bid as text, or "" when
// the object carries no usable bid.
func decodeQuote(d *jx.Decoder) (string, error) {
	var bid string
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "bid" {
			return d.Skip()
		}
		switch d.Next() {
		case jx.String:
			s, err := d.Str()
			if err != nil {
				return err
			}
			bid = s
		case jx.Number:
			n, err := d.Num()
			if err != nil {
				return err
			}
			bid = string(n)
		default:
			return d.Skip()
		}
		return nil
	})
	return bid, err
}
