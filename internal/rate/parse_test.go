package rate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"keyed", `{"USDBRL":{"code":"USD","bid":"5.1234","ask":"5.13"}}`, "5.1234"},
		{"keyed numeric", `{"USDBRL":{"bid":5.5}}`, "5.5"},
		{"keyed comma", `{"USDBRL":{"bid":"5,25"}}`, "5.25"},
		{"pair wins", `{"EURBRL":{"bid":"6.1"},"USDBRL":{"bid":"5.2"}}`, "5.2"},
		{"first nested", `{"meta":1,"USDEUR":{"bid":"0.9"},"X":{"bid":"2"}}`, "0.9"},
		{"list", `[{"bid":"4.9","ask":"5"},{"bid":"7"}]`, "4.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBid([]byte(tt.payload), "USDBRL")
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseBid_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"string", `"5.1"`},
		{"number", `5.1`},
		{"empty object", `{}`},
		{"empty list", `[]`},
		{"no bid", `{"USDBRL":{"ask":"5.1"}}`},
		{"list of scalars", `[5.1]`},
		{"garbage bid", `{"USDBRL":{"bid":"abc"}}`},
		{"zero", `{"USDBRL":{"bid":"0"}}`},
		{"negative", `[{"bid":"-1.5"}]`},
		{"null bid", `{"USDBRL":{"bid":null}}`},
		{"malformed", `{"USDBRL":`},
		{"huge exponent", `{"USDBRL":{"bid":"1e30000000"}}`},
		{"tiny exponent", `{"USDBRL":{"bid":1e-30000000}}`},
		{"too large", `[{"bid":"1000000"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBid([]byte(tt.payload), "USDBRL")
			require.Error(t, err)
		})
	}
}
