package postgres

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/orders-api/internal/domain/order"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		field string
	}{
		{"check", &pgconn.PgError{Code: checkViolation, ConstraintName: "order_items_qty_check"}, "order_items_qty_check"},
		{"too long", &pgconn.PgError{Code: stringTooLong}, "value"},
		{"out of range", &pgconn.PgError{Code: numericOutOfRange, ColumnName: "total_usd"}, "total_usd"},
		{"wrapped", errors.Wrap(&pgconn.PgError{Code: stringTooLong, ColumnName: "sku"}, "exec"), "sku"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err, "insert item")
			var ve *order.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	t.Run("Other", func(t *testing.T) {
		cause := &pgconn.PgError{Code: "40001"}
		err := mapError(cause, "insert item")
		assert.False(t, order.IsValidation(err))
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "insert item")
	})
}
