package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/orders-api/internal/domain/order"
)

const (
	msgOrderNotFound = "Order not found"
	msgItemNotFound  = "Item not found for this order"
)

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) { encodeMessage(e, "error", msg) })
}

// writeServiceError maps an order engine error to an HTTP response.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *order.ValidationError
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, msgOrderNotFound)
	case errors.Is(err, order.ErrItemNotFound):
		writeError(w, http.StatusNotFound, msgItemNotFound)
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, http.StatusBadRequest, "At least one item is required")
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, errBadBody):
		writeError(w, http.StatusBadRequest, errBadBody.Error())
	case errors.Is(err, order.ErrNotPending):
		writeError(w, http.StatusConflict, "Only PENDING orders can be deleted")
	case errors.Is(err, order.ErrStatusLocked):
		writeError(w, http.StatusConflict, "Order status can only change while PENDING")
	case errors.Is(err, order.ErrTransient):
		zctx.From(r.Context()).Warn("Storage unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
