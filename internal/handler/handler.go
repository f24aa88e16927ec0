// Package handler exposes the order engine over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/orders-api/internal/domain/order"
)

// Handler serves the orders API, delegating business logic to the order
// service.
type Handler struct {
	orders *order.Service
	rates  order.RateSource
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(orders *order.Service, rates order.RateSource) *Handler {
	return &Handler{
		orders: orders,
		rates:  rates,
	}
}

// Routes returns the API router. Mount it under the API prefix.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Post("/orders", h.CreateOrder)
	r.Get("/orders", h.ListOrders)
	r.Get("/orders/{id}", h.GetOrder)
	r.Put("/orders/{id}", h.UpdateOrder)
	r.Delete("/orders/{id}", h.DeleteOrder)
	r.Put("/orders/{id}/status", h.SetStatus)

	r.Post("/orders/{id}/items", h.AddItem)
	r.Put("/orders/{id}/items/{itemId}", h.UpdateItem)
	r.Delete("/orders/{id}/items/{itemId}", h.DeleteItem)

	r.Get("/health/rate", h.Rate)
	return r
}

// Rate reports the rate the next mutation would use.
func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	rate := h.rates.Rate(r.Context())
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("rate", func(e *jx.Encoder) { e.Float64(rate.InexactFloat64()) })
		})
	})
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
