package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/orders-api/internal/domain/order"
)

// CreateOrder handles POST /orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var body createOrderBody
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		return decodeCreateOrder(d, key, &body)
	}); err != nil {
		writeServiceError(w, r, err)
		return
	}

	items := make([]order.NewItem, len(body.Items))
	for i, b := range body.Items {
		it, err := b.newItem()
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		items[i] = it
	}

	o, err := h.orders.CreateOrder(r.Context(), order.CreateOrderRequest{
		CustomerID: body.CustomerID,
		Items:      items,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// ListOrders handles GET /orders with an optional customer_id filter.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListOrders(r.Context(), r.URL.Query().Get("customer_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSummaries(e, list) })
}

// GetOrder handles GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, msgOrderNotFound)
		return
	}
	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// UpdateOrder handles PUT /orders/{id}. Only customer_id can change.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, msgOrderNotFound)
		return
	}

	var customerID *string
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "customer_id" {
			return d.Skip()
		}
		s, err := d.Str()
		customerID = &s
		return err
	}); err != nil {
		writeServiceError(w, r, err)
		return
	}

	o, err := h.orders.UpdateCustomer(r.Context(), id, customerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// SetStatus handles PUT /orders/{id}/status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, msgOrderNotFound)
		return
	}

	var status string
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		s, err := d.Str()
		status = s
		return err
	}); err != nil {
		writeServiceError(w, r, err)
		return
	}

	o, err := h.orders.SetStatus(r.Context(), id, order.Status(status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// DeleteOrder handles DELETE /orders/{id}.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, msgOrderNotFound)
		return
	}
	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeMessage(e, "message", "Order deleted") })
}
