package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/orders-api/internal/domain/order"
)

func itemResponse(message string, res *order.ItemResult) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
			if res.Item != nil {
				e.Field("item", func(e *jx.Encoder) { encodeItem(e, res.Item) })
			}
			e.Field("order_totals", func(e *jx.Encoder) { encodeTotals(e, res.Totals) })
		})
	}
}

func decodeItemBody(w http.ResponseWriter, r *http.Request) (itemBody, error) {
	var b itemBody
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		return decodeItemField(d, key, &b)
	})
	return b, err
}

// AddItem handles POST /orders/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, msgOrderNotFound)
		return
	}

	b, err := decodeItemBody(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	in, err := b.newItem()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.orders.AddItem(r.Context(), orderID, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/orders/%d/items/%d", orderID, res.Item.ID))
	writeJSON(w, http.StatusCreated, itemResponse("Item added", res))
}

// UpdateItem handles PUT /orders/{id}/items/{itemId} with partial semantics.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, msgOrderNotFound)
		return
	}
	itemID, ok := pathID(r, "itemId")
	if !ok {
		writeError(w, http.StatusNotFound, msgItemNotFound)
		return
	}

	b, err := decodeItemBody(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.orders.UpdateItem(r.Context(), orderID, itemID, b.patch())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	res.Item = nil
	writeJSON(w, http.StatusOK, itemResponse("Item updated", res))
}

// DeleteItem handles DELETE /orders/{id}/items/{itemId}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, msgOrderNotFound)
		return
	}
	itemID, ok := pathID(r, "itemId")
	if !ok {
		writeError(w, http.StatusNotFound, msgItemNotFound)
		return
	}

	res, err := h.orders.DeleteItem(r.Context(), orderID, itemID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse("Item deleted", res))
}
