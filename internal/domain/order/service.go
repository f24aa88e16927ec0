package order

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxCustomerIDLen = 64

// CreateOrderRequest holds the input for creating an order.
type CreateOrderRequest struct {
	CustomerID string
	Items      []NewItem
}

// ItemResult is returned by item mutations: the affected item (nil after a
// delete) and the order totals committed with it.
type ItemResult struct {
	Item   *Item
	Totals Totals
}

// Service owns the order totals invariant. Every mutation recalculates and
// persists totals in the same transaction as the change that triggered it.
type Service struct {
	store  Store
	rates  RateSource
	tracer trace.Tracer
}

// NewService creates an order Service over the given store and rate source.
func NewService(store Store, rates RateSource, tp trace.TracerProvider) *Service {
	return &Service{
		store:  store,
		rates:  rates,
		tracer: tp.Tracer("github.com/xenking/orders-api/internal/domain/order"),
	}
}

func (s *Service) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "order."+name, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreateOrder validates the request, prices every item, converts the total at
// the current rate and persists the order with its items as one unit.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (_ *Order, err error) {
	ctx, span := s.start(ctx, "CreateOrder", attribute.String("customer_id", req.CustomerID))
	defer func() { finish(span, err) }()

	if err := validateCustomerID(req.CustomerID); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	items := make([]Item, len(req.Items))
	for i, it := range req.Items {
		if err := validateNewItem(it); err != nil {
			return nil, err
		}
		items[i] = buildItem(0, it)
	}

	rate := s.rates.Rate(ctx)
	o := &Order{
		CustomerID: req.CustomerID,
		Status:     StatusPending,
		Items:      items,
		Totals:     Recalculate(items, rate),
	}
	if err := validateTotals(o.Totals); err != nil {
		return nil, err
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateOrder(ctx, o)
	})
	if err != nil {
		return nil, storageFailure("create order", err)
	}
	span.SetAttributes(attribute.Int64("order_id", o.ID))
	return o, nil
}

// ListOrders returns order summaries ordered by id, optionally filtered by
// customer. Totals are returned as last persisted.
func (s *Service) ListOrders(ctx context.Context, customerID string) (_ []Summary, err error) {
	ctx, span := s.start(ctx, "ListOrders")
	defer func() { finish(span, err) }()

	list, err := s.store.ListOrders(ctx, customerID)
	if err != nil {
		return nil, storageFailure("list orders", err)
	}
	return list, nil
}

// GetOrder returns the order with its items.
func (s *Service) GetOrder(ctx context.Context, id int64) (_ *Order, err error) {
	ctx, span := s.start(ctx, "GetOrder", attribute.Int64("order_id", id))
	defer func() { finish(span, err) }()

	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, storageFailure("get order", err)
	}
	return o, nil
}

// UpdateCustomer changes the customer of an order when customerID is set.
// Totals are not touched.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, customerID *string) (_ *Order, err error) {
	ctx, span := s.start(ctx, "UpdateCustomer", attribute.Int64("order_id", id))
	defer func() { finish(span, err) }()

	var o *Order
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if o, err = tx.LockOrder(ctx, id); err != nil {
			return err
		}
		if customerID == nil {
			return nil
		}
		if err := validateCustomerID(*customerID); err != nil {
			return err
		}
		if err := tx.UpdateCustomer(ctx, id, *customerID); err != nil {
			return err
		}
		o.CustomerID = *customerID
		return nil
	})
	if err != nil {
		return nil, storageFailure("update customer", err)
	}
	return o, nil
}

// SetStatus moves a PENDING order to another status.
func (s *Service) SetStatus(ctx context.Context, id int64, status Status) (_ *Order, err error) {
	ctx, span := s.start(ctx, "SetStatus", attribute.Int64("order_id", id), attribute.String("status", string(status)))
	defer func() { finish(span, err) }()

	var o *Order
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if o, err = tx.LockOrder(ctx, id); err != nil {
			return err
		}
		if !status.Valid() {
			return &ValidationError{Field: "status", Reason: "must be one of PENDING, CONFIRMED, CANCELLED"}
		}
		if o.Status == status {
			return nil
		}
		if o.Status != StatusPending {
			return ErrStatusLocked
		}
		if err := tx.UpdateStatus(ctx, id, status); err != nil {
			return err
		}
		o.Status = status
		return nil
	})
	if err != nil {
		return nil, storageFailure("set status", err)
	}
	return o, nil
}

// DeleteOrder removes a PENDING order and all of its items.
func (s *Service) DeleteOrder(ctx context.Context, id int64) (err error) {
	ctx, span := s.start(ctx, "DeleteOrder", attribute.Int64("order_id", id))
	defer func() { finish(span, err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if o.Status != StatusPending {
			return ErrNotPending
		}
		return tx.DeleteOrder(ctx, id)
	})
	return storageFailure("delete order", err)
}

// AddItem appends an item to the order and commits it together with the
// recalculated totals.
func (s *Service) AddItem(ctx context.Context, orderID int64, in NewItem) (_ *ItemResult, err error) {
	ctx, span := s.start(ctx, "AddItem", attribute.Int64("order_id", orderID))
	defer func() { finish(span, err) }()

	rate := s.rates.Rate(ctx)
	var res ItemResult
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := validateNewItem(in); err != nil {
			return err
		}
		it := buildItem(orderID, in)
		if err := tx.InsertItem(ctx, &it); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
		res.Item = &it
		return s.commitTotals(ctx, tx, o, rate, &res)
	})
	if err != nil {
		return nil, storageFailure("add item", err)
	}
	return &res, nil
}

// UpdateItem applies a partial update to an item of the order and commits it
// together with the recalculated totals.
func (s *Service) UpdateItem(ctx context.Context, orderID, itemID int64, patch ItemPatch) (_ *ItemResult, err error) {
	ctx, span := s.start(ctx, "UpdateItem", attribute.Int64("order_id", orderID), attribute.Int64("item_id", itemID))
	defer func() { finish(span, err) }()

	rate := s.rates.Rate(ctx)
	var res ItemResult
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		idx := o.itemIndex(itemID)
		if idx < 0 {
			return ErrItemNotFound
		}
		it := o.Items[idx]
		if err := patch.apply(&it); err != nil {
			return err
		}
		if err := tx.UpdateItem(ctx, &it); err != nil {
			return err
		}
		o.Items[idx] = it
		res.Item = &it
		return s.commitTotals(ctx, tx, o, rate, &res)
	})
	if err != nil {
		return nil, storageFailure("update item", err)
	}
	return &res, nil
}

// DeleteItem removes an item from the order and commits the recalculated
// totals with it. Removing the last item leaves the order at zero.
func (s *Service) DeleteItem(ctx context.Context, orderID, itemID int64) (_ *ItemResult, err error) {
	ctx, span := s.start(ctx, "DeleteItem", attribute.Int64("order_id", orderID), attribute.Int64("item_id", itemID))
	defer func() { finish(span, err) }()

	rate := s.rates.Rate(ctx)
	var res ItemResult
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		idx := o.itemIndex(itemID)
		if idx < 0 {
			return ErrItemNotFound
		}
		if err := tx.DeleteItem(ctx, orderID, itemID); err != nil {
			return err
		}
		o.Items = append(o.Items[:idx], o.Items[idx+1:]...)
		return s.commitTotals(ctx, tx, o, rate, &res)
	})
	if err != nil {
		return nil, storageFailure("delete item", err)
	}
	return &res, nil
}

func (s *Service) commitTotals(ctx context.Context, tx Tx, o *Order, rate decimal.Decimal, res *ItemResult) error {
	totals := Recalculate(o.Items, rate)
	if err := validateTotals(totals); err != nil {
		return err
	}
	if err := tx.UpdateTotals(ctx, o.ID, totals); err != nil {
		return err
	}
	res.Totals = totals
	return nil
}

func (o *Order) itemIndex(itemID int64) int {
	for i := range o.Items {
		if o.Items[i].ID == itemID && o.Items[i].OrderID == o.ID {
			return i
		}
	}
	return -1
}

func validateCustomerID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return &ValidationError{Field: "customer_id", Reason: "is required"}
	case len(id) > maxCustomerIDLen:
		return &ValidationError{Field: "customer_id", Reason: "must be at most 64 characters"}
	}
	return nil
}
