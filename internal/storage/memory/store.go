// Package memory provides an in-process order.Store. Transactions work on a
// private copy of the data set and replace it on commit, so a failed
// transaction leaves nothing behind.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xenking/orders-api/internal/domain/order"
)

// Store is an in-memory order.Store. Transactions are serialized.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

var _ order.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		state: &state{orders: make(map[int64]*order.Order)},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type state struct {
	orders   map[int64]*order.Order
	lastOrd  int64
	lastItem int64
}

func (st *state) clone() *state {
	c := &state{
		orders:   make(map[int64]*order.Order, len(st.orders)),
		lastOrd:  st.lastOrd,
		lastItem: st.lastItem,
	}
	for id, o := range st.orders {
		c.orders[id] = cloneOrder(o)
	}
	return c
}

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	return &c
}

// InTx runs fn against a copy of the data set and publishes the copy when fn
// succeeds.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{st: s.state.clone(), now: s.now}
	if err := fn(ctx, t); err != nil {
		return err
	}
	s.state = t.st
	return nil
}

// ListOrders returns order summaries by ascending id.
func (s *Store) ListOrders(_ context.Context, customerID string) ([]order.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]order.Summary, 0, len(s.state.orders))
	for _, o := range s.state.orders {
		if customerID != "" && o.CustomerID != customerID {
			continue
		}
		out = append(out, order.Summary{
			ID:         o.ID,
			CustomerID: o.CustomerID,
			TotalUSD:   o.Totals.USD,
			Status:     o.Status,
		})
	}
	slices.SortFunc(out, func(a, b order.Summary) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// GetOrder returns a copy of the order with its items.
func (s *Store) GetOrder(_ context.Context, id int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.state.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) get(id int64) (*order.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func (t *tx) CreateOrder(_ context.Context, o *order.Order) error {
	t.st.lastOrd++
	o.ID = t.st.lastOrd
	o.CreatedAt = t.now()
	for i := range o.Items {
		t.st.lastItem++
		o.Items[i].ID = t.st.lastItem
		o.Items[i].OrderID = o.ID
	}
	t.st.orders[o.ID] = cloneOrder(o)
	return nil
}

func (t *tx) LockOrder(_ context.Context, id int64) (*order.Order, error) {
	o, err := t.get(id)
	if err != nil {
		return nil, err
	}
	return cloneOrder(o), nil
}

func (t *tx) InsertItem(_ context.Context, it *order.Item) error {
	o, err := t.get(it.OrderID)
	if err != nil {
		return err
	}
	t.st.lastItem++
	it.ID = t.st.lastItem
	o.Items = append(o.Items, *it)
	return nil
}

func (t *tx) UpdateItem(_ context.Context, it *order.Item) error {
	o, err := t.get(it.OrderID)
	if err != nil {
		return err
	}
	for i := range o.Items {
		if o.Items[i].ID == it.ID {
			o.Items[i] = *it
			return nil
		}
	}
	return order.ErrItemNotFound
}

func (t *tx) DeleteItem(_ context.Context, orderID, itemID int64) error {
	o, err := t.get(orderID)
	if err != nil {
		return err
	}
	n := len(o.Items)
	o.Items = slices.DeleteFunc(o.Items, func(it order.Item) bool { return it.ID == itemID })
	if len(o.Items) == n {
		return order.ErrItemNotFound
	}
	return nil
}

func (t *tx) UpdateTotals(_ context.Context, orderID int64, totals order.Totals) error {
	o, err := t.get(orderID)
	if err != nil {
		return err
	}
	o.Totals = totals
	return nil
}

func (t *tx) UpdateCustomer(_ context.Context, orderID int64, customerID string) error {
	o, err := t.get(orderID)
	if err != nil {
		return err
	}
	o.CustomerID = customerID
	return nil
}

func (t *tx) UpdateStatus(_ context.Context, orderID int64, status order.Status) error {
	o, err := t.get(orderID)
	if err != nil {
		return err
	}
	o.Status = status
	return nil
}

func (t *tx) DeleteOrder(_ context.Context, id int64) error {
	if _, err := t.get(id); err != nil {
		return err
	}
	delete(t.st.orders, id)
	return nil
}
