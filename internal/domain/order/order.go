package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Order is a customer order together with its line items and cached totals.
type Order struct {
	ID         int64
	CustomerID string
	Status     Status
	Items      []Item
	Totals     Totals
	CreatedAt  time.Time
}

// Item is a single order line. LineTotal is always Qty * UnitPrice.
type Item struct {
	ID          int64
	OrderID     int64
	SKU         string
	Description string
	Qty         int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// Totals holds the derived monetary totals of an order and the conversion
// rate they were computed with.
type Totals struct {
	USD   decimal.Decimal
	Local decimal.Decimal
	Rate  decimal.Decimal
}

// Summary is the list view of an order.
type Summary struct {
	ID         int64
	CustomerID string
	TotalUSD   decimal.Decimal
	Status     Status
}

// NewItem is the input for a line item that does not exist yet.
type NewItem struct {
	SKU         string
	Description string
	Qty         int
	UnitPrice   decimal.Decimal
}

// ItemPatch carries a partial item update. Nil fields are left untouched.
type ItemPatch struct {
	SKU         *string
	Description *string
	Qty         *int
	UnitPrice   *decimal.Decimal
}

// RateSource returns the current USD to local currency conversion rate.
// Implementations must always return a usable positive rate.
type RateSource interface {
	Rate(ctx context.Context) decimal.Decimal
}

// Store is the persistence boundary of the order engine.
type Store interface {
	// InTx runs fn inside a single transaction. The transaction is committed
	// when fn returns nil and rolled back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ListOrders returns order summaries by ascending id. An empty customerID
	// disables the filter.
	ListOrders(ctx context.Context, customerID string) ([]Summary, error)
	// GetOrder returns the order with its items from a consistent snapshot.
	GetOrder(ctx context.Context, id int64) (*Order, error)
}

// Tx is the set of writes available inside a Store transaction.
type Tx interface {
	// CreateOrder inserts the order and its items, assigning ids and the
	// creation timestamp.
	CreateOrder(ctx context.Context, o *Order) error
	// LockOrder loads the order with its items and holds a write lock on the
	// order until the transaction ends. Returns ErrOrderNotFound.
	LockOrder(ctx context.Context, id int64) (*Order, error)
	InsertItem(ctx context.Context, it *Item) error
	UpdateItem(ctx context.Context, it *Item) error
	DeleteItem(ctx context.Context, orderID, itemID int64) error
	UpdateTotals(ctx context.Context, orderID int64, t Totals) error
	UpdateCustomer(ctx context.Context, orderID int64, customerID string) error
	UpdateStatus(ctx context.Context, orderID int64, s Status) error
	// DeleteOrder removes the order; its items go with it.
	DeleteOrder(ctx context.Context, id int64) error
}
