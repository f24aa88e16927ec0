package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/orders-api/internal/domain/order"
)

const (
	selectOrderSQL = `SELECT id, customer_id, status, total_usd, total_local, rate, created_at
	FROM orders WHERE id = $1`

	selectItemsSQL = `SELECT id, order_id, sku, description, qty, unit_price, line_total
	FROM order_items WHERE order_id = $1 ORDER BY id`

	insertOrderSQL = `INSERT INTO orders (customer_id, status, total_usd, total_local, rate)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at`

	insertItemSQL = `INSERT INTO order_items (order_id, sku, description, qty, unit_price, line_total)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

	checkViolation    = "23514"
	stringTooLong     = "22001"
	numericOutOfRange = "22003"
)

// txStore implements order.Tx on a single pgx transaction.
type txStore struct {
	conn GenericConn
	sb   sq.StatementBuilderType
}

var _ order.Tx = (*txStore)(nil)

func loadOrder(ctx context.Context, conn GenericConn, id int64, forUpdate bool) (*order.Order, error) {
	query := selectOrderSQL
	if forUpdate {
		query += " FOR UPDATE"
	}

	var (
		o      order.Order
		status string
	)
	err := conn.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.CustomerID, &status, &o.Totals.USD, &o.Totals.Local, &o.Totals.Rate, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, errors.Wrapf(err, "select order %d", id)
	}
	o.Status = order.Status(status)

	rows, err := conn.Query(ctx, selectItemsSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "select items of order %d", id)
	}
	defer rows.Close()

	o.Items = []order.Item{}
	for rows.Next() {
		var it order.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.SKU, &it.Description, &it.Qty, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, errors.Wrap(err, "scan item")
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate items")
	}
	return &o, nil
}

// LockOrder loads the order under SELECT ... FOR UPDATE, serializing writers
// of the same order until the transaction ends.
func (t *txStore) LockOrder(ctx context.Context, id int64) (*order.Order, error) {
	return loadOrder(ctx, t.conn, id, true)
}

func (t *txStore) CreateOrder(ctx context.Context, o *order.Order) error {
	err := t.conn.QueryRow(ctx, insertOrderSQL,
		o.CustomerID, string(o.Status), o.Totals.USD, o.Totals.Local, o.Totals.Rate,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return mapError(err, "insert order")
	}

	batch := &pgx.Batch{}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		batch.Queue(insertItemSQL, it.OrderID, it.SKU, it.Description, it.Qty, it.UnitPrice, it.LineTotal).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&it.ID)
			})
	}
	if err := t.conn.SendBatch(ctx, batch).Close(); err != nil {
		return mapError(err, "insert items")
	}
	return nil
}

func (t *txStore) InsertItem(ctx context.Context, it *order.Item) error {
	err := t.conn.QueryRow(ctx, insertItemSQL,
		it.OrderID, it.SKU, it.Description, it.Qty, it.UnitPrice, it.LineTotal,
	).Scan(&it.ID)
	if err != nil {
		return mapError(err, "insert item")
	}
	return nil
}

func (t *txStore) UpdateItem(ctx context.Context, it *order.Item) error {
	return t.update(ctx, t.sb.Update("order_items").
		SetMap(map[string]any{
			"sku":         it.SKU,
			"description": it.Description,
			"qty":         it.Qty,
			"unit_price":  it.UnitPrice,
			"line_total":  it.LineTotal,
		}).
		Where(sq.Eq{"id": it.ID, "order_id": it.OrderID}),
		order.ErrItemNotFound, "update item")
}

func (t *txStore) DeleteItem(ctx context.Context, orderID, itemID int64) error {
	tag, err := t.conn.Exec(ctx, `DELETE FROM order_items WHERE id = $1 AND order_id = $2`, itemID, orderID)
	if err != nil {
		return mapError(err, "delete item")
	}
	if tag.RowsAffected() == 0 {
		return order.ErrItemNotFound
	}
	return nil
}

func (t *txStore) UpdateTotals(ctx context.Context, orderID int64, totals order.Totals) error {
	return t.updateOrder(ctx, orderID, map[string]any{
		"total_usd":   totals.USD,
		"total_local": totals.Local,
		"rate":        totals.Rate,
	}, "update totals")
}

func (t *txStore) UpdateCustomer(ctx context.Context, orderID int64, customerID string) error {
	return t.updateOrder(ctx, orderID, map[string]any{"customer_id": customerID}, "update customer")
}

func (t *txStore) UpdateStatus(ctx context.Context, orderID int64, status order.Status) error {
	return t.updateOrder(ctx, orderID, map[string]any{"status": string(status)}, "update status")
}

// DeleteOrder removes the order; the foreign key cascades to its items.
func (t *txStore) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := t.conn.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete order")
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func (t *txStore) updateOrder(ctx context.Context, id int64, set map[string]any, op string) error {
	return t.update(ctx, t.sb.Update("orders").SetMap(set).Where(sq.Eq{"id": id}), order.ErrOrderNotFound, op)
}

func (t *txStore) update(ctx context.Context, q sq.UpdateBuilder, notFound error, op string) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrapf(err, "%s: build query", op)
	}
	tag, err := t.conn.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, op)
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

// mapError reports rejected values (CHECK violations, over-long strings,
// numeric overflow) as validation errors.
func mapError(err error, op string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return errors.Wrap(err, op)
	}
	field := pgErr.ColumnName
	if field == "" {
		field = "value"
	}
	switch pgErr.Code {
	case checkViolation:
		return &order.ValidationError{Field: pgErr.ConstraintName, Reason: "check failed"}
	case stringTooLong:
		return &order.ValidationError{Field: field, Reason: "is too long"}
	case numericOutOfRange:
		return &order.ValidationError{Field: field, Reason: "is out of range"}
	}
	return errors.Wrap(err, op)
}
