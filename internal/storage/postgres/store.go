// Package postgres implements order.Store on PostgreSQL.
package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/orders-api/internal/domain/order"
)

// GenericConn is satisfied by both pgxpool.Pool and pgx.Tx.
type GenericConn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

var _ order.Store = (*Store)(nil)

// Store implements order.Store. Mutations run in READ COMMITTED transactions
// that take a row lock on the order before reading its items.
type Store struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// NewStore returns a Store that uses the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// InTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return s.withTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(conn pgx.Tx) error {
		return fn(ctx, &txStore{conn: conn, sb: s.sb})
	})
}

func (s *Store) withTx(ctx context.Context, opts pgx.TxOptions, fn func(conn pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// ListOrders returns order summaries by ascending id, filtered by customer
// when customerID is not empty.
func (s *Store) ListOrders(ctx context.Context, customerID string) ([]order.Summary, error) {
	q := s.sb.
		Select("id", "customer_id", "total_usd", "status").
		From("orders").
		OrderBy("id")
	if customerID != "" {
		q = q.Where(sq.Eq{"customer_id": customerID})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build query")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	defer rows.Close()

	list := []order.Summary{}
	for rows.Next() {
		var (
			sum    order.Summary
			status string
		)
		if err := rows.Scan(&sum.ID, &sum.CustomerID, &sum.TotalUSD, &status); err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		sum.Status = order.Status(status)
		list = append(list, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate orders")
	}
	return list, nil
}

// GetOrder reads the order and its items from one read-only snapshot.
func (s *Store) GetOrder(ctx context.Context, id int64) (*order.Order, error) {
	var o *order.Order
	err := s.withTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(conn pgx.Tx) error {
		var err error
		o, err = loadOrder(ctx, conn, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}
