package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kitchen-sync/internal/domain"
)

//go:embed schema_pg.sql
var schemaPG string

// OrdersPG is the Postgres order store. Every committed mutation also issues
// pg_notify on channel with the order id as payload.
type OrdersPG struct {
	pool    *pgxpool.Pool
	channel string
}

func NewOrdersPG(pool *pgxpool.Pool, channel string) *OrdersPG {
	return &OrdersPG{pool: pool, channel: channel}
}

func (r *OrdersPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaPG); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const selectOrder = `SELECT id, order_number, COALESCE(customer_name, ''), status, created_at, items FROM orders`

func (r *OrdersPG) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, selectOrder+` WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

func (r *OrdersPG) ListActive(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, selectOrder+` WHERE status <> 'COMPLETED' ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	defer rows.Close()

	out := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrdersPG) UpdateStatus(ctx context.Context, id string, expected, next domain.Status, changedBy string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2
	`, id, string(expected), string(next))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check order: %w", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log(order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, now())
	`, id, string(next), changedBy); err != nil {
		return fmt.Errorf("insert status log: %w", err)
	}
	if err := r.notify(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *OrdersPG) Create(ctx context.Context, n domain.NewOrder) (domain.Order, error) {
	if err := n.Validate(); err != nil {
		return domain.Order{}, err
	}
	items, err := encodeItems(n.Items)
	if err != nil {
		return domain.Order{}, err
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	o := domain.Order{
		ID:           uuid.NewString(),
		OrderNumber:  n.OrderNumber,
		CustomerName: n.CustomerName,
		Status:       domain.StatusPending,
		CreatedAt:    n.CreatedAt.UnixMilli(),
		Items:        n.Items,
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders (id, order_number, customer_name, status, created_at, items, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, now())
	`, o.ID, o.OrderNumber, o.CustomerName, string(o.Status), o.CreatedAt, items); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, 'order-service', now())
	`, o.ID, string(o.Status)); err != nil {
		return domain.Order{}, fmt.Errorf("insert status log: %w", err)
	}
	if err := r.notify(ctx, tx, o.ID); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit: %w", err)
	}
	return o, nil
}

// notify is transactional: Postgres delivers it only if tx commits.
func (r *OrdersPG) notify(ctx context.Context, tx pgx.Tx, id string) error {
	if r.channel == "" {
		return nil
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, r.channel, id); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o      domain.Order
		number *int32
		status string
		items  []byte
	)
	if err := row.Scan(&o.ID, &number, &o.CustomerName, &status, &o.CreatedAt, &items); err != nil {
		return domain.Order{}, err
	}
	if number != nil {
		n := int(*number)
		o.OrderNumber = &n
	}
	o.Status = domain.Status(status)
	var err error
	if o.Items, err = decodeItems(items); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}
