package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"kitchen-sync/internal/domain"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

// OrdersSQLite is a single-node order store. It has no external change feed,
// so committed mutations are reported to an in-process Emitter instead.
type OrdersSQLite struct {
	db   *sql.DB
	emit Emitter
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// ":memory:" is accepted and gives a private database.
func OpenSQLite(path string, emit Emitter) (*OrdersSQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &OrdersSQLite{db: db, emit: emit}, nil
}

func (r *OrdersSQLite) Close() error { return r.db.Close() }

const selectOrderSQLite = `SELECT id, order_number, COALESCE(customer_name, ''), status, created_at, items FROM orders`

func (r *OrdersSQLite) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanSQLiteOrder(r.db.QueryRowContext(ctx, selectOrderSQLite+` WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

func (r *OrdersSQLite) ListActive(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, selectOrderSQLite+` WHERE status <> 'COMPLETED' ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	defer rows.Close()

	out := []domain.Order{}
	for rows.Next() {
		o, err := scanSQLiteOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrdersSQLite) UpdateStatus(ctx context.Context, id string, expected, next domain.Status, changedBy string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	res, err := tx.ExecContext(ctx, `UPDATE orders SET status=?, updated_at=? WHERE id=? AND status=?`,
		string(next), now, id, string(expected))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM orders WHERE id=?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check order: %w", err)
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO order_status_log(order_id, status, changed_by, changed_at) VALUES (?, ?, ?, ?)`,
		id, string(next), changedBy, now); err != nil {
		return fmt.Errorf("insert status log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.changed(id)
	return nil
}

func (r *OrdersSQLite) Create(ctx context.Context, n domain.NewOrder) (domain.Order, error) {
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, customer_name, status, created_at, items, updated_at)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?)
	`, o.ID, o.OrderNumber, o.CustomerName, string(o.Status), o.CreatedAt, string(items), now); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO order_status_log (order_id, status, changed_by, changed_at) VALUES (?, ?, 'order-service', ?)`,
		o.ID, string(o.Status), now); err != nil {
		return domain.Order{}, fmt.Errorf("insert status log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit: %w", err)
	}
	r.changed(o.ID)
	return o, nil
}

// StatusHistory lists the statuses written for id, oldest first.
func (r *OrdersSQLite) StatusHistory(ctx context.Context, id string) ([]domain.Status, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status FROM order_status_log WHERE order_id=? ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Status
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, domain.Status(s))
	}
	return out, rows.Err()
}

func (r *OrdersSQLite) changed(id string) {
	if r.emit != nil {
		r.emit.Emit(id)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteOrder(row rowScanner) (domain.Order, error) {
	var (
		o      domain.Order
		number sql.NullInt64
		status string
		items  string
	)
	if err := row.Scan(&o.ID, &number, &o.CustomerName, &status, &o.CreatedAt, &items); err != nil {
		return domain.Order{}, err
	}
	if number.Valid {
		n := int(number.Int64)
		o.OrderNumber = &n
	}
	o.Status = domain.Status(status)
	var err error
	if o.Items, err = decodeItems([]byte(items)); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}
