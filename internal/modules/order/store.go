// README: Order store backed by PostgreSQL; all writes are conditional updates.
package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"presto/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, o *Order, items []Item) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
        INSERT INTO orders (
            id, customer_id, vendor_id, deliveryman_id, status, status_version,
            delivery_status, payment_method, total_price, address, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(o.ID),
		string(o.CustomerID),
		string(o.VendorID),
		toStringPtr(o.DeliverymanID),
		string(o.Status),
		o.StatusVersion,
		string(o.DeliveryStatus),
		string(o.PaymentMethod),
		o.TotalPrice.Amount,
		o.Address,
		o.CreatedAt,
	)
	if err != nil {
		return err
	}
	for _, it := range items {
		_, err = tx.Exec(ctx, `
            INSERT INTO order_items (order_id, product_id, quantity, price)
            VALUES ($1, $2, $3, $4)`,
			string(it.OrderID), string(it.ProductID), it.Quantity, it.Price.Amount,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, customer_id, vendor_id, deliveryman_id, status, status_version,
               delivery_status, payment_method, total_price, address,
               created_at, confirmed_at, ready_at, shipped_at, delivered_at
        FROM orders
        WHERE id = $1`, string(id),
	)

	var o Order
	var deliverymanID sql.NullString
	var confirmedAt, readyAt, shippedAt, deliveredAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.CustomerID, &o.VendorID, &deliverymanID, &o.Status, &o.StatusVersion,
		&o.DeliveryStatus, &o.PaymentMethod, &o.TotalPrice.Amount, &o.Address,
		&o.CreatedAt, &confirmedAt, &readyAt, &shippedAt, &deliveredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if deliverymanID.Valid {
		d := types.ID(deliverymanID.String)
		o.DeliverymanID = &d
	}
	o.ConfirmedAt = toTimePtr(confirmedAt)
	o.ReadyAt = toTimePtr(readyAt)
	o.ShippedAt = toTimePtr(shippedAt)
	o.DeliveredAt = toTimePtr(deliveredAt)
	if o.TotalPrice.Currency == "" {
		o.TotalPrice.Currency = "EGP"
	}
	return &o, nil
}

func (s *Store) Items(ctx context.Context, id types.ID) ([]Item, error) {
	rows, err := s.db.Query(ctx, `
        SELECT order_id, product_id, quantity, price
        FROM order_items
        WHERE order_id = $1`, string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Quantity, &it.Price.Amount); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateStatus is the compare-and-set the lifecycle machine serializes on:
// the row must still carry (from, version) for the write to land.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET status = $1,
            status_version = status_version + 1,
            confirmed_at = CASE WHEN $1 = 'confirmed' THEN NOW() ELSE confirmed_at END,
            ready_at     = CASE WHEN $1 = 'ready'     THEN NOW() ELSE ready_at END,
            shipped_at   = CASE WHEN $1 = 'shipped'   THEN NOW() ELSE shipped_at END,
            delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END
        WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to),
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeletePending removes the order only while it is still pending. Items go
// with it via ON DELETE CASCADE.
func (s *Store) DeletePending(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        DELETE FROM orders WHERE id = $1 AND status = 'pending'`, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO order_state_events (
            order_id, from_state, to_state, actor_type, actor_id, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID),
		e.FromState,
		e.ToState,
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
