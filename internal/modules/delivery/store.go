// README: Hand-off store; claim and progress as single conditional UPDATEs.
package delivery

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"presto/internal/modules/order"
	"presto/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Claim is "set deliveryman_id only if currently null", a compare-and-set
// rather than a read-then-write, so concurrent accepts resolve to one winner.
func (s *Store) Claim(ctx context.Context, orderID, deliverymanID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET deliveryman_id = $1
        WHERE id = $2
          AND status = 'ready'
          AND deliveryman_id IS NULL`,
		string(deliverymanID),
		string(orderID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Advance(ctx context.Context, orderID, deliverymanID types.ID, from, to order.DeliveryStatus, terminal bool) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET delivery_status = $1,
            status     = CASE WHEN $2 THEN 'shipped' ELSE status END,
            shipped_at = CASE WHEN $2 THEN NOW() ELSE shipped_at END
        WHERE id = $3
          AND deliveryman_id = $4
          AND status = 'ready'
          AND delivery_status = $5`,
		string(to),
		terminal,
		string(orderID),
		string(deliverymanID),
		string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *order.Event) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO order_state_events (
            order_id, from_state, to_state, actor_type, actor_id, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID),
		e.FromState,
		e.ToState,
		e.ActorType,
		actorIDPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func actorIDPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
