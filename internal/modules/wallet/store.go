// README: Wallet store backed by PostgreSQL; debit is a conditional update.
package wallet

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"presto/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Credit(ctx context.Context, userID types.ID, amount int64) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO wallet_accounts (user_id, balance)
        VALUES ($1, $2)
        ON CONFLICT (user_id) DO UPDATE SET balance = wallet_accounts.balance + $2`,
		string(userID), amount,
	)
	return err
}

// Debit only lands when the balance covers the amount; RowsAffected tells
// the caller whether it did.
func (s *Store) Debit(ctx context.Context, userID types.ID, amount int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE wallet_accounts
        SET balance = balance - $2
        WHERE user_id = $1 AND balance >= $2`,
		string(userID), amount,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Balance(ctx context.Context, userID types.ID) (int64, error) {
	var amt int64
	err := s.db.QueryRow(ctx, `
        SELECT COALESCE(
            (SELECT balance FROM wallet_accounts WHERE user_id = $1), 0
        )`, string(userID),
	).Scan(&amt)
	return amt, err
}
