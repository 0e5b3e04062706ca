// README: Black-box wallet capability: credit and debit against a balance row.
package wallet

import (
	"context"
	"errors"

	"presto/internal/types"
)

var ErrInsufficientFunds = errors.New("insufficient wallet balance")

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) Credit(ctx context.Context, userID types.ID, amount types.Money) error {
	if amount.Amount < 0 {
		return errors.New("negative credit amount")
	}
	return s.store.Credit(ctx, userID, amount.Amount)
}

func (s *Service) Debit(ctx context.Context, userID types.ID, amount types.Money) error {
	if amount.Amount < 0 {
		return errors.New("negative debit amount")
	}
	ok, err := s.store.Debit(ctx, userID, amount.Amount)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientFunds
	}
	return nil
}

func (s *Service) Balance(ctx context.Context, userID types.ID) (types.Money, error) {
	amt, err := s.store.Balance(ctx, userID)
	if err != nil {
		return types.Money{}, err
	}
	return types.Money{Amount: amt, Currency: "EGP"}, nil
}
