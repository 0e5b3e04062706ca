// README: Courier tracking service; thin facade over the GEO store.
package tracking

import (
	"context"

	"presto/internal/types"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) Record(ctx context.Context, captainID types.ID, pos types.Point) error {
	return s.store.Record(ctx, captainID, pos)
}

func (s *Service) Remove(ctx context.Context, captainID types.ID) error {
	return s.store.Remove(ctx, captainID)
}

func (s *Service) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	return s.store.Nearby(ctx, p, radiusKm)
}
