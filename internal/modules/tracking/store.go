// README: Courier tracking store backed by Redis GEO.
package tracking

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"presto/internal/types"
)

const (
	captainGeoKey  = "tracking:captains"
	captainSeenKey = "tracking:captains:seen"
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) Record(ctx context.Context, id types.ID, pos types.Point) error {
	pipe := s.redis.Pipeline()
	pipe.GeoAdd(ctx, captainGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	})
	pipe.HSet(ctx, captainSeenKey, string(id), time.Now().UTC().Format(time.RFC3339))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) Remove(ctx context.Context, id types.ID) error {
	pipe := s.redis.Pipeline()
	pipe.ZRem(ctx, captainGeoKey, string(id))
	pipe.HDel(ctx, captainSeenKey, string(id))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, captainGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}
