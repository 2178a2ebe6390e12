package cache

import (
	"context"
	"time"

	"stokgudang/backend/internal/domain"
)

// StockCache holds per-location stock level projections. Mutating paths
// invalidate the touched location so readers never see stale levels for
// longer than the TTL.
type StockCache interface {
	Get(ctx context.Context, locationID string) ([]domain.StockLevel, bool, error)
	Set(ctx context.Context, locationID string, levels []domain.StockLevel, ttl time.Duration) error
	Invalidate(ctx context.Context, locationIDs ...string) error
}

type NoopStockCache struct{}

func (NoopStockCache) Get(_ context.Context, _ string) ([]domain.StockLevel, bool, error) {
	return nil, false, nil
}

func (NoopStockCache) Set(_ context.Context, _ string, _ []domain.StockLevel, _ time.Duration) error {
	return nil
}

func (NoopStockCache) Invalidate(_ context.Context, _ ...string) error {
	return nil
}
