package ports

import (
	"context"
	"time"

	"demandcast/domain/features"
)

// FeatureCache stores computed feature tables under a caller-built key.
type FeatureCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, key string) (*features.Result, error)
	Put(ctx context.Context, key string, result *features.Result, ttl time.Duration) error
}
