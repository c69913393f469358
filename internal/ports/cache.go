package ports

import (
	"context"

	"github.com/viralforge/stakeshare/internal/domain"
)

// AttributionStore is the keyed, TTL-bounded home of client attribution tokens.
// Entry lifetime is anchored to the token's first click and is never extended.
type AttributionStore interface {
	Get(ctx context.Context, clientID string) (*domain.AttributionToken, error)
	// Upsert atomically reads the current token (nil when absent or expired),
	// applies fn and stores the result.
	Upsert(ctx context.Context, clientID string, fn func(current *domain.AttributionToken) domain.AttributionToken) (domain.AttributionToken, error)
	Delete(ctx context.Context, clientID string) error
}

// ClickLimiter throttles click recording per caller key.
type ClickLimiter interface {
	Allow(key string) bool
}
