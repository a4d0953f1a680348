package ports

import (
	"context"

	"github.com/samirrijal/gymmap/internal/core/domain"
)

// EventPublisher publishes session events to a message broker.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event *domain.SessionEvent) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// PositionCache is the last-known-position cache: read on init as the
// default center, written after every successful acquisition. Get returns
// domain.ErrPositionNotCached when nothing usable is stored.
type PositionCache interface {
	Get(ctx context.Context) (domain.Position, error)
	Set(ctx context.Context, pos domain.Position) error
}

// PositionCacheFactory hands out a PositionCache scoped to one device.
type PositionCacheFactory interface {
	ForDevice(deviceID string) PositionCache
}
