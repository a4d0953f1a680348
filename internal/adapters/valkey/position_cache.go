package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
)

const positionKeyPrefix = "position:last:"

// PositionCaches hands out per-device last-known-position caches backed by
// one Cache. Entries expire after ttl.
type PositionCaches struct {
	cache *Cache
	ttl   time.Duration
}

func NewPositionCaches(cache *Cache, ttl time.Duration) *PositionCaches {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PositionCaches{cache: cache, ttl: ttl}
}

func (p *PositionCaches) ForDevice(deviceID string) ports.PositionCache {
	return &PositionCache{cache: p.cache, key: PositionKey(deviceID), ttl: p.ttl}
}

// Last reads the cached position of deviceID.
func (p *PositionCaches) Last(ctx context.Context, deviceID string) (domain.Position, error) {
	return p.ForDevice(deviceID).Get(ctx)
}

// PositionKey is the cache key holding the last known position of deviceID.
func PositionKey(deviceID string) string {
	return positionKeyPrefix + deviceID
}

// cachedPosition is the stored form of a position.
type cachedPosition struct {
	domain.Position
	StoredAt time.Time `json:"stored_at"`
}

// PositionCache implements ports.PositionCache for one device.
type PositionCache struct {
	cache *Cache
	key   string
	ttl   time.Duration
}

func (c *PositionCache) Get(ctx context.Context) (domain.Position, error) {
	data, err := c.cache.Get(ctx, c.key)
	if errors.Is(err, ErrMiss) {
		return domain.Position{}, domain.ErrPositionNotCached
	}
	if err != nil {
		return domain.Position{}, err
	}
	return decodePosition(data)
}

func (c *PositionCache) Set(ctx context.Context, pos domain.Position) error {
	data, err := json.Marshal(cachedPosition{Position: pos, StoredAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return c.cache.setEx(ctx, c.key, data, c.ttl)
}

func decodePosition(data []byte) (domain.Position, error) {
	var cp cachedPosition
	if err := json.Unmarshal(data, &cp); err != nil {
		return domain.Position{}, fmt.Errorf("%w: %w", domain.ErrPositionNotCached, err)
	}
	if !cp.Position.Valid() {
		return domain.Position{}, fmt.Errorf("%w: invalid coordinates", domain.ErrPositionNotCached)
	}
	return cp.Position, nil
}
