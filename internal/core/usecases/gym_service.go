package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
	"github.com/samirrijal/gymmap/internal/pkg/geospatial"
	"github.com/samirrijal/gymmap/internal/pkg/metrics"
)

const (
	DefaultGymLimit = 50
	MaxGymLimit     = 200
)

// GymService handles gym lookups for the visible viewport.
type GymService struct {
	gyms  ports.GymRepository
	cache ports.CacheService
}

// NewGymService creates a new GymService. cache may be nil.
func NewGymService(gyms ports.GymRepository, cache ports.CacheService) *GymService {
	return &GymService{gyms: gyms, cache: cache}
}

// FindInBounds returns gyms inside b, each with its distance from the
// boundary center, closest first.
func (s *GymService) FindInBounds(ctx context.Context, b domain.Boundary, limit int) ([]domain.Gym, error) {
	b = b.Normalize()
	if !b.Valid() {
		return nil, fmt.Errorf("invalid boundary %+v", b)
	}
	if limit <= 0 {
		limit = DefaultGymLimit
	}
	if limit > MaxGymLimit {
		limit = MaxGymLimit
	}

	cacheKey := fmt.Sprintf("gyms:bounds:%.4f:%.4f:%.4f:%.4f:%d",
		b.SouthWestLat, b.SouthWestLng, b.NorthEastLat, b.NorthEastLng, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var gyms []domain.Gym
			if err := json.Unmarshal(data, &gyms); err == nil {
				metrics.CacheHits.WithLabelValues("gyms_in_bounds").Inc()
				return gyms, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("gyms_in_bounds").Inc()
	}

	gyms, err := s.gyms.FindInBounds(ctx, b, limit)
	if err != nil {
		return nil, err
	}

	center := b.Center()
	for i := range gyms {
		d := geospatial.Distance(center, gyms[i].Location)
		gyms[i].Distance = &d
	}
	sort.SliceStable(gyms, func(i, j int) bool {
		return *gyms[i].Distance < *gyms[j].Distance
	})

	// Gyms rarely move; 5 minutes is plenty.
	if s.cache != nil {
		if data, err := json.Marshal(gyms); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}

	return gyms, nil
}

// FindNear returns gyms within radiusMeters of pos.
func (s *GymService) FindNear(ctx context.Context, pos domain.Position, radiusMeters float64, limit int) ([]domain.Gym, error) {
	if radiusMeters <= 0 {
		radiusMeters = 1000
	}
	gyms, err := s.FindInBounds(ctx, geospatial.BoundingBox(pos, radiusMeters), limit)
	if err != nil {
		return nil, err
	}

	// The box corners lie outside the circle, and a clamped box is not
	// centered on pos.
	out := gyms[:0:0]
	for _, g := range gyms {
		d := geospatial.Distance(pos, g.Location)
		if d <= radiusMeters {
			g.Distance = &d
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].Distance < *out[j].Distance
	})
	return out, nil
}

// Search performs fuzzy name search on gyms.
func (s *GymService) Search(ctx context.Context, query string, limit int) ([]domain.Gym, error) {
	if query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	if limit <= 0 || limit > DefaultGymLimit {
		limit = 20
	}

	cacheKey := fmt.Sprintf("gyms:search:%s:%d", query, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var gyms []domain.Gym
			if err := json.Unmarshal(data, &gyms); err == nil {
				metrics.CacheHits.WithLabelValues("gyms_search").Inc()
				return gyms, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("gyms_search").Inc()
	}

	gyms, err := s.gyms.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(gyms); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}

	return gyms, nil
}

// GetByID returns a single gym.
func (s *GymService) GetByID(ctx context.Context, id string) (*domain.Gym, error) {
	cacheKey := "gyms:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var gym domain.Gym
			if err := json.Unmarshal(data, &gym); err == nil {
				return &gym, nil
			}
		}
	}

	gym, err := s.gyms.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(gym); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}

	return gym, nil
}
