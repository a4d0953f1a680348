package ports

import (
	"context"

	"github.com/samirrijal/gymmap/internal/core/domain"
)

// GymRepository persists gyms.
type GymRepository interface {
	Upsert(ctx context.Context, gym *domain.Gym) error
	UpsertBatch(ctx context.Context, gyms []domain.Gym) error
	GetByID(ctx context.Context, id string) (*domain.Gym, error)
	// FindInBounds returns gyms inside b, closest to its center first.
	FindInBounds(ctx context.Context, b domain.Boundary, limit int) ([]domain.Gym, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Gym, error)
}
