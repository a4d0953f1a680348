package http

import (
	"context"

	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/gymmap/internal/adapters/nats"
	"github.com/samirrijal/gymmap/internal/adapters/postgres"
	"github.com/samirrijal/gymmap/internal/adapters/valkey"
	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/usecases"
)

// LastPositions reads the last known position of a device.
type LastPositions interface {
	Last(ctx context.Context, deviceID string) (domain.Position, error)
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions  *usecases.SessionService
	Gyms      *usecases.GymService
	Positions LastPositions
	Subjects  natsadapter.Subjects
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache
}
