package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/gymmap/internal/core/domain"
)

const upsertGymSQL = `
	INSERT INTO gyms (id, name, address, phone, location, tags)
	VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography, $7)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, address = EXCLUDED.address, phone = EXCLUDED.phone,
	    location = EXCLUDED.location, tags = EXCLUDED.tags, updated_at = now()
`

// GymRepo implements ports.GymRepository with pgx and PostGIS.
type GymRepo struct {
	db *DB
}

// NewGymRepo creates a new GymRepo.
func NewGymRepo(db *DB) *GymRepo {
	return &GymRepo{db: db}
}

// Upsert inserts or updates a single gym.
func (r *GymRepo) Upsert(ctx context.Context, g *domain.Gym) error {
	_, err := r.db.Pool.Exec(ctx, upsertGymSQL, gymArgs(g)...)
	return err
}

// UpsertBatch inserts many gyms using pgx.Batch.
func (r *GymRepo) UpsertBatch(ctx context.Context, gyms []domain.Gym) error {
	batch := &pgx.Batch{}
	for i := range gyms {
		batch.Queue(upsertGymSQL, gymArgs(&gyms[i])...)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range gyms {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

func gymArgs(g *domain.Gym) []any {
	tags := g.Tags
	if tags == nil {
		tags = []string{}
	}
	return []any{g.ID, g.Name, g.Address, g.Phone, g.Location.Longitude, g.Location.Latitude, tags}
}

// GetByID returns a gym by ID.
func (r *GymRepo) GetByID(ctx context.Context, id string) (*domain.Gym, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(address, ''), COALESCE(phone, ''),
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lon,
		       tags, created_at
		FROM gyms WHERE id = $1
	`, id)
	g, err := scanGym(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrGymNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// FindInBounds returns gyms inside b, closest to its center first.
func (r *GymRepo) FindInBounds(ctx context.Context, b domain.Boundary, limit int) ([]domain.Gym, error) {
	center := b.Center()
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, COALESCE(address, ''), COALESCE(phone, ''),
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lon,
		       tags, created_at
		FROM gyms
		WHERE location::geometry && ST_MakeEnvelope($1, $2, $3, $4, 4326)
		ORDER BY location <-> ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography
		LIMIT $7
	`, b.SouthWestLng, b.SouthWestLat, b.NorthEastLng, b.NorthEastLat,
		center.Longitude, center.Latitude, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gyms []domain.Gym
	for rows.Next() {
		g, err := scanGym(rows)
		if err != nil {
			return nil, err
		}
		gyms = append(gyms, *g)
	}
	return gyms, rows.Err()
}

func scanGym(row pgx.Row) (*domain.Gym, error) {
	var g domain.Gym
	if err := row.Scan(
		&g.ID, &g.Name, &g.Address, &g.Phone,
		&g.Location.Latitude, &g.Location.Longitude,
		&g.Tags, &g.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &g, nil
}

// Search performs fuzzy name search, best match first.
func (r *GymRepo) Search(ctx context.Context, query string, limit int) ([]domain.Gym, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, COALESCE(address, ''), COALESCE(phone, ''),
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lon,
		       tags, created_at
		FROM gyms
		WHERE name %> $1 OR name ILIKE '%' || $1 || '%'
		ORDER BY similarity(name, $1) DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gyms []domain.Gym
	for rows.Next() {
		g, err := scanGym(rows)
		if err != nil {
			return nil, err
		}
		gyms = append(gyms, *g)
	}
	return gyms, rows.Err()
}

// Count returns the number of stored gyms.
func (r *GymRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM gyms`).Scan(&n)
	return n, err
}
