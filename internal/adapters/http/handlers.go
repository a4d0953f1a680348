package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/usecases"
)

// queryBoundary reads swlat, swlng, nelat and nelng. Corners may come in
// either order.
func queryBoundary(c *fiber.Ctx) (domain.Boundary, error) {
	for _, k := range []string{"swlat", "swlng", "nelat", "nelng"} {
		if c.Query(k) == "" {
			return domain.Boundary{}, fmt.Errorf("%s is required", k)
		}
	}
	b := domain.Boundary{
		SouthWestLat: c.QueryFloat("swlat"),
		SouthWestLng: c.QueryFloat("swlng"),
		NorthEastLat: c.QueryFloat("nelat"),
		NorthEastLng: c.QueryFloat("nelng"),
	}.Normalize()
	if !b.Valid() {
		return domain.Boundary{}, fmt.Errorf("boundary out of range")
	}
	return b, nil
}

// GymsInBoundsHandler returns gyms inside a viewport boundary, closest to
// its center first.
func GymsInBoundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := queryBoundary(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		gyms, err := deps.Gyms.FindInBounds(c.UserContext(), b, usecases.MaxGymLimit)
		if err != nil {
			return errFromDomain(c, err)
		}

		page, pg := paginate(c, gyms, usecases.DefaultGymLimit, usecases.MaxGymLimit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// NearbyGymsHandler returns gyms within a radius of a point.
func NearbyGymsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lon") == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		pos := domain.Position{Latitude: c.QueryFloat("lat"), Longitude: c.QueryFloat("lon")}
		if !pos.Valid() {
			return errBadRequest(c, "lat or lon out of range")
		}
		radius := c.QueryFloat("radius", 1000)
		if radius <= 0 || radius > 10000 {
			return errBadRequest(c, "radius must be between 1 and 10000 meters")
		}
		limit := c.QueryInt("limit", usecases.DefaultGymLimit)

		gyms, err := deps.Gyms.FindNear(c.UserContext(), pos, radius, limit)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(gyms)
	}
}

// SearchGymsHandler performs fuzzy search on gym names.
func SearchGymsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}

		gyms, err := deps.Gyms.Search(c.UserContext(), query, c.QueryInt("limit", 20))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(gyms)
	}
}

// GetGymHandler returns a single gym by ID.
func GetGymHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		gym, err := deps.Gyms.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(gym)
	}
}

// LastPositionHandler returns the last known position of a device.
func LastPositionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Positions == nil {
			return errUnavailable(c, "position cache not available")
		}

		device := c.Params("id")
		pos, err := deps.Positions.Last(c.UserContext(), device)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "no-store")
		return c.JSON(fiber.Map{
			"device_id": device,
			"position":  pos,
		})
	}
}
