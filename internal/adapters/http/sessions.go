package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/gymmap/internal/core/usecases"
)

type createSessionRequest struct {
	DeviceID string `json:"device_id"`
}

type panRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type zoomRequest struct {
	Level int `json:"level"`
}

// CreateSessionHandler mounts a map session for a device.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createSessionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.DeviceID == "" {
			return errBadRequest(c, "device_id is required")
		}
		if len(req.DeviceID) > 128 {
			return errBadRequest(c, "device_id too long (max 128 characters)")
		}

		snap, err := deps.Sessions.Open(c.UserContext(), req.DeviceID)
		if err != nil {
			return errFromDomain(c, err)
		}

		LoggerFromCtx(c.UserContext()).Info("session created", "session", snap.ID, "device", snap.DeviceID)
		c.Location("/v1/sessions/" + snap.ID)
		return c.Status(fiber.StatusCreated).JSON(snap)
	}
}

// ListSessionsHandler returns the open sessions, oldest first.
func ListSessionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, pg := paginate(c, deps.Sessions.List(), 50, 200)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetSessionHandler returns the snapshot of a single session.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// PanSessionHandler drags a session's map and returns the settled snapshot.
func PanSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req panRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.DX == 0 && req.DY == 0 {
			return errBadRequest(c, "dx or dy must be non-zero")
		}

		snap, err := deps.Sessions.Pan(c.UserContext(), c.Params("id"), req.DX, req.DY)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// ZoomSessionHandler sets a session's map level and returns the settled
// snapshot.
func ZoomSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req zoomRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Level <= 0 || req.Level > usecases.MaxLevel {
			return errBadRequest(c, fmt.Sprintf("level must be between 1 and %d", usecases.MaxLevel))
		}

		snap, err := deps.Sessions.Zoom(c.UserContext(), c.Params("id"), req.Level)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// ClickMarkerHandler clicks the marker of a gym inside a session.
func ClickMarkerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Sessions.Click(c.UserContext(), c.Params("id"), c.Params("gym"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// CloseSessionHandler tears a session down.
func CloseSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
