// Package canvas is a headless map surface: it keeps viewport state,
// projects it with Web Mercator tile math and delivers idle events the way
// a browser map SDK does, so sessions can be driven over the API.
package canvas

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
)

// Surface implements ports.MapSurface.
type Surface struct {
	logger *slog.Logger
}

func NewSurface(logger *slog.Logger) *Surface {
	if logger == nil {
		logger = slog.Default()
	}
	return &Surface{logger: logger}
}

// CreateMap creates a map drawn into container, centered on center.
func (s *Surface) CreateMap(container ports.Container, center domain.Position, level int) (ports.MapHandle, error) {
	if container.Width <= 0 || container.Height <= 0 {
		return nil, fmt.Errorf("container must have a positive size, got %dx%d", container.Width, container.Height)
	}
	if !center.Valid() {
		return nil, fmt.Errorf("invalid center %+v", center)
	}

	m := newMap(uuid.NewString(), container, center, level, s.logger)
	s.logger.Debug("map created", "map", m.id, "size", fmt.Sprintf("%dx%d", container.Width, container.Height))
	return m, nil
}

func (s *Surface) CreateMarker(opts ports.MarkerOptions) (ports.MarkerHandle, error) {
	if !opts.Position.Valid() {
		return nil, fmt.Errorf("invalid marker position %+v", opts.Position)
	}
	return &Marker{opts: opts}, nil
}

func (s *Surface) CreateOverlay(opts ports.OverlayOptions) (ports.OverlayHandle, error) {
	return &Overlay{position: opts.Position, content: opts.Content, zIndex: opts.ZIndex}, nil
}
