package ports

import (
	"context"
	"time"

	"github.com/samirrijal/gymmap/internal/core/domain"
)

// ListenerID identifies a registered event listener so it can be removed.
type ListenerID uint64

// Container is the hosting surface a map is drawn into.
type Container struct {
	Width  int `json:"width"`  // pixels
	Height int `json:"height"` // pixels
}

// MapSurface is the map-drawing SDK: it creates maps, markers and overlays.
type MapSurface interface {
	CreateMap(container Container, center domain.Position, level int) (MapHandle, error)
	CreateMarker(opts MarkerOptions) (MarkerHandle, error)
	CreateOverlay(opts OverlayOptions) (OverlayHandle, error)
}

// MapHandle is an opaque handle to a single map instance.
//
// Idle listeners fire once the viewport is stable after a pan, zoom, drag or
// programmatic re-centering. Implementations must deliver them
// asynchronously and never from inside a MapHandle method call.
type MapHandle interface {
	ID() string
	SetCenter(pos domain.Position)
	Center() domain.Position
	Level() int
	Bounds() domain.Boundary
	AddIdleListener(fn func()) ListenerID
	RemoveIdleListener(id ListenerID)
}

// InteractiveMap is implemented by maps that accept user gestures from the
// host. Settled blocks until every idle event caused by earlier gestures has
// been delivered.
type InteractiveMap interface {
	MapHandle
	Pan(dx, dy float64)
	SetLevel(level int)
	Settled(ctx context.Context) error
}

type MarkerOptions struct {
	Position  domain.Position
	Title     string
	Clickable bool
}

// MarkerHandle is a marker created by a MapSurface. SetMap(nil) detaches it.
type MarkerHandle interface {
	SetMap(m MapHandle)
	AddClickListener(fn func()) ListenerID
	RemoveClickListener(id ListenerID)
}

// ClickableMarker is implemented by markers that can be clicked by the host.
type ClickableMarker interface {
	MarkerHandle
	Click()
}

type OverlayOptions struct {
	Position domain.Position
	Content  string
	ZIndex   int
}

// OverlayHandle is a custom overlay created by a MapSurface. SetMap(nil)
// removes it from the map.
type OverlayHandle interface {
	SetPosition(pos domain.Position)
	SetMap(m MapHandle)
}

// WatchID identifies a continuous position watch.
type WatchID uint64

// PositionOptions tunes a geolocation request.
type PositionOptions struct {
	Timeout            time.Duration
	MaximumAge         time.Duration
	EnableHighAccuracy bool
}

// Geolocator is the device geolocation capability.
//
// CurrentPosition blocks until a fix arrives, the capability fails, or ctx
// is done. WatchPosition calls onUpdate for every new fix until ClearWatch;
// it returns domain.ErrWatchUnsupported when tracking is unavailable.
type Geolocator interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (domain.Position, error)
	WatchPosition(onUpdate func(domain.Position), onError func(error), opts PositionOptions) (WatchID, error)
	ClearWatch(id WatchID)
}

// LocatorFactory hands out a Geolocator bound to one device.
type LocatorFactory interface {
	ForDevice(deviceID string) Geolocator
}
