package usecases

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
)

// CurrentPositionContent is the overlay markup for the live position dot.
const CurrentPositionContent = `<div class="current-position-overlay"></div>`

// PositionOverlay keeps one overlay on the map in sync with the device's
// live position. The overlay is created once and only repositioned after
// that.
type PositionOverlay struct {
	provider *MapProvider
	surface  ports.MapSurface
	source   *PositionSource
	logger   *slog.Logger
	onMove   func(domain.Position)
	anchor   domain.Position

	mu       sync.Mutex
	position domain.Position
	hasFix   bool
	overlay  ports.OverlayHandle
	watch    *WatchSubscription
	unpark   func()
	started  bool
	closed   bool
}

// NewPositionOverlay creates an overlay anchored at defaultPos until the
// first live fix arrives. onMove, if set, observes every applied fix.
func NewPositionOverlay(
	provider *MapProvider,
	surface ports.MapSurface,
	source *PositionSource,
	defaultPos domain.Position,
	onMove func(domain.Position),
	logger *slog.Logger,
) *PositionOverlay {
	if logger == nil {
		logger = slog.Default()
	}
	return &PositionOverlay{
		provider: provider,
		surface:  surface,
		source:   source,
		logger:   logger,
		onMove:   onMove,
		anchor:   defaultPos,
		position: defaultPos,
	}
}

// Start begins watching the position and parks the overlay creation until
// the map is available. Calling Start more than once has no effect.
func (o *PositionOverlay) Start() {
	o.mu.Lock()
	if o.started || o.closed {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.mu.Unlock()

	watch := o.source.Watch(o.update, o.reportError)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		watch.Stop()
		return
	}
	o.watch = watch
	o.mu.Unlock()

	unpark := o.provider.Use(o.mount)

	o.mu.Lock()
	o.unpark = unpark
	o.mu.Unlock()
}

func (o *PositionOverlay) mount(m ports.MapHandle) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.overlay != nil {
		return
	}

	overlay, err := o.surface.CreateOverlay(ports.OverlayOptions{
		Position: o.anchor,
		Content:  CurrentPositionContent,
		ZIndex:   1,
	})
	if err != nil {
		o.logger.Error("create position overlay", "error", err)
		return
	}
	overlay.SetMap(m)
	if o.hasFix {
		overlay.SetPosition(o.position)
	}
	o.overlay = overlay
}

func (o *PositionOverlay) update(pos domain.Position) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.position = pos
	o.hasFix = true
	if o.overlay != nil {
		o.overlay.SetPosition(pos)
	}
	o.mu.Unlock()

	if o.onMove != nil {
		o.onMove(pos)
	}
}

func (o *PositionOverlay) reportError(err error) {
	if errors.Is(err, domain.ErrWatchUnsupported) {
		o.logger.Error("geolocation tracking is not supported", "error", err)
		return
	}
	o.logger.Warn("position watch error", "error", err)
}

// Position returns the latest live fix, if any.
func (o *PositionOverlay) Position() (domain.Position, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.position, o.hasFix
}

// Close stops the watch and removes the overlay from the map together.
func (o *PositionOverlay) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	watch, overlay, unpark := o.watch, o.overlay, o.unpark
	o.watch, o.overlay = nil, nil
	o.mu.Unlock()

	if unpark != nil {
		unpark()
	}
	if watch != nil {
		watch.Stop()
	}
	if overlay != nil {
		overlay.SetMap(nil)
	}
}
