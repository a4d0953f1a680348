package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
	"github.com/samirrijal/gymmap/internal/pkg/metrics"
	"github.com/samirrijal/gymmap/internal/pkg/task"
)

const (
	// DefaultLevel is the zoom level a map is created with when none is given.
	DefaultLevel = 4
	// MaxLevel is the most zoomed-out level a map accepts. Level 1 is the
	// closest.
	MaxLevel = 14
)

var (
	errUserInteraction = fmt.Errorf("%w: user interaction occurred", domain.ErrAcquisitionCancelled)
	errDetached        = fmt.Errorf("%w: viewport detached", domain.ErrAcquisitionCancelled)
)

// ViewportOptions configures a ViewportController.
type ViewportOptions struct {
	DefaultPosition domain.Position
	DefaultLevel    int

	// OnInit is called once per map, after the first successful centering
	// on the acquired position.
	OnInit func(ports.MapHandle)
	// OnChangeBounds is called on every settle event.
	OnChangeBounds func(domain.Boundary)
	// OnLoading shows (true) or hides (false) the host's loading indicator
	// while the position is being acquired.
	OnLoading func(bool)

	// CacheTimeout bounds writes to the position cache.
	CacheTimeout time.Duration
	Logger       *slog.Logger
}

// ViewportController owns the map lifecycle: it creates the map once,
// centers it on the acquired position, and republishes the viewport
// boundary whenever the map settles.
type ViewportController struct {
	surface  ports.MapSurface
	source   *PositionSource
	cache    ports.PositionCache
	provider *MapProvider
	opts     ViewportOptions
	logger   *slog.Logger

	onInit         *callbackRef[func(ports.MapHandle)]
	onChangeBounds *callbackRef[func(domain.Boundary)]
	onLoading      *callbackRef[func(bool)]

	acquisition task.Slot[domain.Position]

	mu          sync.Mutex
	phase       domain.ViewportPhase
	handle      ports.MapHandle
	idleID      ports.ListenerID
	acquired    bool
	initialized bool
	loading     bool
	detached    bool
	lastBounds  *domain.Boundary
}

// NewViewportController creates a controller. cache may be nil.
func NewViewportController(
	surface ports.MapSurface,
	source *PositionSource,
	cache ports.PositionCache,
	provider *MapProvider,
	opts ViewportOptions,
) *ViewportController {
	if opts.DefaultLevel <= 0 {
		opts.DefaultLevel = DefaultLevel
	}
	if opts.CacheTimeout <= 0 {
		opts.CacheTimeout = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = NewMapProvider()
	}

	return &ViewportController{
		surface:        surface,
		source:         source,
		cache:          cache,
		provider:       provider,
		opts:           opts,
		logger:         logger,
		onInit:         newCallbackRef(opts.OnInit),
		onChangeBounds: newCallbackRef(opts.OnChangeBounds),
		onLoading:      newCallbackRef(opts.OnLoading),
	}
}

// Attach creates the map inside container and starts the initial position
// acquisition. It runs once: a nil container, a second call, or a call
// after Detach is a no-op.
func (c *ViewportController) Attach(ctx context.Context, container *ports.Container) error {
	if container == nil {
		return nil
	}

	c.mu.Lock()
	if c.handle != nil || c.detached {
		c.mu.Unlock()
		return nil
	}

	handle, err := c.surface.CreateMap(*container, c.opts.DefaultPosition, c.opts.DefaultLevel)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("create map: %w", err)
	}
	c.handle = handle
	c.phase = domain.PhaseMapReady
	c.idleID = handle.AddIdleListener(c.settle)

	// Acquire at most once per mount.
	var acq *task.Task[domain.Position]
	if !c.acquired {
		c.acquired = true
		c.phase = domain.PhaseAcquiringPosition
		c.loading = true
		acq = c.acquisition.Start(context.WithoutCancel(ctx), c.source.CurrentPosition)
	}
	c.mu.Unlock()

	c.logger.Debug("map created",
		"map", handle.ID(),
		"center", c.opts.DefaultPosition,
		"level", c.opts.DefaultLevel,
	)
	c.provider.Provide(handle)

	if acq != nil {
		c.setLoading(true)
		go c.complete(acq, time.Now())
	}
	return nil
}

// complete applies the outcome of the initial acquisition. The result is
// applied only if no settle event or Detach has claimed the task first.
func (c *ViewportController) complete(acq *task.Task[domain.Position], started time.Time) {
	pos, err := acq.Await(context.Background())

	c.mu.Lock()
	current := c.acquisition.Finish(acq)
	applied := current && err == nil
	var handle ports.MapHandle
	firstInit := false
	if applied {
		c.handle.SetCenter(pos)
		c.phase = domain.PhaseCentered
		handle = c.handle
		firstInit = !c.initialized
		c.initialized = true
	} else if c.phase == domain.PhaseAcquiringPosition {
		c.phase = domain.PhaseMapReady
	}
	c.loading = false
	c.mu.Unlock()

	c.setLoading(false)

	switch {
	case applied:
		metrics.ObserveAcquisition(metrics.OutcomeResolved, started)
		c.logger.Info("map centered on current position", "map", handle.ID(), "position", pos)
		c.storePosition(pos)
		if fn := c.onInit.Load(); firstInit && fn != nil {
			fn(handle)
		}
	case err == nil || errors.Is(err, task.ErrCancelled) || errors.Is(err, domain.ErrAcquisitionCancelled):
		// Resolved too late or superseded: the user already navigated.
		metrics.ObserveAcquisition(metrics.OutcomeCancelled, started)
		c.logger.Debug("position acquisition discarded", "error", err)
	default:
		metrics.ObserveAcquisition(metrics.OutcomeFailed, started)
		c.logger.Warn("position acquisition failed, keeping default center", "error", err)
	}
}

// settle handles the map's idle event.
func (c *ViewportController) settle() {
	c.mu.Lock()
	if c.handle == nil || c.detached {
		c.mu.Unlock()
		return
	}
	// Cancel before publishing so a late acquisition cannot re-center the
	// map the user just moved.
	cancelled := c.acquisition.Cancel(errUserInteraction)
	if cancelled && c.phase == domain.PhaseAcquiringPosition {
		c.phase = domain.PhaseMapReady
		c.loading = false
	}
	boundary := c.handle.Bounds().Normalize()
	c.lastBounds = &boundary
	c.mu.Unlock()

	metrics.SettleEvents.Inc()
	if cancelled {
		c.logger.Debug("position acquisition cancelled by user interaction")
	}
	if fn := c.onChangeBounds.Load(); fn != nil {
		fn(boundary)
	}
}

// Detach cancels a pending acquisition and removes the idle listener.
func (c *ViewportController) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detached {
		return
	}
	c.detached = true
	c.acquisition.Cancel(errDetached)
	if c.handle != nil {
		c.handle.RemoveIdleListener(c.idleID)
	}
}

// SetOnChangeBounds swaps the boundary callback without touching the idle
// listener registered with the map.
func (c *ViewportController) SetOnChangeBounds(fn func(domain.Boundary)) {
	c.onChangeBounds.Store(fn)
}

// SetOnLoading swaps the loading indicator callback.
func (c *ViewportController) SetOnLoading(fn func(bool)) {
	c.onLoading.Store(fn)
}

// Handle returns the map handle once the map exists.
func (c *ViewportController) Handle() (ports.MapHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle, c.handle != nil
}

func (c *ViewportController) Phase() domain.ViewportPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *ViewportController) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *ViewportController) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// LastBounds returns the boundary published by the most recent settle event.
func (c *ViewportController) LastBounds() (domain.Boundary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastBounds == nil {
		return domain.Boundary{}, false
	}
	return *c.lastBounds, true
}

func (c *ViewportController) setLoading(on bool) {
	if fn := c.onLoading.Load(); fn != nil {
		fn(on)
	}
}

func (c *ViewportController) storePosition(pos domain.Position) {
	if c.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.CacheTimeout)
	defer cancel()
	if err := c.cache.Set(ctx, pos); err != nil {
		c.logger.Warn("cache last known position", "error", err)
	}
}

// ResolveDefaultPosition returns the cached last known position, or
// fallback when the cache is absent, empty or unreadable.
func ResolveDefaultPosition(ctx context.Context, cache ports.PositionCache, fallback domain.Position) domain.Position {
	if cache == nil {
		return fallback
	}
	pos, err := cache.Get(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrPositionNotCached) {
			slog.Warn("read last known position", "error", err)
		}
		return fallback
	}
	if !pos.Valid() {
		return fallback
	}
	return pos
}
