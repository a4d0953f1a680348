package usecases

import (
	"log/slog"
	"sync"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
)

// MarkerBinding binds one MarkerEntity to one map marker.
//
// The marker is attached on first availability of the map and keeps a
// single click listener for its whole life; the listener reads the latest
// callback from a reference cell.
type MarkerBinding struct {
	provider *MapProvider
	surface  ports.MapSurface
	logger   *slog.Logger
	onClick  *callbackRef[func()]

	mu      sync.Mutex
	entity  domain.MarkerEntity
	mapRef  ports.MapHandle
	marker  ports.MarkerHandle
	clickID ports.ListenerID
	unpark  func()
	closed  bool
}

// BindMarker creates the binding and attaches the marker as soon as the map
// is available.
func BindMarker(provider *MapProvider, surface ports.MapSurface, entity domain.MarkerEntity, logger *slog.Logger) *MarkerBinding {
	if logger == nil {
		logger = slog.Default()
	}
	b := &MarkerBinding{
		provider: provider,
		surface:  surface,
		logger:   logger,
		onClick:  newCallbackRef(entity.OnClick),
		entity:   entity,
	}

	unpark := provider.Use(b.attach)

	b.mu.Lock()
	b.unpark = unpark
	b.mu.Unlock()
	return b
}

func (b *MarkerBinding) attach(m ports.MapHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.marker != nil {
		return
	}
	b.mapRef = m
	b.createLocked()
}

func (b *MarkerBinding) createLocked() {
	marker, err := b.surface.CreateMarker(ports.MarkerOptions{
		Position:  b.entity.Position,
		Title:     b.entity.Title,
		Clickable: true,
	})
	if err != nil {
		b.logger.Error("create marker", "title", b.entity.Title, "error", err)
		return
	}
	marker.SetMap(b.mapRef)
	b.clickID = marker.AddClickListener(b.click)
	b.marker = marker
}

func (b *MarkerBinding) detachLocked() {
	if b.marker == nil {
		return
	}
	b.marker.RemoveClickListener(b.clickID)
	b.marker.SetMap(nil)
	b.marker = nil
}

func (b *MarkerBinding) click() {
	if fn := b.onClick.Load(); fn != nil {
		fn()
	}
}

// Update applies a new entity. A changed click callback is swapped in
// place; a changed position or title recreates the marker.
func (b *MarkerBinding) Update(entity domain.MarkerEntity) {
	b.onClick.Store(entity.OnClick)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	recreate := entity.Position != b.entity.Position || entity.Title != b.entity.Title
	b.entity = entity
	if recreate && b.marker != nil {
		b.detachLocked()
		b.createLocked()
	}
}

// Marker returns the underlying marker once it is attached.
func (b *MarkerBinding) Marker() (ports.MarkerHandle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.marker, b.marker != nil
}

// Close detaches the marker from the map.
func (b *MarkerBinding) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	unpark := b.unpark
	b.detachLocked()
	b.mu.Unlock()

	if unpark != nil {
		unpark()
	}
}
