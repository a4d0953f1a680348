package usecases_test

import (
	"testing"
	"time"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
	"github.com/samirrijal/gymmap/internal/core/usecases"
)

func newOverlayRig(t *testing.T) (*fakeSurface, *fakeGeolocator, *usecases.MapProvider, *usecases.PositionOverlay) {
	t.Helper()
	surface := &fakeSurface{}
	geo := newFakeGeolocator()
	provider := usecases.NewMapProvider()
	src := usecases.NewPositionSource(geo, time.Second, nil)
	overlay := usecases.NewPositionOverlay(provider, surface, src, seoul, nil, nil)
	t.Cleanup(overlay.Close)
	return surface, geo, provider, overlay
}

func provideMap(t *testing.T, surface *fakeSurface, provider *usecases.MapProvider) *fakeMap {
	t.Helper()
	h, err := surface.CreateMap(ports.Container{Width: 100, Height: 100}, seoul, 3)
	if err != nil {
		t.Fatalf("create map: %v", err)
	}
	provider.Provide(h)
	return surface.lastMap(t)
}

func TestPositionOverlay_CreatedOnceAndRepositioned(t *testing.T) {
	surface, geo, provider, overlay := newOverlayRig(t)
	overlay.Start()

	if n := surface.overlayCount(); n != 0 {
		t.Fatalf("expected no overlay before the map exists, got %d", n)
	}

	provideMap(t, surface, provider)
	if n := surface.overlayCount(); n != 1 {
		t.Fatalf("expected one overlay, got %d", n)
	}
	o := surface.overlays[0]
	if o.opts.Position != seoul {
		t.Errorf("expected overlay at default %+v, got %+v", seoul, o.opts.Position)
	}
	if o.opts.Content != usecases.CurrentPositionContent || o.opts.ZIndex != 1 {
		t.Errorf("unexpected overlay options %+v", o.opts)
	}

	p1 := domain.Position{Latitude: 37.51, Longitude: 127.01}
	p2 := domain.Position{Latitude: 37.52, Longitude: 127.02}
	geo.emit(p1)
	geo.emit(p2)

	if n := surface.overlayCount(); n != 1 {
		t.Fatalf("expected the same overlay to be reused, got %d overlays", n)
	}
	pos, moves, attached := o.snapshot()
	if pos != p2 || moves != 2 || !attached {
		t.Errorf("expected overlay at %+v after 2 moves, got %+v after %d (attached=%v)", p2, pos, moves, attached)
	}
	if got, ok := overlay.Position(); !ok || got != p2 {
		t.Errorf("expected Position %+v, got %+v", p2, got)
	}
}

func TestPositionOverlay_FixBeforeMap(t *testing.T) {
	surface, geo, provider, overlay := newOverlayRig(t)
	overlay.Start()

	fix := domain.Position{Latitude: 1, Longitude: 2}
	geo.emit(fix)
	provideMap(t, surface, provider)

	pos, _, _ := surface.overlays[0].snapshot()
	if pos != fix {
		t.Errorf("expected overlay moved to the pending fix %+v, got %+v", fix, pos)
	}
}

func TestPositionOverlay_NoRepositionAfterClose(t *testing.T) {
	surface, geo, provider, overlay := newOverlayRig(t)
	overlay.Start()
	provideMap(t, surface, provider)

	stale := geo.activeWatches()
	if len(stale) != 1 {
		t.Fatalf("expected exactly one watch, got %d", len(stale))
	}

	overlay.Close()

	if n := geo.clearedCount(); n != 1 {
		t.Errorf("expected the watch to be cleared, got %d", n)
	}
	_, _, attached := surface.overlays[0].snapshot()
	if attached {
		t.Error("expected the overlay to be removed from the map")
	}

	for _, w := range stale {
		w.onUpdate(domain.Position{Latitude: 9, Longitude: 9})
	}
	_, moves, _ := surface.overlays[0].snapshot()
	if moves != 0 {
		t.Errorf("expected no reposition after Close, got %d", moves)
	}
}

func TestPositionOverlay_CloseBeforeMap(t *testing.T) {
	surface, _, provider, overlay := newOverlayRig(t)
	overlay.Start()
	overlay.Close()

	provideMap(t, surface, provider)
	if n := surface.overlayCount(); n != 0 {
		t.Errorf("expected no overlay after Close, got %d", n)
	}
}

func TestPositionOverlay_WatchUnsupported(t *testing.T) {
	surface, geo, provider, overlay := newOverlayRig(t)
	geo.watchErr = domain.ErrWatchUnsupported
	overlay.Start()
	provideMap(t, surface, provider)

	if n := surface.overlayCount(); n != 1 {
		t.Fatalf("expected the overlay at the default position, got %d overlays", n)
	}
	if _, ok := overlay.Position(); ok {
		t.Error("expected no live fix")
	}
}

func TestPositionOverlay_OnMove(t *testing.T) {
	surface := &fakeSurface{}
	geo := newFakeGeolocator()
	provider := usecases.NewMapProvider()
	src := usecases.NewPositionSource(geo, time.Second, nil)

	var moves []domain.Position
	overlay := usecases.NewPositionOverlay(provider, surface, src, seoul, func(p domain.Position) {
		moves = append(moves, p)
	}, nil)
	defer overlay.Close()
	overlay.Start()
	overlay.Start()

	geo.emit(domain.Position{Latitude: 5, Longitude: 5})
	if len(moves) != 1 {
		t.Errorf("expected one move from a single watch, got %d", len(moves))
	}
}
