package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
	"github.com/samirrijal/gymmap/internal/core/usecases"
)

// --- Mock EventPublisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (p *recordingPublisher) PublishSessionEvent(ctx context.Context, e *domain.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *e)
	return nil
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

func (p *recordingPublisher) has(kind string) bool {
	for _, k := range p.kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

type cacheFactory map[string]*memPositionCache

func (f cacheFactory) ForDevice(id string) ports.PositionCache {
	if c, ok := f[id]; ok {
		return c
	}
	return &memPositionCache{}
}

type sessionRig struct {
	surface  *fakeSurface
	locators *fakeLocators
	events   *recordingPublisher
	svc      *usecases.SessionService
}

func newSessionRig(t *testing.T, caches ports.PositionCacheFactory) *sessionRig {
	t.Helper()
	r := &sessionRig{
		surface:  &fakeSurface{interactive: true},
		locators: &fakeLocators{},
		events:   &recordingPublisher{},
	}
	gyms := usecases.NewGymService(staticGyms(gymNear, gymFar, gymOut), nil)
	r.svc = usecases.NewSessionService(r.surface, r.locators, caches, gyms, r.events, usecases.SessionConfig{
		DefaultPosition:    seoul,
		DefaultLevel:       2,
		AcquisitionTimeout: time.Second,
	})
	t.Cleanup(r.svc.Shutdown)
	return r
}

func TestSessionService_OpenAndInitialize(t *testing.T) {
	r := newSessionRig(t, nil)

	snap, err := r.svc.Open(context.Background(), "phone-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if snap.ID == "" || snap.DeviceID != "phone-1" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Center != seoul || snap.Level != 2 {
		t.Errorf("expected map at %+v level 2, got %+v level %d", seoul, snap.Center, snap.Level)
	}
	if !snap.Loading || snap.Phase != domain.PhaseAcquiringPosition.String() {
		t.Errorf("expected loading while acquiring, got %+v", snap)
	}

	fix := domain.Position{Latitude: 37.501, Longitude: 127.001}
	r.locators.device("phone-1").resolve(fix)

	eventually(t, func() bool {
		s, err := r.svc.Get(snap.ID)
		return err == nil && s.Initialized && !s.Loading
	}, "session initialized")

	got, _ := r.svc.Get(snap.ID)
	if got.Center != fix || got.Phase != domain.PhaseCentered.String() {
		t.Errorf("expected centered on %+v, got %+v", fix, got)
	}
	eventually(t, func() bool { return r.events.has(domain.EventInitialized) }, "initialized event")
}

func TestSessionService_DefaultFromCache(t *testing.T) {
	busan := domain.Position{Latitude: 35.1, Longitude: 129.0}
	r := newSessionRig(t, cacheFactory{"phone-1": {pos: &busan}})

	snap, err := r.svc.Open(context.Background(), "phone-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if snap.Center != busan {
		t.Errorf("expected the cached position %+v as default, got %+v", busan, snap.Center)
	}
}

func TestSessionService_PanLoadsMarkers(t *testing.T) {
	r := newSessionRig(t, nil)
	snap, err := r.svc.Open(context.Background(), "phone-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	got, err := r.svc.Pan(context.Background(), snap.ID, 10, 10)
	if err != nil {
		t.Fatalf("pan: %v", err)
	}
	if got.Bounds == nil {
		t.Fatal("expected bounds after the map settled")
	}
	if got.Markers != 2 {
		t.Errorf("expected 2 gym markers in view, got %d", got.Markers)
	}
	if got.Phase != domain.PhaseMapReady.String() || got.Loading {
		t.Errorf("expected the acquisition cancelled by the pan, got %+v", got)
	}
	if !r.events.has(domain.EventBounds) {
		t.Error("expected a bounds event")
	}

	// Zooming in far enough leaves no gym in view.
	got, err = r.svc.Zoom(context.Background(), snap.ID, 1)
	if err != nil {
		t.Fatalf("zoom: %v", err)
	}
	if got.Level != 1 {
		t.Errorf("expected level 1, got %d", got.Level)
	}
	if got.Markers != 1 {
		t.Errorf("expected 1 gym marker after zooming in, got %d", got.Markers)
	}
}

func TestSessionService_ClickSelectsGym(t *testing.T) {
	r := newSessionRig(t, nil)
	snap, _ := r.svc.Open(context.Background(), "phone-1")
	if _, err := r.svc.Pan(context.Background(), snap.ID, 0, 0); err != nil {
		t.Fatalf("pan: %v", err)
	}

	got, err := r.svc.Click(context.Background(), snap.ID, "g1")
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if got.SelectedGymID != "g1" {
		t.Errorf("expected g1 selected, got %q", got.SelectedGymID)
	}
	if !r.events.has(domain.EventSelected) {
		t.Error("expected a selected event")
	}

	if _, err := r.svc.Click(context.Background(), snap.ID, "g3"); !errors.Is(err, domain.ErrGymNotFound) {
		t.Errorf("expected ErrGymNotFound for a gym out of view, got %v", err)
	}
}

func TestSessionService_LivePosition(t *testing.T) {
	r := newSessionRig(t, nil)
	snap, _ := r.svc.Open(context.Background(), "phone-1")

	live := domain.Position{Latitude: 37.505, Longitude: 127.005}
	r.locators.device("phone-1").emit(live)

	got, _ := r.svc.Get(snap.ID)
	if got.LivePosition == nil || *got.LivePosition != live {
		t.Errorf("expected live position %+v, got %+v", live, got.LivePosition)
	}
	if !r.events.has(domain.EventPosition) {
		t.Error("expected a position event")
	}
}

func TestSessionService_Close(t *testing.T) {
	r := newSessionRig(t, nil)
	snap, _ := r.svc.Open(context.Background(), "phone-1")
	if _, err := r.svc.Pan(context.Background(), snap.ID, 0, 0); err != nil {
		t.Fatalf("pan: %v", err)
	}
	geo := r.locators.device("phone-1")

	if err := r.svc.Close(snap.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := r.svc.Get(snap.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := r.svc.Close(snap.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second close, got %v", err)
	}
	if geo.clearedCount() != 1 {
		t.Error("expected the live position watch to be cleared")
	}
	for _, m := range r.surface.markers {
		if m.isAttached() {
			t.Error("expected every marker detached")
		}
	}
	if _, _, attached := r.surface.overlays[0].snapshot(); attached {
		t.Error("expected the overlay removed")
	}
	if !r.events.has(domain.EventClosed) {
		t.Error("expected a closed event")
	}
}

func TestSessionService_Errors(t *testing.T) {
	r := newSessionRig(t, nil)

	if _, err := r.svc.Open(context.Background(), ""); err == nil {
		t.Error("expected an error for an empty device id")
	}
	if _, err := r.svc.Get("missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := r.svc.Pan(context.Background(), "missing", 1, 1); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	snap, _ := r.svc.Open(context.Background(), "phone-1")
	if _, err := r.svc.Zoom(context.Background(), snap.ID, 0); err == nil {
		t.Error("expected an error for a non-positive level")
	}
}

func TestSessionService_NotInteractive(t *testing.T) {
	surface := &fakeSurface{}
	svc := usecases.NewSessionService(surface, &fakeLocators{}, nil, nil, nil, usecases.SessionConfig{
		DefaultPosition: seoul,
	})
	defer svc.Shutdown()

	snap, err := svc.Open(context.Background(), "kiosk")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.Pan(context.Background(), snap.ID, 1, 1); !errors.Is(err, domain.ErrNotInteractive) {
		t.Errorf("expected ErrNotInteractive, got %v", err)
	}
}

func TestSessionService_List(t *testing.T) {
	r := newSessionRig(t, nil)
	a, _ := r.svc.Open(context.Background(), "phone-1")
	time.Sleep(time.Millisecond)
	b, _ := r.svc.Open(context.Background(), "phone-2")

	all := r.svc.List()
	if len(all) != 2 || all[0].ID != a.ID || all[1].ID != b.ID {
		t.Errorf("expected sessions oldest first, got %v", all)
	}
}
