package usecases_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
)

// --- Fake map surface ---

type fakeSurface struct {
	mu       sync.Mutex
	maps     []*fakeMap
	markers  []*fakeMarker
	overlays []*fakeOverlay

	createMapErr error
	interactive  bool
}

func (s *fakeSurface) CreateMap(container ports.Container, center domain.Position, level int) (ports.MapHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createMapErr != nil {
		return nil, s.createMapErr
	}
	m := &fakeMap{
		id:        fmt.Sprintf("map-%d", len(s.maps)+1),
		container: container,
		center:    center,
		level:     level,
		listeners: make(map[ports.ListenerID]func()),
	}
	s.maps = append(s.maps, m)
	if s.interactive {
		return &fakeInteractiveMap{fakeMap: m}, nil
	}
	return m, nil
}

func (s *fakeSurface) CreateMarker(opts ports.MarkerOptions) (ports.MarkerHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &fakeMarker{opts: opts, listeners: make(map[ports.ListenerID]func())}
	s.markers = append(s.markers, m)
	return m, nil
}

func (s *fakeSurface) CreateOverlay(opts ports.OverlayOptions) (ports.OverlayHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := &fakeOverlay{opts: opts, position: opts.Position}
	s.overlays = append(s.overlays, o)
	return o, nil
}

func (s *fakeSurface) mapCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.maps)
}

func (s *fakeSurface) lastMap(t *testing.T) *fakeMap {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.maps) == 0 {
		t.Fatal("no map created")
	}
	return s.maps[len(s.maps)-1]
}

func (s *fakeSurface) markerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}

func (s *fakeSurface) overlayCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.overlays)
}

// fakeMap records calls and fires idle listeners only when the test asks.
// Its extent is a fixed span of 0.01 degrees per level around the center.
type fakeMap struct {
	id        string
	container ports.Container

	mu         sync.Mutex
	center     domain.Position
	level      int
	setCenters []domain.Position
	listeners  map[ports.ListenerID]func()
	nextID     ports.ListenerID
	boundsN    int
}

func (m *fakeMap) ID() string { return m.id }

func (m *fakeMap) SetCenter(pos domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center = pos
	m.setCenters = append(m.setCenters, pos)
}

func (m *fakeMap) Center() domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.center
}

func (m *fakeMap) Level() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *fakeMap) Bounds() domain.Boundary {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boundsN++
	half := 0.005 * float64(m.level)
	return domain.Boundary{
		SouthWestLat: m.center.Latitude - half,
		SouthWestLng: m.center.Longitude - half,
		NorthEastLat: m.center.Latitude + half,
		NorthEastLng: m.center.Longitude + half,
	}
}

func (m *fakeMap) AddIdleListener(fn func()) ports.ListenerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.listeners[m.nextID] = fn
	return m.nextID
}

func (m *fakeMap) RemoveIdleListener(id ports.ListenerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, id)
}

// move shifts the center the way a user drag would, without firing idle.
func (m *fakeMap) move(pos domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center = pos
}

func (m *fakeMap) fireIdle() {
	m.mu.Lock()
	fns := make([]func(), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (m *fakeMap) listenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *fakeMap) centers() []domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Position(nil), m.setCenters...)
}

func (m *fakeMap) boundsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.boundsN
}

// fakeInteractiveMap fires idle listeners from its own goroutine after each
// gesture, the way a real map settles.
type fakeInteractiveMap struct {
	*fakeMap
	pending sync.WaitGroup
}

func (m *fakeInteractiveMap) Pan(dx, dy float64) {
	c := m.Center()
	m.move(domain.Position{Latitude: c.Latitude - dy*1e-4, Longitude: c.Longitude + dx*1e-4})
	m.idleAsync()
}

func (m *fakeInteractiveMap) SetLevel(level int) {
	m.mu.Lock()
	m.level = level
	m.mu.Unlock()
	m.idleAsync()
}

func (m *fakeInteractiveMap) Settled(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *fakeInteractiveMap) idleAsync() {
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		m.fireIdle()
	}()
}

type fakeMarker struct {
	opts ports.MarkerOptions

	mu        sync.Mutex
	attached  ports.MapHandle
	setMapN   int
	listeners map[ports.ListenerID]func()
	nextID    ports.ListenerID
	added     int
}

func (m *fakeMarker) SetMap(h ports.MapHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attached = h
	m.setMapN++
}

func (m *fakeMarker) AddClickListener(fn func()) ports.ListenerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.added++
	m.listeners[m.nextID] = fn
	return m.nextID
}

func (m *fakeMarker) RemoveClickListener(id ports.ListenerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, id)
}

func (m *fakeMarker) Click() {
	m.mu.Lock()
	fns := make([]func(), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (m *fakeMarker) isAttached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attached != nil
}

func (m *fakeMarker) listenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

type fakeOverlay struct {
	opts ports.OverlayOptions

	mu        sync.Mutex
	position  domain.Position
	moves     int
	attached  ports.MapHandle
	detachedN int
}

func (o *fakeOverlay) SetPosition(pos domain.Position) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.position = pos
	o.moves++
}

func (o *fakeOverlay) SetMap(h ports.MapHandle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attached = h
	if h == nil {
		o.detachedN++
	}
}

func (o *fakeOverlay) snapshot() (domain.Position, int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.position, o.moves, o.attached != nil
}

// --- Controllable geolocator ---

type geoResult struct {
	pos domain.Position
	err error
}

type watchFns struct {
	onUpdate func(domain.Position)
	onError  func(error)
}

type fakeGeolocator struct {
	results chan geoResult
	// ignoreCancel makes CurrentPosition wait for a result even after its
	// context is cancelled.
	ignoreCancel bool

	mu       sync.Mutex
	calls    int
	watchErr error
	watches  map[ports.WatchID]watchFns
	nextID   ports.WatchID
	cleared  []ports.WatchID
	ctxErrs  []error
	released chan struct{}
}

func newFakeGeolocator() *fakeGeolocator {
	return &fakeGeolocator{
		results:  make(chan geoResult, 1),
		watches:  make(map[ports.WatchID]watchFns),
		released: make(chan struct{}, 8),
	}
}

func (g *fakeGeolocator) CurrentPosition(ctx context.Context, _ ports.PositionOptions) (domain.Position, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if g.ignoreCancel {
		r := <-g.results
		return r.pos, r.err
	}

	select {
	case r := <-g.results:
		return r.pos, r.err
	case <-ctx.Done():
		g.mu.Lock()
		g.ctxErrs = append(g.ctxErrs, ctx.Err())
		g.mu.Unlock()
		g.released <- struct{}{}
		return domain.Position{}, ctx.Err()
	}
}

func (g *fakeGeolocator) WatchPosition(onUpdate func(domain.Position), onError func(error), _ ports.PositionOptions) (ports.WatchID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.watchErr != nil {
		return 0, g.watchErr
	}
	g.nextID++
	g.watches[g.nextID] = watchFns{onUpdate: onUpdate, onError: onError}
	return g.nextID, nil
}

func (g *fakeGeolocator) ClearWatch(id ports.WatchID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.watches, id)
	g.cleared = append(g.cleared, id)
}

func (g *fakeGeolocator) resolve(pos domain.Position) { g.results <- geoResult{pos: pos} }

func (g *fakeGeolocator) fail(err error) { g.results <- geoResult{err: err} }

// emit sends pos to every registered watch.
func (g *fakeGeolocator) emit(pos domain.Position) {
	for _, w := range g.activeWatches() {
		w.onUpdate(pos)
	}
}

func (g *fakeGeolocator) emitError(err error) {
	for _, w := range g.activeWatches() {
		w.onError(err)
	}
}

func (g *fakeGeolocator) activeWatches() []watchFns {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]watchFns, 0, len(g.watches))
	for _, w := range g.watches {
		out = append(out, w)
	}
	return out
}

func (g *fakeGeolocator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *fakeGeolocator) clearedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cleared)
}

type fakeLocators struct {
	mu      sync.Mutex
	devices map[string]*fakeGeolocator
}

func (f *fakeLocators) ForDevice(id string) ports.Geolocator {
	return f.device(id)
}

func (f *fakeLocators) device(id string) *fakeGeolocator {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.devices == nil {
		f.devices = make(map[string]*fakeGeolocator)
	}
	g, ok := f.devices[id]
	if !ok {
		g = newFakeGeolocator()
		f.devices[id] = g
	}
	return g
}

// --- Position cache ---

type memPositionCache struct {
	mu     sync.Mutex
	pos    *domain.Position
	getErr error
	sets   []domain.Position
}

func (c *memPositionCache) Get(ctx context.Context) (domain.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return domain.Position{}, c.getErr
	}
	if c.pos == nil {
		return domain.Position{}, domain.ErrPositionNotCached
	}
	return *c.pos, nil
}

func (c *memPositionCache) Set(ctx context.Context, pos domain.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = &pos
	c.sets = append(c.sets, pos)
	return nil
}

func (c *memPositionCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sets)
}

// --- Recorders ---

type boundsRecorder struct {
	mu     sync.Mutex
	bounds []domain.Boundary
}

func (r *boundsRecorder) record(b domain.Boundary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bounds = append(r.bounds, b)
}

func (r *boundsRecorder) all() []domain.Boundary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Boundary(nil), r.bounds...)
}

type loadingRecorder struct {
	mu     sync.Mutex
	states []bool
}

func (r *loadingRecorder) record(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, on)
}

func (r *loadingRecorder) all() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.states...)
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

// never asserts cond stays false for a short while.
func never(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatalf("unexpected: %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
