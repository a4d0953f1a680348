package usecases

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
	"github.com/samirrijal/gymmap/internal/pkg/metrics"
)

// SessionConfig holds the defaults every new session is mounted with.
type SessionConfig struct {
	DefaultPosition    domain.Position
	DefaultLevel       int
	Viewport           ports.Container
	AcquisitionTimeout time.Duration
	GymLimit           int
	// PublishTimeout bounds each event publish and gym lookup made from a
	// map callback.
	PublishTimeout time.Duration
	Logger         *slog.Logger
}

// SessionService hosts map sessions: one viewport controller, one live
// position overlay and a set of gym markers per session.
type SessionService struct {
	surface  ports.MapSurface
	locators ports.LocatorFactory
	caches   ports.PositionCacheFactory
	gyms     *GymService
	events   ports.EventPublisher
	cfg      SessionConfig
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewSessionService creates a SessionService. caches, gyms and events may
// be nil.
func NewSessionService(
	surface ports.MapSurface,
	locators ports.LocatorFactory,
	caches ports.PositionCacheFactory,
	gyms *GymService,
	events ports.EventPublisher,
	cfg SessionConfig,
) *SessionService {
	if cfg.DefaultLevel <= 0 {
		cfg.DefaultLevel = DefaultLevel
	}
	if cfg.Viewport.Width <= 0 || cfg.Viewport.Height <= 0 {
		cfg.Viewport = ports.Container{Width: 1024, Height: 768}
	}
	if cfg.GymLimit <= 0 {
		cfg.GymLimit = DefaultGymLimit
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		surface:  surface,
		locators: locators,
		caches:   caches,
		gyms:     gyms,
		events:   events,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

type session struct {
	id        string
	deviceID  string
	createdAt time.Time
	svc       *SessionService
	logger    *slog.Logger

	provider   *MapProvider
	controller *ViewportController
	overlay    *PositionOverlay

	mu       sync.Mutex
	markers  map[string]*MarkerBinding
	selected string
	closed   bool
}

// Open mounts a new map session for deviceID.
func (s *SessionService) Open(ctx context.Context, deviceID string) (*domain.SessionSnapshot, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id must not be empty")
	}

	id := uuid.NewString()
	logger := s.logger.With("session", id, "device", deviceID)

	var cache ports.PositionCache
	if s.caches != nil {
		cache = s.caches.ForDevice(deviceID)
	}
	defaultPos := ResolveDefaultPosition(ctx, cache, s.cfg.DefaultPosition)
	source := NewPositionSource(s.locators.ForDevice(deviceID), s.cfg.AcquisitionTimeout, logger)

	sess := &session{
		id:        id,
		deviceID:  deviceID,
		createdAt: time.Now().UTC(),
		svc:       s,
		logger:    logger,
		provider:  NewMapProvider(),
		markers:   make(map[string]*MarkerBinding),
	}
	sess.controller = NewViewportController(s.surface, source, cache, sess.provider, ViewportOptions{
		DefaultPosition: defaultPos,
		DefaultLevel:    s.cfg.DefaultLevel,
		OnInit:          sess.initialized,
		OnChangeBounds:  sess.boundsChanged,
		Logger:          logger,
	})
	sess.overlay = NewPositionOverlay(sess.provider, s.surface, source, defaultPos, sess.moved, logger)

	sess.overlay.Start()
	viewport := s.cfg.Viewport
	if err := sess.controller.Attach(ctx, &viewport); err != nil {
		sess.close()
		return nil, fmt.Errorf("open session: %w", err)
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	metrics.ActiveSessions.Inc()

	logger.Info("session opened", "default_center", defaultPos)
	return sess.snapshot(), nil
}

func (s *SessionService) lookup(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// Get returns the current snapshot of a session.
func (s *SessionService) Get(id string) (*domain.SessionSnapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return sess.snapshot(), nil
}

// List returns snapshots of every open session, oldest first.
func (s *SessionService) List() []domain.SessionSnapshot {
	s.mu.RLock()
	all := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()

	out := make([]domain.SessionSnapshot, 0, len(all))
	for _, sess := range all {
		out = append(out, *sess.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Pan drags the session's map by dx, dy pixels and returns the snapshot
// once the resulting settle event has been handled.
func (s *SessionService) Pan(ctx context.Context, id string, dx, dy float64) (*domain.SessionSnapshot, error) {
	return s.gesture(ctx, id, func(m ports.InteractiveMap) { m.Pan(dx, dy) })
}

// Zoom sets the session's map level and returns the snapshot once the
// resulting settle event has been handled.
func (s *SessionService) Zoom(ctx context.Context, id string, level int) (*domain.SessionSnapshot, error) {
	if level <= 0 || level > MaxLevel {
		return nil, fmt.Errorf("level must be between 1 and %d, got %d", MaxLevel, level)
	}
	return s.gesture(ctx, id, func(m ports.InteractiveMap) { m.SetLevel(level) })
}

func (s *SessionService) gesture(ctx context.Context, id string, apply func(ports.InteractiveMap)) (*domain.SessionSnapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	handle, ok := sess.controller.Handle()
	if !ok {
		return nil, domain.ErrMapNotReady
	}
	m, ok := handle.(ports.InteractiveMap)
	if !ok {
		return nil, domain.ErrNotInteractive
	}

	apply(m)
	if err := m.Settled(ctx); err != nil {
		return nil, fmt.Errorf("wait for map to settle: %w", err)
	}
	return sess.snapshot(), nil
}

// Click clicks the marker of gymID in the session.
func (s *SessionService) Click(ctx context.Context, id, gymID string) (*domain.SessionSnapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	binding, ok := sess.markers[gymID]
	sess.mu.Unlock()
	if !ok {
		return nil, domain.ErrGymNotFound
	}
	marker, ok := binding.Marker()
	if !ok {
		return nil, domain.ErrMapNotReady
	}
	clickable, ok := marker.(ports.ClickableMarker)
	if !ok {
		return nil, domain.ErrNotInteractive
	}

	clickable.Click()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sess.snapshot(), nil
}

// Close tears down a session: the controller, the overlay and its markers.
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	sess.close()
	metrics.ActiveSessions.Dec()
	sess.publish(&domain.SessionEvent{Kind: domain.EventClosed})
	sess.logger.Info("session closed")
	return nil
}

// Shutdown closes every open session.
func (s *SessionService) Shutdown() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		_ = s.Close(id)
	}
}

func (s *session) snapshot() *domain.SessionSnapshot {
	snap := &domain.SessionSnapshot{
		ID:          s.id,
		DeviceID:    s.deviceID,
		Phase:       s.controller.Phase().String(),
		Loading:     s.controller.Loading(),
		Initialized: s.controller.Initialized(),
		CreatedAt:   s.createdAt,
	}
	if h, ok := s.controller.Handle(); ok {
		snap.Center = h.Center()
		snap.Level = h.Level()
	}
	if b, ok := s.controller.LastBounds(); ok {
		snap.Bounds = &b
	}
	if p, ok := s.overlay.Position(); ok {
		snap.LivePosition = &p
	}

	s.mu.Lock()
	snap.Markers = len(s.markers)
	snap.SelectedGymID = s.selected
	s.mu.Unlock()
	return snap
}

func (s *session) initialized(m ports.MapHandle) {
	center := m.Center()
	s.publish(&domain.SessionEvent{Kind: domain.EventInitialized, Position: &center})
}

func (s *session) moved(pos domain.Position) {
	s.publish(&domain.SessionEvent{Kind: domain.EventPosition, Position: &pos})
}

// boundsChanged loads the gyms inside b and reconciles the markers before
// returning, so a settled map already shows them.
func (s *session) boundsChanged(b domain.Boundary) {
	if gyms := s.svc.gyms; gyms != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.svc.cfg.PublishTimeout)
		found, err := gyms.FindInBounds(ctx, b, s.svc.cfg.GymLimit)
		cancel()
		if err != nil {
			s.logger.Warn("load gyms in bounds", "error", err)
		} else {
			s.reconcile(found)
		}
	}
	s.publish(&domain.SessionEvent{Kind: domain.EventBounds, Boundary: &b})
}

func (s *session) reconcile(gyms []domain.Gym) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	seen := make(map[string]struct{}, len(gyms))
	for _, g := range gyms {
		seen[g.ID] = struct{}{}
		entity := domain.MarkerEntity{
			Position: g.Location,
			Title:    g.Name,
			OnClick:  s.selectFunc(g.ID),
		}
		if b, ok := s.markers[g.ID]; ok {
			b.Update(entity)
			continue
		}
		s.markers[g.ID] = BindMarker(s.provider, s.svc.surface, entity, s.logger)
	}
	for id, b := range s.markers {
		if _, ok := seen[id]; !ok {
			b.Close()
			delete(s.markers, id)
		}
	}
}

func (s *session) selectFunc(gymID string) func() {
	return func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.selected = gymID
		s.mu.Unlock()

		s.logger.Debug("gym selected", "gym", gymID)
		s.publish(&domain.SessionEvent{Kind: domain.EventSelected, GymID: gymID})
	}
}

func (s *session) publish(event *domain.SessionEvent) {
	if s.svc.events == nil {
		return
	}
	event.SessionID = s.id
	event.DeviceID = s.deviceID
	event.Time = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), s.svc.cfg.PublishTimeout)
	defer cancel()
	if err := s.svc.events.PublishSessionEvent(ctx, event); err != nil {
		s.logger.Warn("publish session event", "kind", event.Kind, "error", err)
	}
}

func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	markers := s.markers
	s.markers = make(map[string]*MarkerBinding)
	s.mu.Unlock()

	s.controller.Detach()
	s.overlay.Close()
	for _, b := range markers {
		b.Close()
	}
	if h, ok := s.controller.Handle(); ok {
		if c, ok := h.(io.Closer); ok {
			if err := c.Close(); err != nil {
				s.logger.Warn("close map", "error", err)
			}
		}
	}
}
