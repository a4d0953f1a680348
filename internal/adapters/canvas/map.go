package canvas

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
)

// ErrMapClosed is returned by Settled once the map has been closed.
var ErrMapClosed = errors.New("map closed")

type idleListener struct {
	id ports.ListenerID
	fn func()
}

// Map is a headless map instance. Every viewport change queues one idle
// event, delivered in order on the map's own dispatcher goroutine.
type Map struct {
	id        string
	container ports.Container
	logger    *slog.Logger

	mu        sync.Mutex
	center    domain.Position
	level     int
	listeners []idleListener
	nextID    ports.ListenerID
	queued    int
	inflight  int
	settled   chan struct{}
	closed    bool

	wake chan struct{}
	done chan struct{}
}

func newMap(id string, container ports.Container, center domain.Position, level int, logger *slog.Logger) *Map {
	m := &Map{
		id:        id,
		container: container,
		logger:    logger,
		center:    center,
		level:     clampLevel(level),
		settled:   make(chan struct{}),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go m.dispatch()
	return m
}

func (m *Map) ID() string {
	return m.id
}

// SetCenter re-centers the map programmatically.
func (m *Map) SetCenter(pos domain.Position) {
	if !pos.Valid() {
		m.logger.Warn("ignoring invalid center", "map", m.id, "center", pos)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center = domain.Position{Latitude: clampLatitude(pos.Latitude), Longitude: pos.Longitude}
	m.emitLocked()
}

func (m *Map) Center() domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.center
}

func (m *Map) Level() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Bounds returns the extents currently rendered in the container.
func (m *Map) Bounds() domain.Boundary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return extents(m.center, m.level, m.container.Width, m.container.Height)
}

// Pan drags the view dx pixels east and dy pixels south.
func (m *Map) Pan(dx, dy float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center = panned(m.center, m.level, dx, dy)
	m.emitLocked()
}

// SetLevel zooms to level, clamped to [MinLevel, MaxLevel].
func (m *Map) SetLevel(level int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = clampLevel(level)
	m.emitLocked()
}

func (m *Map) AddIdleListener(fn func()) ports.ListenerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.listeners = append(m.listeners, idleListener{id: m.nextID, fn: fn})
	return m.nextID
}

func (m *Map) RemoveIdleListener(id ports.ListenerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.listeners {
		if l.id == id {
			m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
			return
		}
	}
}

// Settled blocks until every idle event queued before the call has been
// delivered.
func (m *Map) Settled(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMapClosed
	}
	if m.inflight == 0 {
		m.mu.Unlock()
		return nil
	}
	settled := m.settled
	m.mu.Unlock()

	select {
	case <-settled:
		return nil
	case <-m.done:
		return ErrMapClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops event delivery and drops every idle listener. Queued events
// are discarded.
func (m *Map) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.listeners = nil
	close(m.done)
	m.logger.Debug("map closed", "map", m.id)
	return nil
}

func (m *Map) emitLocked() {
	if m.closed {
		return
	}
	m.queued++
	m.inflight++
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Map) dispatch() {
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}

		for {
			m.mu.Lock()
			if m.closed || m.queued == 0 {
				m.mu.Unlock()
				break
			}
			m.queued--
			listeners := make([]func(), 0, len(m.listeners))
			for _, l := range m.listeners {
				listeners = append(listeners, l.fn)
			}
			m.mu.Unlock()

			for _, fn := range listeners {
				fn()
			}

			m.mu.Lock()
			m.inflight--
			if m.inflight == 0 {
				close(m.settled)
				m.settled = make(chan struct{})
			}
			m.mu.Unlock()
		}
	}
}
