package canvas

import (
	"sync"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
)

type clickListener struct {
	id ports.ListenerID
	fn func()
}

// Marker implements ports.ClickableMarker.
type Marker struct {
	opts ports.MarkerOptions

	mu        sync.Mutex
	m         ports.MapHandle
	listeners []clickListener
	nextID    ports.ListenerID
}

func (k *Marker) SetMap(m ports.MapHandle) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m = m
}

// Map returns the map the marker is drawn on, or nil.
func (k *Marker) Map() ports.MapHandle {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.m
}

func (k *Marker) Position() domain.Position {
	return k.opts.Position
}

func (k *Marker) Title() string {
	return k.opts.Title
}

func (k *Marker) AddClickListener(fn func()) ports.ListenerID {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.nextID++
	k.listeners = append(k.listeners, clickListener{id: k.nextID, fn: fn})
	return k.nextID
}

func (k *Marker) RemoveClickListener(id ports.ListenerID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i, l := range k.listeners {
		if l.id == id {
			k.listeners = append(k.listeners[:i:i], k.listeners[i+1:]...)
			return
		}
	}
}

// Click runs the click listeners on the calling goroutine. It does nothing
// for a marker that is detached or was created without Clickable.
func (k *Marker) Click() {
	k.mu.Lock()
	if k.m == nil || !k.opts.Clickable {
		k.mu.Unlock()
		return
	}
	listeners := make([]func(), 0, len(k.listeners))
	for _, l := range k.listeners {
		listeners = append(listeners, l.fn)
	}
	k.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Overlay implements ports.OverlayHandle.
type Overlay struct {
	mu       sync.Mutex
	position domain.Position
	content  string
	zIndex   int
	m        ports.MapHandle
}

func (o *Overlay) SetPosition(pos domain.Position) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.position = pos
}

func (o *Overlay) Position() domain.Position {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.position
}

func (o *Overlay) SetMap(m ports.MapHandle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.m = m
}

// Map returns the map the overlay is drawn on, or nil.
func (o *Overlay) Map() ports.MapHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.m
}
