package usecases

import (
	"sync"

	"github.com/samirrijal/gymmap/internal/core/ports"
)

// MapProvider shares a single MapHandle with the components that depend on
// it. Until the handle is provided, dependents are parked and treat the map
// as not ready.
type MapProvider struct {
	mu      sync.Mutex
	handle  ports.MapHandle
	nextID  uint64
	waiters map[uint64]func(ports.MapHandle)
}

func NewMapProvider() *MapProvider {
	return &MapProvider{waiters: make(map[uint64]func(ports.MapHandle))}
}

// Handle returns the map handle, if one has been provided.
func (p *MapProvider) Handle() (ports.MapHandle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle, p.handle != nil
}

// Provide publishes h to every parked dependent. Only the first non-nil
// handle is kept; later calls are ignored.
func (p *MapProvider) Provide(h ports.MapHandle) {
	if h == nil {
		return
	}

	p.mu.Lock()
	if p.handle != nil {
		p.mu.Unlock()
		return
	}
	p.handle = h
	waiters := p.waiters
	p.waiters = make(map[uint64]func(ports.MapHandle))
	p.mu.Unlock()

	for _, fn := range waiters {
		fn(h)
	}
}

// Use runs fn with the handle as soon as it is available: immediately when
// it already is, otherwise on Provide. The returned func unparks fn if it has
// not run yet.
func (p *MapProvider) Use(fn func(ports.MapHandle)) (cancel func()) {
	p.mu.Lock()
	if h := p.handle; h != nil {
		p.mu.Unlock()
		fn(h)
		return func() {}
	}
	p.nextID++
	id := p.nextID
	p.waiters[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.waiters, id)
		p.mu.Unlock()
	}
}
