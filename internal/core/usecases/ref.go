package usecases

import "sync/atomic"

// callbackRef is a mutable cell holding the latest callback. Listeners
// registered with the map close over the cell, never over a callback value,
// so swapping the callback never re-registers anything.
type callbackRef[F any] struct {
	v atomic.Pointer[F]
}

func newCallbackRef[F any](fn F) *callbackRef[F] {
	r := &callbackRef[F]{}
	r.Store(fn)
	return r
}

func (r *callbackRef[F]) Store(fn F) {
	r.v.Store(&fn)
}

func (r *callbackRef[F]) Load() F {
	if p := r.v.Load(); p != nil {
		return *p
	}
	var zero F
	return zero
}
