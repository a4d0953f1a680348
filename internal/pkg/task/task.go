// Package task provides a cancellable asynchronous operation and a slot
// that keeps at most one such operation in flight per consumer.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCancelled is returned by Await for a task that was cancelled before it
// settled. The cancellation cause, when given, is wrapped as well.
var ErrCancelled = errors.New("task cancelled")

// State is the lifecycle state of a Task.
type State int

const (
	Pending State = iota
	Resolved
	Rejected
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Task is a pending asynchronous operation plus its cancellation signal.
// Terminal states are final: a result that arrives after Cancel is dropped.
type Task[T any] struct {
	mu     sync.Mutex
	state  State
	result T
	err    error
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// Run starts op in its own goroutine. The context handed to op is cancelled
// when the task is cancelled or once op has returned.
func Run[T any](ctx context.Context, op func(context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancelCause(ctx)
	t := &Task[T]{cancel: cancel, done: make(chan struct{})}

	go func() {
		v, err := op(ctx)
		t.settle(ctx, v, err)
	}()

	return t
}

func (t *Task[T]) settle(ctx context.Context, v T, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Pending {
		return
	}

	switch {
	case err == nil:
		t.state = Resolved
		t.result = v
	case errors.Is(ctx.Err(), context.Canceled):
		// The parent context went away underneath op.
		t.state = Cancelled
		t.err = cancelError(context.Cause(ctx))
	default:
		t.state = Rejected
		t.err = err
	}

	t.cancel(nil)
	close(t.done)
}

// Cancel moves a pending task to Cancelled and signals op's context with
// cause. It reports whether the task was still pending.
func (t *Task[T]) Cancel(cause error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Pending {
		return false
	}

	t.state = Cancelled
	t.err = cancelError(cause)
	t.cancel(t.err)
	close(t.done)
	return true
}

// Await blocks until the task settles or ctx is done.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Resolved {
		return t.result, nil
	}
	var zero T
	return zero, t.err
}

// Done is closed once the task reaches a terminal state.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

func (t *Task[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func cancelError(cause error) error {
	switch {
	case cause == nil:
		return ErrCancelled
	case errors.Is(cause, ErrCancelled):
		return cause
	default:
		return fmt.Errorf("%w: %w", ErrCancelled, cause)
	}
}

// ErrSuperseded is the cause given to a task replaced by a newer one in the
// same Slot.
var ErrSuperseded = errors.New("superseded by a newer task")

// Slot holds at most one in-flight task. Starting a new task cancels the
// previous one. The zero value is ready to use.
type Slot[T any] struct {
	mu      sync.Mutex
	current *Task[T]
}

// Start cancels the current task, if any, and runs op as the new one.
func (s *Slot[T]) Start(ctx context.Context, op func(context.Context) (T, error)) *Task[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Cancel(ErrSuperseded)
	}
	s.current = Run(ctx, op)
	return s.current
}

// Cancel cancels and forgets the current task. It reports whether there was
// a current task. A task that already settled but was not yet claimed by
// Finish is forgotten as well, so its result will never be applied.
func (s *Slot[T]) Cancel(cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return false
	}
	s.current.Cancel(cause)
	s.current = nil
	return true
}

// Finish claims t. It returns true, and empties the slot, only if t is still
// the current task; callers apply t's result only in that case.
func (s *Slot[T]) Finish(t *Task[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != t || t == nil {
		return false
	}
	s.current = nil
	return true
}

// Busy reports whether the slot holds a task.
func (s *Slot[T]) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}
