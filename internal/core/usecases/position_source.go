package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
	"github.com/samirrijal/gymmap/internal/pkg/metrics"
)

// DefaultAcquisitionTimeout bounds a one-shot position acquisition.
const DefaultAcquisitionTimeout = 10 * time.Second

var tracer = otel.Tracer("github.com/samirrijal/gymmap/internal/core/usecases")

// PositionSource wraps the one-shot and continuous geolocation capabilities.
type PositionSource struct {
	geo     ports.Geolocator
	timeout time.Duration
	logger  *slog.Logger
}

// NewPositionSource creates a PositionSource. A non-positive timeout falls
// back to DefaultAcquisitionTimeout.
func NewPositionSource(geo ports.Geolocator, timeout time.Duration, logger *slog.Logger) *PositionSource {
	if timeout <= 0 {
		timeout = DefaultAcquisitionTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PositionSource{geo: geo, timeout: timeout, logger: logger}
}

// CurrentPosition acquires the device position once. It fails with
// domain.ErrPositionUnavailable when the capability errors or times out, and
// with domain.ErrAcquisitionCancelled when ctx is cancelled.
func (s *PositionSource) CurrentPosition(ctx context.Context) (domain.Position, error) {
	ctx, span := tracer.Start(ctx, "PositionSource.CurrentPosition")
	defer span.End()

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pos, err := s.geo.CurrentPosition(reqCtx, ports.PositionOptions{Timeout: s.timeout})
	if err == nil && !pos.Valid() {
		err = fmt.Errorf("invalid coordinates %.6f,%.6f", pos.Latitude, pos.Longitude)
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			span.SetStatus(codes.Unset, "cancelled")
			return domain.Position{}, fmt.Errorf("%w: %w", domain.ErrAcquisitionCancelled, context.Cause(ctx))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Position{}, fmt.Errorf("%w: %w", domain.ErrPositionUnavailable, err)
	}

	span.SetAttributes(
		attribute.Float64("position.latitude", pos.Latitude),
		attribute.Float64("position.longitude", pos.Longitude),
	)
	return pos, nil
}

// Watch starts a continuous watch. onUpdate is called for every fix until
// the returned subscription is stopped. Failures, including an unsupported
// capability, go to onError and never stop the watch on their own.
func (s *PositionSource) Watch(onUpdate func(domain.Position), onError func(error)) *WatchSubscription {
	sub := &WatchSubscription{geo: s.geo}

	id, err := s.geo.WatchPosition(
		func(pos domain.Position) {
			if sub.Stopped() {
				return
			}
			metrics.WatchUpdates.Inc()
			onUpdate(pos)
		},
		func(err error) {
			if sub.Stopped() {
				return
			}
			metrics.WatchErrors.WithLabelValues("update").Inc()
			onError(fmt.Errorf("%w: %w", domain.ErrPositionUnavailable, err))
		},
		ports.PositionOptions{Timeout: s.timeout},
	)
	if err != nil {
		if errors.Is(err, domain.ErrWatchUnsupported) {
			metrics.WatchErrors.WithLabelValues("unsupported").Inc()
			onError(err)
		} else {
			metrics.WatchErrors.WithLabelValues("start").Inc()
			onError(fmt.Errorf("%w: %w", domain.ErrPositionUnavailable, err))
		}
		return sub
	}

	sub.mu.Lock()
	sub.id = id
	sub.active = true
	sub.mu.Unlock()

	s.logger.Debug("position watch started", "watch_id", uint64(id))
	return sub
}

// WatchSubscription is a live position feed. It never ends on its own.
type WatchSubscription struct {
	geo ports.Geolocator

	mu      sync.Mutex
	id      ports.WatchID
	active  bool
	stopped bool
}

// Stop clears the underlying watch. Updates delivered afterwards are
// dropped. Stop is idempotent.
func (w *WatchSubscription) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	active, id := w.active, w.id
	w.active = false
	w.mu.Unlock()

	if active {
		w.geo.ClearWatch(id)
	}
}

// Active reports whether the underlying watch is running.
func (w *WatchSubscription) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *WatchSubscription) Stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}
