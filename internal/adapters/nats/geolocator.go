package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
)

// positionRequest is the body of a one-shot position request.
type positionRequest struct {
	MaximumAge         time.Duration `json:"maximum_age,omitempty"`
	EnableHighAccuracy bool          `json:"enable_high_accuracy,omitempty"`
}

// Locators implements ports.LocatorFactory over a NATS position feed.
type Locators struct {
	conn     *nats.Conn
	subjects Subjects
	logger   *slog.Logger
}

// NewLocators creates a factory. A nil conn yields geolocators that cannot
// track positions.
func NewLocators(conn *nats.Conn, prefix string, logger *slog.Logger) *Locators {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locators{conn: conn, subjects: NewSubjects(prefix), logger: logger}
}

func (l *Locators) ForDevice(deviceID string) ports.Geolocator {
	return &Geolocator{
		conn:     l.conn,
		deviceID: deviceID,
		subjects: l.subjects,
		logger:   l.logger.With("device", deviceID),
		subs:     make(map[ports.WatchID]*nats.Subscription),
	}
}

// Geolocator implements ports.Geolocator for one device. One-shot requests
// use request/reply; watches are plain subscriptions on the device's feed.
type Geolocator struct {
	conn     *nats.Conn
	deviceID string
	subjects Subjects
	logger   *slog.Logger

	mu     sync.Mutex
	nextID ports.WatchID
	subs   map[ports.WatchID]*nats.Subscription
}

func (g *Geolocator) CurrentPosition(ctx context.Context, opts ports.PositionOptions) (domain.Position, error) {
	if g.conn == nil {
		return domain.Position{}, errors.New("no position feed configured")
	}
	if _, ok := ctx.Deadline(); !ok && opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(positionRequest{
		MaximumAge:         opts.MaximumAge,
		EnableHighAccuracy: opts.EnableHighAccuracy,
	})
	if err != nil {
		return domain.Position{}, err
	}

	msg, err := g.conn.RequestWithContext(ctx, g.subjects.CurrentPosition(g.deviceID), body)
	if errors.Is(err, nats.ErrNoResponders) {
		return domain.Position{}, fmt.Errorf("no position feed for device %s: %w", g.deviceID, err)
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("request position: %w", err)
	}
	return DecodeFix(msg.Data)
}

func (g *Geolocator) WatchPosition(onUpdate func(domain.Position), onError func(error), _ ports.PositionOptions) (ports.WatchID, error) {
	if g.conn == nil {
		return 0, domain.ErrWatchUnsupported
	}

	sub, err := g.conn.Subscribe(g.subjects.Position(g.deviceID), func(msg *nats.Msg) {
		pos, err := DecodeFix(msg.Data)
		if err != nil {
			onError(err)
			return
		}
		onUpdate(pos)
	})
	if err != nil {
		return 0, fmt.Errorf("subscribe position feed: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	g.subs[g.nextID] = sub
	return g.nextID, nil
}

func (g *Geolocator) ClearWatch(id ports.WatchID) {
	g.mu.Lock()
	sub, ok := g.subs[id]
	delete(g.subs, id)
	g.mu.Unlock()

	if !ok {
		return
	}
	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		g.logger.Warn("unsubscribe position feed", "error", err)
	}
}

// DecodeFix parses a position fix message. A fix carrying an error, or
// coordinates out of range, is returned as an error.
func DecodeFix(data []byte) (domain.Position, error) {
	var fix domain.PositionFix
	if err := json.Unmarshal(data, &fix); err != nil {
		return domain.Position{}, fmt.Errorf("decode position fix: %w", err)
	}
	if fix.Error != "" {
		return domain.Position{}, errors.New(fix.Error)
	}
	if !fix.Position.Valid() {
		return domain.Position{}, fmt.Errorf("invalid coordinates %.6f,%.6f", fix.Position.Latitude, fix.Position.Longitude)
	}
	return fix.Position, nil
}
