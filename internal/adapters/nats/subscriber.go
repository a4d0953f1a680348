package natsadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/gymmap/internal/core/domain"
)

// FeedQueue is the queue group shared by feed responders.
const FeedQueue = "geofeed"

// FeedResponder answers one-shot position requests with the latest fix it
// has seen for the requested device.
type FeedResponder struct {
	conn     *nats.Conn
	subjects Subjects
	maxAge   time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	latest map[string]domain.PositionFix
	subs   []*nats.Subscription
}

// NewFeedResponder creates a responder. Fixes older than maxAge are not
// served; zero disables the check.
func NewFeedResponder(conn *nats.Conn, prefix string, maxAge time.Duration, logger *slog.Logger) *FeedResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedResponder{
		conn:     conn,
		subjects: NewSubjects(prefix),
		maxAge:   maxAge,
		logger:   logger,
		latest:   make(map[string]domain.PositionFix),
	}
}

// Record stores fix as the latest one for its device.
func (r *FeedResponder) Record(fix domain.PositionFix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest[Token(fix.DeviceID)] = fix
}

// Lookup returns the fix to serve for a device token.
func (r *FeedResponder) Lookup(token string, now time.Time) domain.PositionFix {
	r.mu.RLock()
	fix, ok := r.latest[token]
	r.mu.RUnlock()

	switch {
	case !ok:
		return domain.PositionFix{DeviceID: token, Time: now, Error: "no fix available"}
	case r.maxAge > 0 && now.Sub(fix.Time) > r.maxAge:
		return domain.PositionFix{DeviceID: token, Time: now, Error: "latest fix is stale"}
	default:
		return fix
	}
}

// Serve subscribes to every device's one-shot request subject.
func (r *FeedResponder) Serve() error {
	sub, err := r.conn.QueueSubscribe(r.subjects.AllCurrentPositions(), FeedQueue, func(msg *nats.Msg) {
		token, ok := r.deviceToken(msg.Subject)
		if !ok {
			return
		}
		data, err := json.Marshal(r.Lookup(token, time.Now().UTC()))
		if err != nil {
			r.logger.Error("encode fix", "device", token, "error", err)
			return
		}
		if err := msg.Respond(data); err != nil {
			r.logger.Warn("respond to position request", "device", token, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe position requests: %w", err)
	}

	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
	return nil
}

// deviceToken extracts the device token from <prefix>.position.<device>.current.
func (r *FeedResponder) deviceToken(subject string) (string, bool) {
	rest, ok := strings.CutPrefix(subject, r.subjects.Prefix+".position.")
	if !ok {
		return "", false
	}
	token, ok := strings.CutSuffix(rest, ".current")
	if !ok || token == "" || strings.Contains(token, ".") {
		return "", false
	}
	return token, true
}

// Close unsubscribes from request subjects.
func (r *FeedResponder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		_ = sub.Unsubscribe()
	}
	r.subs = nil
}
