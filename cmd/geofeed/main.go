package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/gymmap/internal/adapters/nats"
	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/pkg/config"
	"github.com/samirrijal/gymmap/internal/pkg/logging"
)

// ---------------------------------------------------------------------------
// Track file
// ---------------------------------------------------------------------------

// Track lists the devices to simulate and the points each one walks through.
type Track struct {
	Interval string        `json:"interval"` // Go duration, defaults to 2s
	Devices  []DeviceTrack `json:"devices"`
}

type DeviceTrack struct {
	DeviceID string       `json:"device_id"`
	Accuracy float64      `json:"accuracy"`
	Points   [][2]float64 `json:"points"` // [lat, lng]
}

func loadTrack(path string) (*Track, time.Duration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read track: %w", err)
	}
	var track Track
	if err := json.Unmarshal(data, &track); err != nil {
		return nil, 0, fmt.Errorf("parse track: %w", err)
	}

	interval := 2 * time.Second
	if track.Interval != "" {
		if interval, err = time.ParseDuration(track.Interval); err != nil || interval <= 0 {
			return nil, 0, fmt.Errorf("invalid interval %q", track.Interval)
		}
	}
	for _, d := range track.Devices {
		if d.DeviceID == "" || len(d.Points) == 0 {
			return nil, 0, fmt.Errorf("device %q needs an id and at least one point", d.DeviceID)
		}
		for _, p := range d.Points {
			if pos := (domain.Position{Latitude: p[0], Longitude: p[1]}); !pos.Valid() {
				return nil, 0, fmt.Errorf("device %s: invalid point %v", d.DeviceID, p)
			}
		}
	}
	return &track, interval, nil
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("gymmap-geofeed")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	trackPath := "track.json"
	if len(os.Args) > 1 {
		trackPath = os.Args[1]
	}
	track, interval, err := loadTrack(trackPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL, cfg.NATS.Prefix)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	// Answer one-shot position requests with the latest replayed fix.
	responder := natsadapter.NewFeedResponder(pub.Conn(), cfg.NATS.Prefix, cfg.Geolocation.MaxFixAge, logger)
	if err := responder.Serve(); err != nil {
		log.Fatalf("serve position requests: %v", err)
	}
	defer responder.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("geofeed started", "devices", len(track.Devices), "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for step := 0; ; step++ {
		for _, d := range track.Devices {
			p := d.Points[step%len(d.Points)]
			fix := domain.PositionFix{
				DeviceID: d.DeviceID,
				Position: domain.Position{Latitude: p[0], Longitude: p[1]},
				Accuracy: d.Accuracy,
				Time:     time.Now().UTC(),
			}
			responder.Record(fix)

			pubCtx, cancel := context.WithTimeout(ctx, cfg.Sessions.PublishTimeout)
			if err := pub.PublishFix(pubCtx, &fix); err != nil {
				slog.Warn("publish fix", "device", d.DeviceID, "error", err)
			}
			cancel()
		}

		select {
		case <-ctx.Done():
			slog.Info("geofeed stopped")
			return
		case <-ticker.C:
		}
	}
}
