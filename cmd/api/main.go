package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/gymmap/internal/adapters/canvas"
	"github.com/samirrijal/gymmap/internal/adapters/http"
	natsadapter "github.com/samirrijal/gymmap/internal/adapters/nats"
	"github.com/samirrijal/gymmap/internal/adapters/postgres"
	"github.com/samirrijal/gymmap/internal/adapters/valkey"
	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
	"github.com/samirrijal/gymmap/internal/core/usecases"
	"github.com/samirrijal/gymmap/internal/pkg/config"
	"github.com/samirrijal/gymmap/internal/pkg/logging"
	"github.com/samirrijal/gymmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("gymmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr, cfg.Telemetry.SampleRatio)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() {
				flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer flushCancel()
				_ = shutdown(flushCtx)
			}()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache: gym lookups and last known positions. Both are optional.
	var (
		cacheSvc  ports.CacheService
		caches    ports.PositionCacheFactory
		positions http.LastPositions
	)
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		pc := valkey.NewPositionCaches(cache, cfg.Geolocation.CacheTTL)
		cacheSvc, caches, positions = cache, pc, pc
	}

	// NATS: session events, position requests and the WebSocket relay.
	var (
		events ports.EventPublisher
		conn   *nats.Conn
	)
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL, cfg.NATS.Prefix)
	if err != nil {
		slog.Warn("nats unavailable, positions will not be acquired", "error", err)
	} else {
		defer pub.Close()
		events, conn = pub, pub.Conn()
	}

	gyms := usecases.NewGymService(postgres.NewGymRepo(db), cacheSvc)
	sessions := usecases.NewSessionService(
		canvas.NewSurface(logger),
		natsadapter.NewLocators(conn, cfg.NATS.Prefix, logger),
		caches,
		gyms,
		events,
		usecases.SessionConfig{
			DefaultPosition:    domain.Position{Latitude: cfg.Map.DefaultLat, Longitude: cfg.Map.DefaultLng},
			DefaultLevel:       cfg.Map.DefaultLevel,
			Viewport:           ports.Container{Width: cfg.Map.Width, Height: cfg.Map.Height},
			AcquisitionTimeout: cfg.Geolocation.Timeout,
			GymLimit:           cfg.Sessions.GymLimit,
			PublishTimeout:     cfg.Sessions.PublishTimeout,
			Logger:             logger,
		},
	)

	deps := &http.Dependencies{
		Sessions:  sessions,
		Gyms:      gyms,
		Positions: positions,
		Subjects:  natsadapter.NewSubjects(cfg.NATS.Prefix),
		NATS:      conn,
		DB:        db,
		Cache:     cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024, // requests are small JSON gestures
		AppName:      "GymMap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Traceparent",
		ExposeHeaders:    "Location, Link, ETag, X-Request-ID",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	// Sessions publish a closed event each, so close them before NATS drains.
	sessions.Shutdown()

	slog.Info("server stopped")
}
