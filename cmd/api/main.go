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

	"github.com/samirrijal/routefinder/internal/adapters/http"
	natsadapter "github.com/samirrijal/routefinder/internal/adapters/nats"
	"github.com/samirrijal/routefinder/internal/adapters/nominatim"
	"github.com/samirrijal/routefinder/internal/adapters/routingapi"
	"github.com/samirrijal/routefinder/internal/adapters/valkey"
	"github.com/samirrijal/routefinder/internal/core/usecases"
	"github.com/samirrijal/routefinder/internal/pkg/config"
	"github.com/samirrijal/routefinder/internal/pkg/httpclient"
	"github.com/samirrijal/routefinder/internal/pkg/logging"
	"github.com/samirrijal/routefinder/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("routefinder-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	policy, err := usecases.ParseMultiLinePolicy(cfg.Routing.MultiLinePolicy)
	if err != nil {
		log.Fatalf("routing: %v", err)
	}

	deps := &http.Dependencies{Version: version}

	var resolverOpts []usecases.ResolverOption
	resolverOpts = append(resolverOpts,
		usecases.WithPreferredKind(cfg.Geocoder.PreferredKind),
		usecases.WithCacheTTL(cfg.Geocoder.CacheTTLSeconds),
	)
	var resolver *usecases.PlaceResolver

	geocoder := nominatim.New(cfg.Geocoder.BaseURL,
		httpclient.New(cfg.Geocoder.UserAgent, time.Duration(cfg.Geocoder.TimeoutSeconds)*time.Second))

	// Cache
	if cfg.Valkey.Enabled {
		cache, err := valkey.New(cfg.Valkey.Addr, "routefinder:")
		if err != nil {
			slog.Warn("valkey unavailable, geocoding uncached", "error", err)
		} else {
			defer cache.Close()
			deps.Cache = cache
			resolver = usecases.NewPlaceResolver(geocoder, cache, resolverOpts...)
		}
	}
	if resolver == nil {
		resolver = usecases.NewPlaceResolver(geocoder, nil, resolverOpts...)
	}

	sessionDeps := usecases.SessionDeps{
		Resolver: resolver,
		Router: routingapi.New(cfg.Routing.BaseURL,
			httpclient.New(cfg.Geocoder.UserAgent, time.Duration(cfg.Routing.TimeoutSeconds)*time.Second)),
		Normalizer: usecases.NewGeometryNormalizer(policy),
	}

	// NATS
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, transitions not published", "error", err)
		} else {
			defer pub.Close()
			sessionDeps.Events = pub
			deps.NATS = pub.Conn()
		}
	}

	idleTTL := time.Duration(cfg.Session.IdleTTLSeconds) * time.Second
	deps.Sessions = usecases.NewSessionManager(sessionDeps, idleTTL)
	go deps.Sessions.RunJanitor(ctx, janitorInterval(idleTTL))

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "RouteFinder API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match",
		ExposeHeaders:    "ETag, Link, Location",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "version", version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// janitorInterval sweeps a few times per TTL, at most once a minute.
func janitorInterval(ttl time.Duration) time.Duration {
	iv := ttl / 4
	if iv > time.Minute {
		iv = time.Minute
	}
	if iv < time.Second {
		iv = time.Second
	}
	return iv
}
