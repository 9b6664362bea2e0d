package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/mcoot/towers-go/internal/api"
	"github.com/mcoot/towers-go/internal/api/middleware"
	"github.com/mcoot/towers-go/internal/config"
	"github.com/mcoot/towers-go/internal/factory"
	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/persist"
	"github.com/mcoot/towers-go/internal/registry"
	redisstorage "github.com/mcoot/towers-go/internal/storage/redis"
	"github.com/mcoot/towers-go/internal/transport/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	level, _ := cfg.LogLevel()

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Create application factory
	app, err := factory.New(factoryConfig(cfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		logger.Error("failed to restore state", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		Registry:       app.Registry,
		Clock:          app.Clock,
		Metrics:        app.Metrics,
		Socket:         app.Socket,
		RateLimiter:    app.RateLimiter,
		RatedByDefault: cfg.Game.RatedDefault,
	})

	// Create server
	server := api.NewServer(router, api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()), slog.String("storage", cfg.Storage.Type))

	// Wait for shutdown or error
	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	if err := app.Close(); err != nil {
		logger.Error("failed to release storage", slog.String("error", err.Error()))
		exitCode = 1
	}
	logger.Info("server stopped")
	os.Exit(exitCode)
}

// factoryConfig maps file and environment settings onto the factory
func factoryConfig(cfg *config.Config, logger *slog.Logger) factory.Config {
	fc := factory.Config{
		Logger:      logger,
		StorageType: cfg.Storage.Type,
		PostgresDSN: cfg.Storage.PostgresDSN,
		Persist:     persist.DefaultConfig(),
	}
	fc.AuthConfig.SessionDuration = cfg.Auth.SessionDuration
	fc.AuthConfig.TicketSecret = cfg.Auth.TicketSecret
	fc.AuthConfig.TicketTTL = cfg.Auth.TicketTTL

	if cfg.Storage.Type == config.StorageRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.Storage.RedisURL
		if cfg.Storage.ChatHistory > 0 {
			redisCfg.ChatHistory = int64(cfg.Storage.ChatHistory)
		}
		fc.RedisConfig = &redisCfg
	}

	reg := registry.DefaultConfig()
	reg.Rooms = make([]model.Room, len(cfg.Rooms))
	for i, r := range cfg.Rooms {
		reg.Rooms[i] = model.Room{ID: model.RoomID(r.ID), Name: r.Name, MaxTables: r.MaxTables}
	}
	reg.TickInterval = cfg.Game.TickInterval
	reg.PingTimeout = cfg.Game.PingTimeout
	if cfg.Storage.ChatHistory > 0 {
		reg.ChatHistory = cfg.Storage.ChatHistory
	}
	reg.Table.StartDelay = cfg.Game.StartDelay
	fc.Registry = reg

	fc.Socket = ws.Config{
		CommandRate:    rate.Limit(cfg.Limits.SocketEventsPerSecond),
		CommandBurst:   cfg.Limits.SocketBurst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if cfg.Limits.HTTPBurst > 0 {
		fc.HTTPRateLimiter = middleware.NewIPRateLimiter(rate.Limit(cfg.Limits.HTTPRequestsPerSecond), cfg.Limits.HTTPBurst)
	}
	return fc
}
