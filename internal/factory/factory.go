package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/towers-go/internal/api/middleware"
	"github.com/mcoot/towers-go/internal/dependencies/clock"
	"github.com/mcoot/towers-go/internal/dependencies/random"
	"github.com/mcoot/towers-go/internal/metrics"
	"github.com/mcoot/towers-go/internal/persist"
	"github.com/mcoot/towers-go/internal/registry"
	"github.com/mcoot/towers-go/internal/services/auth"
	"github.com/mcoot/towers-go/internal/services/stats"
	"github.com/mcoot/towers-go/internal/storage"
	"github.com/mcoot/towers-go/internal/storage/memory"
	redisstorage "github.com/mcoot/towers-go/internal/storage/redis"
	"github.com/mcoot/towers-go/internal/storage/sqlstore"
	"github.com/mcoot/towers-go/internal/transport/ws"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock   clock.Clock
	Random  random.Random
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// Services
	Persister   *persist.Persister
	Stats       *stats.Service
	AuthService *auth.Service
	Registry    *registry.Registry
	Socket      *ws.Handler
	RateLimiter *middleware.IPRateLimiter

	sessionSweep time.Duration
	stopSweep    context.CancelFunc
	sweepDone    chan struct{}
	closers      []io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresDSN is the connection string (required if StorageType is "postgres")
	PostgresDSN string
	// Registry holds room and table settings (optional)
	// If Rooms is empty, defaults to registry.DefaultConfig()
	Registry registry.Config
	// Socket holds websocket limits (optional)
	// If CommandBurst is zero, defaults to ws.DefaultConfig()
	Socket ws.Config
	// Persist holds write-behind settings (optional)
	Persist persist.Config
	// HTTPRateLimiter throttles REST calls per IP (optional)
	HTTPRateLimiter *middleware.IPRateLimiter
	// SessionSweep is how often expired sessions are dropped (optional)
	// If zero, defaults to DefaultSessionSweep
	SessionSweep time.Duration
}

// DefaultSessionSweep is the expired-session cleanup interval
const DefaultSessionSweep = 10 * time.Minute

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	var closers []io.Closer
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
		closers = append(closers, redisStore)
	case StorageTypePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("PostgresDSN required when StorageType is postgres")
		}
		db, err := sqlstore.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		sqlStore := sqlstore.New(db)
		store = sqlStore
		closers = append(closers, sqlStore)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'postgres'")
	}

	app := newWithDependencies(store, clock.New(), random.New(), cfg, logger)
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, cfg Config, logger *slog.Logger) *App {
	// Use default configs where not provided
	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg = auth.DefaultConfig()
	}
	regCfg := cfg.Registry
	if len(regCfg.Rooms) == 0 {
		regCfg = registry.DefaultConfig()
	}
	socketCfg := cfg.Socket
	if socketCfg.CommandBurst == 0 {
		socketCfg = ws.DefaultConfig()
	}
	sweep := cfg.SessionSweep
	if sweep <= 0 {
		sweep = DefaultSessionSweep
	}
	persistCfg := cfg.Persist
	if persistCfg.QueueSize == 0 {
		persistCfg = persist.DefaultConfig()
	}

	// Create services
	m := metrics.New()
	persister := persist.New(persistCfg, logger, m)
	statsService := stats.New(store, persister, clk, logger)
	authService := auth.New(store, clk, authCfg)
	reg := registry.New(regCfg, registry.Deps{
		Storage:   store,
		Stats:     statsService,
		Persister: persister,
		Clock:     clk,
		Random:    rnd,
		Metrics:   m,
		Logger:    logger,
	})
	socket := ws.NewHandler(socketCfg, authService, reg, clk, m, logger)

	return &App{
		Storage:     store,
		Clock:       clk,
		Random:      rnd,
		Metrics:     m,
		Logger:      logger,
		Persister:   persister,
		Stats:       statsService,
		AuthService: authService,
		Registry:    reg,
		Socket:      socket,
		RateLimiter: cfg.HTTPRateLimiter,

		sessionSweep: sweep,
	}
}

// Start restores persisted rooms and tables and begins background work
func (a *App) Start(ctx context.Context) error {
	if err := a.Registry.Start(ctx); err != nil {
		return err
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	a.stopSweep = cancel
	a.sweepDone = make(chan struct{})
	go func() {
		defer close(a.sweepDone)
		a.AuthService.RunSessionSweeper(sweepCtx, a.sessionSweep)
	}()
	return nil
}

// Close stops every table runtime, drains pending writes and releases storage
func (a *App) Close() error {
	if a.stopSweep != nil {
		a.stopSweep()
		<-a.sweepDone
		a.stopSweep = nil
	}
	a.Registry.Stop()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
