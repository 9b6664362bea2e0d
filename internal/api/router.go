package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/towers-go/internal/api/handler"
	"github.com/mcoot/towers-go/internal/api/middleware"
	"github.com/mcoot/towers-go/internal/dependencies/clock"
	"github.com/mcoot/towers-go/internal/metrics"
	basemw "github.com/mcoot/towers-go/internal/middleware"
	"github.com/mcoot/towers-go/internal/registry"
	"github.com/mcoot/towers-go/internal/services/auth"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	AuthService *auth.Service
	Registry    *registry.Registry
	Clock       clock.Clock
	Metrics     *metrics.Metrics
	// Socket serves GET /ws; nil leaves the route unregistered
	Socket http.Handler
	// RateLimiter throttles REST calls per client IP; nil disables it
	RateLimiter *middleware.IPRateLimiter
	// RatedByDefault applies to tables created without an explicit rated flag
	RatedByDefault bool
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.AuthService, cfg.Registry, cfg.Clock)
	roomHandler := handler.NewRoomHandler(cfg.Registry, cfg.RatedByDefault)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)
	if cfg.RateLimiter != nil {
		api.Use(middleware.RateLimit(cfg.RateLimiter))
	}

	// Player routes (no auth required for creating players/logging in)
	api.HandleFunc("/players/guest", playerHandler.CreateGuest).Methods(http.MethodPost)
	api.HandleFunc("/players/register", playerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/players/login", playerHandler.Login).Methods(http.MethodPost)

	// Protected player routes
	playerProtected := api.PathPrefix("/players").Subrouter()
	playerProtected.Use(authMiddleware)
	playerProtected.HandleFunc("/me", playerHandler.GetMe).Methods(http.MethodGet)
	playerProtected.HandleFunc("/logout", playerHandler.Logout).Methods(http.MethodPost)
	playerProtected.HandleFunc("/online", playerHandler.Online).Methods(http.MethodGet)
	playerProtected.HandleFunc("/{id}/stats", playerHandler.Stats).Methods(http.MethodGet)

	// Socket tickets
	ticket := api.PathPrefix("/socket-ticket").Subrouter()
	ticket.Use(authMiddleware)
	ticket.HandleFunc("", playerHandler.Ticket).Methods(http.MethodPost)

	// Room and table routes (all require auth)
	rooms := api.PathPrefix("/rooms").Subrouter()
	rooms.Use(authMiddleware)
	rooms.HandleFunc("", roomHandler.List).Methods(http.MethodGet)
	rooms.HandleFunc("/{room}/tables", roomHandler.ListTables).Methods(http.MethodGet)
	rooms.HandleFunc("/{room}/tables", roomHandler.CreateTable).Methods(http.MethodPost)

	tables := api.PathPrefix("/tables").Subrouter()
	tables.Use(authMiddleware)
	tables.HandleFunc("/{id}", roomHandler.GetTable).Methods(http.MethodGet)
	tables.HandleFunc("/{id}/reload", roomHandler.ReloadTable).Methods(http.MethodPost)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Non-JSON routes answer panics with a plain 500
	plainRecovery := basemw.Recovery(cfg.Logger, basemw.DefaultPanicHandler)
	if cfg.Metrics != nil {
		r.Handle("/metrics", plainRecovery(cfg.Metrics.Handler())).Methods(http.MethodGet)
	}
	if cfg.Socket != nil {
		r.Handle("/ws", plainRecovery(cfg.Socket)).Methods(http.MethodGet)
	}

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
