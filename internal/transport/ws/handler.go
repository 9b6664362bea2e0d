// Package ws carries the client protocol over websockets: it authenticates the upgrade
// with a socket ticket, decodes commands, rate limits them and acknowledges each one.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mcoot/towers-go/internal/api/apierr"
	"github.com/mcoot/towers-go/internal/dependencies/clock"
	"github.com/mcoot/towers-go/internal/metrics"
	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/protocol"
	"github.com/mcoot/towers-go/internal/registry"
)

// TicketValidator resolves a socket ticket to the player it was issued for
type TicketValidator interface {
	ValidateTicket(ticket string) (*model.Player, error)
}

// Core is the part of the registry a socket talks to
type Core interface {
	Connect(ctx context.Context, p model.Player, conn registry.Conn)
	Disconnect(id model.PlayerID, connID string)
	Dispatch(ctx context.Context, p model.Player, cmd protocol.Command) (any, error)
}

// Config controls per-connection limits
type Config struct {
	// CommandRate is the sustained number of commands per second a connection may send
	CommandRate  rate.Limit
	CommandBurst int
	// AllowedOrigins restricts browser origins; empty allows any
	AllowedOrigins []string
}

// DefaultConfig returns the standard socket limits
func DefaultConfig() Config {
	return Config{CommandRate: 20, CommandBurst: 40}
}

// Handler upgrades authenticated requests to websocket connections
type Handler struct {
	cfg      Config
	tickets  TicketValidator
	core     Core
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler
func NewHandler(cfg Config, tickets TicketValidator, core Core, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Handler {
	h := &Handler{
		cfg:     cfg,
		tickets: tickets,
		core:    core,
		clock:   clk,
		metrics: m,
		logger:  logger.With(slog.String("component", "ws")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range h.cfg.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// ServeHTTP handles GET /ws?ticket=...
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		apierr.WriteError(w, apierr.NewUnauthorizedError())
		return
	}
	player, err := h.tickets.ValidateTicket(ticket)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &conn{
		id:      uuid.NewString(),
		player:  *player,
		ws:      wsConn,
		limiter: rate.NewLimiter(h.cfg.CommandRate, h.cfg.CommandBurst),
		logger:  h.logger.With(slog.String("player_id", string(player.ID))),
		send:    make(chan []byte, sendBuffer),
		closed:  make(chan struct{}),
	}
	// The request context ends when ServeHTTP returns; the socket outlives it
	ctx, cancel := context.WithCancel(context.Background())

	h.core.Connect(ctx, c.player, c)
	c.logger.Info("socket connected", slog.String("conn_id", c.id))

	go c.writePump()
	go h.readPump(ctx, cancel, c)
}

func (h *Handler) readPump(ctx context.Context, cancel context.CancelFunc, c *conn) {
	defer func() {
		cancel()
		c.close()
		h.core.Disconnect(c.player.ID, c.id)
		c.logger.Info("socket disconnected", slog.String("conn_id", c.id))
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("socket read failed", slog.Any("error", err))
			}
			return
		}
		h.handleFrame(ctx, c, data)
	}
}

// handleFrame decodes and executes one client frame, then acknowledges it.
// A ping.request waits for another player's pong, so it runs off the read loop.
func (h *Handler) handleFrame(ctx context.Context, c *conn, data []byte) {
	env, cmd, err := protocol.Decode(data)
	if err == nil && !c.limiter.Allow() {
		err = model.ErrRateLimited
	}
	if err != nil {
		h.finish(c, env, "invalid", nil, err)
		return
	}

	if _, ok := cmd.(protocol.PingRequest); ok {
		go h.execute(ctx, c, env, cmd)
		return
	}
	h.execute(ctx, c, env, cmd)
}

func (h *Handler) execute(ctx context.Context, c *conn, env protocol.Envelope, cmd protocol.Command) {
	result, err := h.core.Dispatch(ctx, c.player, cmd)
	h.finish(c, env, cmd.Type(), result, err)
}

func (h *Handler) finish(c *conn, env protocol.Envelope, label string, result any, err error) {
	outcome := "ok"
	var body *protocol.ErrorBody
	if err != nil {
		outcome = "error"
		status, apiErr := apierr.Describe(err)
		body = &protocol.ErrorBody{Code: apiErr.Code, Message: apiErr.Message}
		switch {
		case status >= http.StatusInternalServerError:
			c.logger.Error("command failed", slog.String("type", env.Type), slog.Any("error", err))
		case errors.Is(err, model.ErrRateLimited):
			outcome = "limited"
		default:
			c.logger.Debug("command rejected", slog.String("type", env.Type), slog.Any("error", err))
		}
	}
	h.metrics.SocketEvents.WithLabelValues(label, outcome).Inc()

	if env.Type == protocol.TypePong && err == nil {
		return
	}
	if !c.Send(protocol.NewAck(env.ID, h.clock.Now(), result, body)) {
		h.metrics.BroadcastDrops.Inc()
	}
}
