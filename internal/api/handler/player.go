package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/towers-go/internal/api/middleware"
	"github.com/mcoot/towers-go/internal/api/request"
	"github.com/mcoot/towers-go/internal/api/response"
	"github.com/mcoot/towers-go/internal/dependencies/clock"
	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/registry"
	"github.com/mcoot/towers-go/internal/services/auth"
)

// PlayerHandler handles player-related endpoints
type PlayerHandler struct {
	authService *auth.Service
	registry    *registry.Registry
	clock       clock.Clock
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(authService *auth.Service, reg *registry.Registry, clk clock.Clock) *PlayerHandler {
	return &PlayerHandler{
		authService: authService,
		registry:    reg,
		clock:       clk,
	}
}

// CreateGuest handles POST /api/v1/players/guest
func (h *PlayerHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req request.CreateGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.DisplayName == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	session, err := h.authService.CreateGuestPlayer(r.Context(), req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AuthResponseFromSession(session))
}

// Register handles POST /api/v1/players/register
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}
	if req.DisplayName == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	session, err := h.authService.RegisterPlayer(r.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AuthResponseFromSession(session))
}

// Login handles POST /api/v1/players/login
func (h *PlayerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	session, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthResponseFromSession(session))
}

// Logout handles POST /api/v1/players/logout
func (h *PlayerHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session != nil {
		h.authService.InvalidateSession(session.Token)
	}
	response.NoContent(w)
}

// GetMe handles GET /api/v1/players/me
func (h *PlayerHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	resp := response.PlayerFromModel(player)
	resp.Online = h.registry.IsOnline(player.ID)
	response.JSON(w, http.StatusOK, resp)
}

// Online handles GET /api/v1/players/online
func (h *PlayerHandler) Online(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.OnlinePlayersFromModel(h.registry.OnlinePlayers()))
}

// Stats handles GET /api/v1/players/{id}/stats
func (h *PlayerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id := model.PlayerID(mux.Vars(r)["id"])
	if id == "me" {
		id = middleware.MustGetPlayer(r.Context()).ID
	}

	st, err := h.registry.PlayerStats(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.StatsFromModel(st, h.clock.Now()))
}

// Ticket handles POST /api/v1/socket-ticket
func (h *PlayerHandler) Ticket(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		WriteError(w, NewUnauthorizedError())
		return
	}

	ticket, err := h.authService.IssueTicket(session.Token)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.Ticket{
		Ticket:    ticket,
		ExpiresAt: h.clock.Now().Add(h.authService.TicketTTL()),
	})
}
