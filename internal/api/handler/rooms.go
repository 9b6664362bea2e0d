package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/towers-go/internal/api/middleware"
	"github.com/mcoot/towers-go/internal/api/request"
	"github.com/mcoot/towers-go/internal/api/response"
	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/registry"
)

// RoomHandler handles room and table endpoints
type RoomHandler struct {
	registry *registry.Registry
	// RatedByDefault applies when a create request does not say
	ratedByDefault bool
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(reg *registry.Registry, ratedByDefault bool) *RoomHandler {
	return &RoomHandler{registry: reg, ratedByDefault: ratedByDefault}
}

// List handles GET /api/v1/rooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Rooms{Rooms: h.registry.Rooms()})
}

// ListTables handles GET /api/v1/rooms/{room}/tables
func (h *RoomHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["room"])

	tables, err := h.registry.ListTables(r.Context(), roomID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Tables{RoomID: string(roomID), Tables: tables})
}

// CreateTable handles POST /api/v1/rooms/{room}/tables
func (h *RoomHandler) CreateTable(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	roomID := model.RoomID(mux.Vars(r)["room"])

	var req request.CreateTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	typ := model.TablePublic
	if req.Type != "" {
		typ = model.TableType(req.Type)
	}
	rated := h.ratedByDefault
	if req.Rated != nil {
		rated = *req.Rated
	}

	view, err := h.registry.CreateTable(r.Context(), roomID, *player, typ, rated)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, view)
}

// GetTable handles GET /api/v1/tables/{id}
func (h *RoomHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	id := model.TableID(mux.Vars(r)["id"])

	view, err := h.registry.TableView(r.Context(), id, player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, view)
}

// ReloadTable handles POST /api/v1/tables/{id}/reload
func (h *RoomHandler) ReloadTable(w http.ResponseWriter, r *http.Request) {
	id := model.TableID(mux.Vars(r)["id"])

	changed, err := h.registry.ReloadTable(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	if changed == nil {
		changed = []int{}
	}

	response.JSON(w, http.StatusOK, response.Reload{TableID: string(id), Changed: changed})
}
