package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/towers-go/internal/api"
	"github.com/mcoot/towers-go/internal/api/apierr"
	"github.com/mcoot/towers-go/internal/api/middleware"
	"github.com/mcoot/towers-go/internal/api/response"
	"github.com/mcoot/towers-go/internal/factory"
	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/protocol"
	"github.com/mcoot/towers-go/internal/services/table"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.App
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithLimiter(t, nil)
}

func newTestServerWithLimiter(t *testing.T, limiter *middleware.IPRateLimiter) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// API tests are integration tests - use production factory with real random/clock
	app, err := factory.New(factory.Config{Logger: logger})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() { _ = app.Close() })
	t.Cleanup(cancel)
	require.NoError(t, app.Start(ctx))

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		Registry:       app.Registry,
		Clock:          app.Clock,
		Metrics:        app.Metrics,
		Socket:         app.Socket,
		RateLimiter:    limiter,
		RatedByDefault: true,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[apierr.ErrorResponse](t, rr).Error.Code
}

func createGuestPlayer(t *testing.T, ts *testServer, displayName string) response.AuthResponse {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/players/guest", map[string]string{"display_name": displayName}, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	return decode[response.AuthResponse](t, rr)
}

func createTable(t *testing.T, ts *testServer, token string, body any) table.View {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/rooms/lobby/tables", body, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[table.View](t, rr)
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestCreateGuestPlayer(t *testing.T) {
	ts := newTestServer(t)

	resp := createGuestPlayer(t, ts, "Alice")
	assert.Equal(t, "Alice", resp.Player.DisplayName)
	assert.True(t, resp.Player.IsGuest)
	assert.NotEmpty(t, resp.SessionToken)

	rr := ts.request(http.MethodPost, "/api/v1/players/guest", map[string]string{"display_name": ""}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	// Register
	registerBody := map[string]string{
		"username":     "alice",
		"password":     "secret123",
		"display_name": "Alice",
	}
	rr := ts.request(http.MethodPost, "/api/v1/players/register", registerBody, "")
	assert.Equal(t, http.StatusCreated, rr.Code)
	registerResp := decode[response.AuthResponse](t, rr)
	assert.False(t, registerResp.Player.IsGuest)

	rr = ts.request(http.MethodPost, "/api/v1/players/register", registerBody, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeUsernameExists, errorCode(t, rr))

	// Login
	loginBody := map[string]string{
		"username": "alice",
		"password": "secret123",
	}
	rr = ts.request(http.MethodPost, "/api/v1/players/login", loginBody, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	loginResp := decode[response.AuthResponse](t, rr)
	assert.Equal(t, registerResp.Player.ID, loginResp.Player.ID)

	loginBody["password"] = "wrong"
	rr = ts.request(http.MethodPost, "/api/v1/players/login", loginBody, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCredentials, errorCode(t, rr))

	// Usernames are case-insensitive
	loginBody = map[string]string{"username": "ALICE", "password": "secret123"}
	rr = ts.request(http.MethodPost, "/api/v1/players/login", loginBody, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/players/register", map[string]string{
		"username": "no spaces", "password": "secret123", "display_name": "X",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidUsername, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/players/register", map[string]string{
		"username": "carol", "password": "short", "display_name": "Carol",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeWeakPassword, errorCode(t, rr))
}

func TestGetMeAndLogout(t *testing.T) {
	ts := newTestServer(t)
	bob := createGuestPlayer(t, ts, "Bob")

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, bob.SessionToken)
	assert.Equal(t, http.StatusOK, rr.Code)
	me := decode[response.Player](t, rr)
	assert.Equal(t, "Bob", me.DisplayName)
	assert.False(t, me.Online)

	rr = ts.request(http.MethodPost, "/api/v1/players/logout", nil, bob.SessionToken)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/players/me", nil, bob.SessionToken)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/players/me"},
		{http.MethodPost, "/api/v1/socket-ticket"},
		{http.MethodGet, "/api/v1/rooms"},
		{http.MethodPost, "/api/v1/rooms/lobby/tables"},
		{http.MethodGet, "/api/v1/tables/lobby-1"},
	} {
		rr := ts.request(route.method, route.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "%s %s", route.method, route.path)
	}
}

func TestSocketTicket(t *testing.T) {
	ts := newTestServer(t)
	alice := createGuestPlayer(t, ts, "Alice")

	rr := ts.request(http.MethodPost, "/api/v1/socket-ticket", nil, alice.SessionToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	ticket := decode[response.Ticket](t, rr)
	assert.NotEmpty(t, ticket.Ticket)
	assert.True(t, ticket.ExpiresAt.After(time.Now()))

	player, err := ts.app.AuthService.ValidateTicket(ticket.Ticket)
	require.NoError(t, err)
	assert.Equal(t, alice.Player.ID, string(player.ID))
}

func TestRoomsAndTables(t *testing.T) {
	ts := newTestServer(t)
	alice := createGuestPlayer(t, ts, "Alice")
	bob := createGuestPlayer(t, ts, "Bob")

	rr := ts.request(http.MethodGet, "/api/v1/rooms", nil, alice.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	rooms := decode[response.Rooms](t, rr)
	require.Len(t, rooms.Rooms, 1)
	assert.Equal(t, "lobby", string(rooms.Rooms[0].ID))
	assert.Equal(t, 0, rooms.Rooms[0].TableCount)

	created := createTable(t, ts, alice.SessionToken, nil)
	assert.Equal(t, "lobby-1", string(created.ID))
	assert.Equal(t, 1, created.Number)
	assert.True(t, created.Rated, "tables are rated unless the request says otherwise")
	require.Len(t, created.Members, 1)
	assert.Equal(t, alice.Player.ID, string(created.Members[0].ID))

	second := createTable(t, ts, bob.SessionToken, map[string]any{"type": "protected", "rated": false})
	assert.Equal(t, "lobby-2", string(second.ID))
	assert.False(t, second.Rated)

	rr = ts.request(http.MethodGet, "/api/v1/rooms/lobby/tables", nil, bob.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[response.Tables](t, rr)
	require.Len(t, list.Tables, 2)
	assert.Equal(t, 1, list.Tables[0].Number)
	assert.Equal(t, 2, list.Tables[1].Number)

	rr = ts.request(http.MethodGet, "/api/v1/tables/lobby-1", nil, bob.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decode[table.View](t, rr)
	assert.Len(t, view.Seats, 8)

	rr = ts.request(http.MethodPost, "/api/v1/tables/lobby-1/reload", nil, alice.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	reload := decode[response.Reload](t, rr)
	assert.Empty(t, reload.Changed)
}

func TestTableErrors(t *testing.T) {
	ts := newTestServer(t)
	alice := createGuestPlayer(t, ts, "Alice")
	bob := createGuestPlayer(t, ts, "Bob")

	rr := ts.request(http.MethodPost, "/api/v1/rooms/lobby/tables", map[string]string{"type": "secret"}, alice.SessionToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidTableType, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/rooms/cellar/tables", nil, alice.SessionToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeRoomNotFound, errorCode(t, rr))

	rr = ts.request(http.MethodGet, "/api/v1/tables/lobby-9", nil, alice.SessionToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeTableNotFound, errorCode(t, rr))

	private := createTable(t, ts, alice.SessionToken, map[string]string{"type": "private"})
	rr = ts.request(http.MethodGet, "/api/v1/tables/"+string(private.ID), nil, bob.SessionToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeAccessDenied, errorCode(t, rr))
}

func TestPlayerStats(t *testing.T) {
	ts := newTestServer(t)
	alice := createGuestPlayer(t, ts, "Alice")

	rr := ts.request(http.MethodGet, "/api/v1/players/me/stats", nil, alice.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	st := decode[response.Stats](t, rr)
	assert.Equal(t, alice.Player.ID, st.PlayerID)
	assert.Equal(t, 1200, st.Rating)
	assert.False(t, st.Hero)

	rr = ts.request(http.MethodGet, "/api/v1/players/p_nobody/stats", nil, alice.SessionToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodePlayerNotFound, errorCode(t, rr))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	alice := createGuestPlayer(t, ts, "Alice")
	createTable(t, ts, alice.SessionToken, nil)

	rr := ts.request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "towers_active_tables 1")
}

func TestRateLimitedRequests(t *testing.T) {
	ts := newTestServerWithLimiter(t, middleware.NewIPRateLimiter(0, 1))

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, apierr.CodeRateLimited, errorCode(t, rr))
}

func TestSocketRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	t.Cleanup(srv.Close)

	alice := createGuestPlayer(t, ts, "Alice")
	rr := ts.request(http.MethodPost, "/api/v1/socket-ticket", nil, alice.SessionToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	ticket := decode[response.Ticket](t, rr)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?ticket=" + ticket.Ticket
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"room.join","id":"1","payload":{"room_id":"lobby"}}`)))

	// Presence for our own arrival may precede the ack
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg struct {
			Type    string `json:"type"`
			ID      string `json:"id"`
			Payload struct {
				OK bool `json:"ok"`
			} `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type != protocol.TypeAck {
			continue
		}
		assert.Equal(t, "1", msg.ID)
		assert.True(t, msg.Payload.OK)
		break
	}

	assert.True(t, ts.app.Registry.IsOnline(model.PlayerID(alice.Player.ID)))
}
