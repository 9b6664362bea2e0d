package e2e_test

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/towers-go/internal/api"
	"github.com/mcoot/towers-go/internal/factory"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	tokenFile  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "towers-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/towers")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		tokenFile:  filepath.Join(t.TempDir(), "token"),
	}
}

// withTokenFile returns a runner sharing the binary but holding its own session
func (r *cliRunner) withTokenFile(t *testing.T) *cliRunner {
	return &cliRunner{
		binaryPath: r.binaryPath,
		serverURL:  r.serverURL,
		tokenFile:  filepath.Join(t.TempDir(), "token"),
	}
}

func (r *cliRunner) args(extra ...string) []string {
	return append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, extra...)
}

func (r *cliRunner) run(args ...string) (string, error) {
	cmd := exec.Command(r.binaryPath, r.args(args...)...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	server   *http.Server
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	app, err := factory.New(factory.Config{Logger: logger})
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		Registry:       app.Registry,
		Clock:          app.Clock,
		Metrics:        app.Metrics,
		Socket:         app.Socket,
		RatedByDefault: true,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		server: server,
		addr:   serverURL,
		shutdown: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
			_ = app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type authResponse struct {
	Player struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		IsGuest     bool   `json:"is_guest"`
	} `json:"player"`
	SessionToken string `json:"session_token"`
}

type playerResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type statsResponse struct {
	PlayerID string `json:"player_id"`
	Rating   int    `json:"rating"`
}

type ticketResponse struct {
	Ticket string `json:"ticket"`
}

type tableResponse struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id"`
	Number int    `json:"number"`
	HostID string `json:"host_id"`
	Type   string `json:"type"`
	Rated  bool   `json:"rated"`
	Seats  []struct {
		Number int `json:"number"`
	} `json:"seats"`
	Members []struct {
		ID string `json:"id"`
	} `json:"members"`
}

type tablesResponse struct {
	RoomID string          `json:"room_id"`
	Tables []tableResponse `json:"tables"`
}

type roomsResponse struct {
	Rooms []struct {
		ID         string `json:"id"`
		TableCount int    `json:"table_count"`
	} `json:"rooms"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func decode[T any](t *testing.T, output string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(output), &v), "output: %s", output)
	return v
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, "ok", decode[healthResponse](t, output).Status)
}

func TestCLI_PlayerCommands(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Create guest
	output, err := cli.run("player", "guest", "--name", "Alice")
	require.NoError(t, err, "output: %s", output)

	authResp := decode[authResponse](t, output)
	assert.Equal(t, "Alice", authResp.Player.DisplayName)
	assert.True(t, authResp.Player.IsGuest)
	assert.NotEmpty(t, authResp.SessionToken)

	// Get me (token should be saved in token file)
	output, err = cli.run("player", "me")
	require.NoError(t, err, "output: %s", output)
	me := decode[playerResponse](t, output)
	assert.Equal(t, authResp.Player.ID, me.ID)

	// New players start at the default rating
	output, err = cli.run("player", "stats")
	require.NoError(t, err, "output: %s", output)
	stats := decode[statsResponse](t, output)
	assert.Equal(t, authResp.Player.ID, stats.PlayerID)
	assert.Equal(t, 1200, stats.Rating)

	output, err = cli.run("player", "ticket")
	require.NoError(t, err, "output: %s", output)
	assert.NotEmpty(t, decode[ticketResponse](t, output).Ticket)

	// Logout removes the token, so the next call is unauthenticated
	output, err = cli.run("player", "logout")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, "Logged out", decode[messageResponse](t, output).Message)

	output, err = cli.run("player", "me")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "unauthorized")
}

func TestCLI_TableCommands(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	alice := newCLIRunner(t, ts.addr)
	bob := alice.withTokenFile(t)

	output, err := alice.run("player", "guest", "--name", "Alice")
	require.NoError(t, err, "output: %s", output)
	aliceID := decode[authResponse](t, output).Player.ID

	output, err = bob.run("player", "guest", "--name", "Bob")
	require.NoError(t, err, "output: %s", output)

	// Alice opens a table and is its host
	output, err = alice.run("table", "create", "lobby", "--unrated")
	require.NoError(t, err, "output: %s", output)
	created := decode[tableResponse](t, output)
	assert.Equal(t, "lobby", created.RoomID)
	assert.Equal(t, 1, created.Number)
	assert.Equal(t, aliceID, created.HostID)
	assert.Equal(t, "public", created.Type)
	assert.False(t, created.Rated)
	assert.Len(t, created.Seats, 8)
	require.Len(t, created.Members, 1)

	// Both players see it listed
	output, err = bob.run("rooms", "tables", "lobby")
	require.NoError(t, err, "output: %s", output)
	tables := decode[tablesResponse](t, output)
	require.Len(t, tables.Tables, 1)
	assert.Equal(t, created.ID, tables.Tables[0].ID)

	output, err = bob.run("rooms", "list")
	require.NoError(t, err, "output: %s", output)
	rooms := decode[roomsResponse](t, output)
	require.NotEmpty(t, rooms.Rooms)
	assert.Equal(t, 1, rooms.Rooms[0].TableCount)

	// Public tables are visible to non-members
	output, err = bob.run("table", "get", created.ID)
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, created.ID, decode[tableResponse](t, output).ID)

	// Nothing changed in storage, so nothing to reload
	output, err = alice.run("table", "reload", created.ID)
	require.NoError(t, err, "output: %s", output)
	assert.Contains(t, output, `"changed_seats": []`)
}

func TestCLI_PrivateTableHidden(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	alice := newCLIRunner(t, ts.addr)
	bob := alice.withTokenFile(t)

	_, err := alice.run("player", "guest", "--name", "Alice")
	require.NoError(t, err)
	_, err = bob.run("player", "guest", "--name", "Bob")
	require.NoError(t, err)

	output, err := alice.run("table", "create", "lobby", "--type", "private")
	require.NoError(t, err, "output: %s", output)
	created := decode[tableResponse](t, output)

	output, err = bob.run("table", "get", created.ID)
	assert.Error(t, err)
	assert.Contains(t, output, "ACCESS_DENIED")
}

func TestCLI_Watch(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	_, err := cli.run("player", "guest", "--name", "Alice")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, cli.binaryPath, cli.args("watch", "--room", "lobby", "--json")...)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	// The room join is acknowledged
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var ack string
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), `"type":"ack"`) {
			ack = scanner.Text()
			break
		}
	}
	require.NotEmpty(t, ack, "no ack before the stream ended: %v", scanner.Err())
	assert.Contains(t, ack, `"ok":true`)
}

func TestCLI_ErrorHandling(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Get player without auth
	output, err := cli.run("player", "me")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "unauthorized")

	output, err = cli.run("player", "guest", "--name", "Alice")
	require.NoError(t, err, "output: %s", output)

	output, err = cli.run("table", "get", "nowhere-1")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "not found")

	output, err = cli.run("table", "create", "nowhere")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "room not found")
}
