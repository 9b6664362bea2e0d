// Package registry is the process-wide owner of live state: connected players, rooms and
// the table runtimes. Every client command enters the core through it.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/towers-go/internal/dependencies/clock"
	"github.com/mcoot/towers-go/internal/dependencies/random"
	"github.com/mcoot/towers-go/internal/metrics"
	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/persist"
	"github.com/mcoot/towers-go/internal/protocol"
	"github.com/mcoot/towers-go/internal/services/chat"
	"github.com/mcoot/towers-go/internal/services/invitation"
	"github.com/mcoot/towers-go/internal/services/stats"
	"github.com/mcoot/towers-go/internal/services/table"
	"github.com/mcoot/towers-go/internal/storage"
)

// Conn is one live client connection
type Conn interface {
	ID() string
	// Send queues msg for delivery and reports false when the connection cannot keep up
	Send(msg protocol.ServerMessage) bool
}

// Config holds registry settings
type Config struct {
	Rooms []model.Room
	Table table.Config
	// TickInterval is how often table runtimes advance falling pieces; zero disables ticking
	TickInterval time.Duration
	PingTimeout  time.Duration
	// ChatHistory is the number of messages restored into each room and table log
	ChatHistory int
}

// DefaultConfig returns the standard registry settings with a single lobby
func DefaultConfig() Config {
	return Config{
		Rooms:        []model.Room{{ID: "lobby", Name: "Lobby", MaxTables: 50}},
		Table:        table.DefaultConfig(),
		TickInterval: 500 * time.Millisecond,
		PingTimeout:  2 * time.Second,
		ChatHistory:  table.ChatHistory,
	}
}

// Deps are the collaborators the registry is built with
type Deps struct {
	Storage   storage.Storage
	Stats     *stats.Service
	Persister *persist.Persister
	Clock     clock.Clock
	Random    random.Random
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type playerEntry struct {
	player        model.Player
	conns         map[string]Conn
	blocksInvites bool
}

func (e *playerEntry) online() bool { return len(e.conns) > 0 }

type tableEntry struct {
	roomID  model.RoomID
	runtime *table.Runtime
}

type pingWaiter struct {
	player model.PlayerID
	done   chan struct{}
}

// Registry coordinates every live player, room and table
type Registry struct {
	cfg     Config
	deps    Deps
	logger  *slog.Logger
	mutes   *chat.Mutes
	invites *invitation.Manager

	// mu guards the maps below. It is never held while waiting on a table runtime.
	mu       sync.RWMutex
	players  map[model.PlayerID]*playerEntry
	rooms    map[model.RoomID]*room
	tables   map[model.TableID]*tableEntry
	reserved map[model.TableID]bool

	pingMu sync.Mutex
	pings  map[string]pingWaiter
}

// New creates a registry with the configured rooms
func New(cfg Config, deps Deps) *Registry {
	r := &Registry{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger.With(slog.String("component", "registry")),
		mutes:    chat.NewMutes(deps.Clock),
		invites:  invitation.NewManager(deps.Clock),
		players:  make(map[model.PlayerID]*playerEntry),
		rooms:    make(map[model.RoomID]*room),
		tables:   make(map[model.TableID]*tableEntry),
		reserved: make(map[model.TableID]bool),
		pings:    make(map[string]pingWaiter),
	}
	for _, info := range cfg.Rooms {
		r.rooms[info.ID] = r.newRoom(info)
	}
	return r
}

// Start runs the persister and restores room chat and tables from storage
func (r *Registry) Start(ctx context.Context) error {
	go r.deps.Persister.Run(context.WithoutCancel(ctx))

	for _, info := range r.cfg.Rooms {
		if err := r.restoreRoomChat(ctx, info.ID); err != nil {
			return err
		}
		tables, err := r.deps.Storage.ListTables(ctx, info.ID)
		if err != nil {
			return fmt.Errorf("list tables in %s: %w", info.ID, err)
		}
		for _, t := range tables {
			if _, err := r.GetOrCreateTable(ctx, t.ID); err != nil {
				return fmt.Errorf("restore table %s: %w", t.ID, err)
			}
		}
		r.logger.Info("room restored", slog.String("room_id", string(info.ID)), slog.Int("tables", len(tables)))
	}
	return nil
}

// Stop halts every table runtime and drains pending writes.
// Persisted seats are left in place so the next start can rebuild the tables.
func (r *Registry) Stop() {
	r.mu.Lock()
	entries := make([]*tableEntry, 0, len(r.tables))
	for id, e := range r.tables {
		entries = append(entries, e)
		delete(r.tables, id)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.runtime.Stop()
	}
	r.deps.Metrics.ActiveTables.Sub(float64(len(entries)))
	r.deps.Persister.Stop()
}

// Mutes exposes the mute registry
func (r *Registry) Mutes() *chat.Mutes {
	return r.mutes
}

// Invitations exposes the invitation manager
func (r *Registry) Invitations() *invitation.Manager {
	return r.invites
}

// enqueue schedules a storage write, logging when the queue refuses it
func (r *Registry) enqueue(name string, job persist.Job) {
	if err := r.deps.Persister.Enqueue(name, job); err != nil {
		r.logger.Error("failed to schedule write", slog.String("job", name), slog.Any("error", err))
	}
}

func (r *Registry) event(typ model.EventType, roomID model.RoomID, tableID model.TableID, payload any) model.Event {
	return model.Event{
		Type:      typ,
		Timestamp: r.deps.Clock.Now(),
		RoomID:    roomID,
		TableID:   tableID,
		Payload:   payload,
	}
}

func sortedIDs[T ~string](set map[T]bool) []T {
	out := make([]T, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
