package storage

import (
	"context"
	"time"

	"github.com/mcoot/towers-go/internal/model"
)

// Storage defines the interface for data persistence.
// The in-memory registry is the source of truth while the process runs; storage holds
// what must survive a restart.
type Storage interface {
	// Player operations
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)

	// Registered player operations
	SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error
	GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error)
	GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error)

	// Stats operations
	LoadOrCreateStats(ctx context.Context, id model.PlayerID, now time.Time) (*model.PlayerStats, error)
	SaveStats(ctx context.Context, stats *model.PlayerStats) error

	// Table operations
	SaveTable(ctx context.Context, table *model.TableInfo) error
	GetTable(ctx context.Context, id model.TableID) (*model.TableInfo, error)
	ListTables(ctx context.Context, roomID model.RoomID) ([]*model.TableInfo, error)
	// DeleteTable removes the table together with its seats and chat
	DeleteTable(ctx context.Context, id model.TableID) error

	// Seat operations
	UpsertSeat(ctx context.Context, seat *model.SeatAssignment) error
	GetSeats(ctx context.Context, tableID model.TableID) ([]*model.SeatAssignment, error)

	// Chat operations
	AppendChatMessage(ctx context.Context, msg *model.ChatRecord) error
	// ListChatMessages returns at most limit of the newest messages, oldest first (limit <= 0 means all)
	ListChatMessages(ctx context.Context, scope model.ChatScope, scopeID string, limit int) ([]*model.ChatRecord, error)
}
