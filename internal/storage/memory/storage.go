package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players           map[model.PlayerID]*model.Player
	registeredPlayers map[model.PlayerID]*model.RegisteredPlayer
	usernameIndex     map[string]model.PlayerID
	stats             map[model.PlayerID]*model.PlayerStats
	tables            map[model.TableID]*model.TableInfo
	seats             map[seatKey]*model.SeatAssignment
	chat              map[chatKey][]*model.ChatRecord
}

type seatKey struct {
	tableID model.TableID
	seat    int
}

type chatKey struct {
	scope   model.ChatScope
	scopeID string
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:           make(map[model.PlayerID]*model.Player),
		registeredPlayers: make(map[model.PlayerID]*model.RegisteredPlayer),
		usernameIndex:     make(map[string]model.PlayerID),
		stats:             make(map[model.PlayerID]*model.PlayerStats),
		tables:            make(map[model.TableID]*model.TableInfo),
		seats:             make(map[seatKey]*model.SeatAssignment),
		chat:              make(map[chatKey][]*model.ChatRecord),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *player
	s.players[player.ID] = &c
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	c := *player
	return &c, nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *rp
	s.registeredPlayers[rp.PlayerID] = &c
	s.usernameIndex[rp.Username] = rp.PlayerID
	return nil
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	c := *rp
	return &c, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playerID, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	c := *rp
	return &c, nil
}

// Stats operations

func (s *Storage) LoadOrCreateStats(ctx context.Context, id model.PlayerID, now time.Time) (*model.PlayerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[id]
	if !ok {
		st = model.NewPlayerStats(id, now)
		s.stats[id] = st
	}
	return st.Clone(), nil
}

func (s *Storage) SaveStats(ctx context.Context, stats *model.PlayerStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[stats.PlayerID] = stats.Clone()
	return nil
}

// Table operations

func (s *Storage) SaveTable(ctx context.Context, table *model.TableInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *table
	s.tables[table.ID] = &c
	return nil
}

func (s *Storage) GetTable(ctx context.Context, id model.TableID) (*model.TableInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[id]
	if !ok {
		return nil, model.ErrTableNotFound
	}
	c := *t
	return &c, nil
}

func (s *Storage) ListTables(ctx context.Context, roomID model.RoomID) ([]*model.TableInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tables []*model.TableInfo
	for _, t := range s.tables {
		if t.RoomID == roomID {
			c := *t
			tables = append(tables, &c)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Number < tables[j].Number })
	return tables, nil
}

func (s *Storage) DeleteTable(ctx context.Context, id model.TableID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, id)
	for key := range s.seats {
		if key.tableID == id {
			delete(s.seats, key)
		}
	}
	delete(s.chat, chatKey{scope: model.ChatScopeTable, scopeID: string(id)})
	return nil
}

// Seat operations

func (s *Storage) UpsertSeat(ctx context.Context, seat *model.SeatAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *seat
	s.seats[seatKey{tableID: seat.TableID, seat: seat.SeatNumber}] = &c
	return nil
}

func (s *Storage) GetSeats(ctx context.Context, tableID model.TableID) ([]*model.SeatAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var seats []*model.SeatAssignment
	for key, seat := range s.seats {
		if key.tableID == tableID {
			c := *seat
			seats = append(seats, &c)
		}
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatNumber < seats[j].SeatNumber })
	return seats, nil
}

// Chat operations

func (s *Storage) AppendChatMessage(ctx context.Context, msg *model.ChatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := chatKey{scope: msg.Scope, scopeID: msg.ScopeID}
	c := *msg
	s.chat[key] = append(s.chat[key], &c)
	return nil
}

func (s *Storage) ListChatMessages(ctx context.Context, scope model.ChatScope, scopeID string, limit int) ([]*model.ChatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.chat[chatKey{scope: scope, scopeID: scopeID}]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*model.ChatRecord, len(msgs))
	for i, m := range msgs {
		c := *m
		out[i] = &c
	}
	return out, nil
}
