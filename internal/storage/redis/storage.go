package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	key := playerKey(player.ID)

	// Apply TTL only for guest players
	var ttl time.Duration
	if player.IsGuest {
		ttl = s.cfg.GuestPlayerTTL
	}

	if ttl > 0 {
		return s.client.Set(ctx, key, data, ttl).Err()
	}
	return s.client.Set(ctx, key, data, 0).Err()
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	data, err := s.client.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	data, err := json.Marshal(rp)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.Pipeline()
	pipe.Set(ctx, registeredPlayerKey(rp.PlayerID), data, 0) // No TTL
	pipe.Set(ctx, usernameIndexKey(rp.Username), string(rp.PlayerID), 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	data, err := s.client.Get(ctx, registeredPlayerKey(playerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var rp model.RegisteredPlayer
	if err := json.Unmarshal(data, &rp); err != nil {
		return nil, err
	}
	return &rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	// Look up player ID from username index
	playerIDStr, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	return s.GetRegisteredPlayer(ctx, model.PlayerID(playerIDStr))
}

// Stats operations

func (s *Storage) LoadOrCreateStats(ctx context.Context, id model.PlayerID, now time.Time) (*model.PlayerStats, error) {
	data, err := json.Marshal(model.NewPlayerStats(id, now))
	if err != nil {
		return nil, err
	}

	// SETNX keeps a concurrent creator from overwriting stats saved in between
	if err := s.client.SetNX(ctx, statsKey(id), data, s.statsTTL(ctx, id)).Err(); err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, statsKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrStatsNotFound
		}
		return nil, err
	}

	var stats model.PlayerStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *Storage) SaveStats(ctx context.Context, stats *model.PlayerStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, statsKey(stats.PlayerID), data, s.statsTTL(ctx, stats.PlayerID)).Err()
}

// statsTTL expires guest stats together with the guest; registered stats never expire
func (s *Storage) statsTTL(ctx context.Context, id model.PlayerID) time.Duration {
	player, err := s.GetPlayer(ctx, id)
	if err != nil || !player.IsGuest {
		return 0
	}
	return s.cfg.GuestStatsTTL
}

// Table operations

func (s *Storage) SaveTable(ctx context.Context, table *model.TableInfo) error {
	data, err := json.Marshal(table)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, tableKey(table.ID), data, 0)
	pipe.ZAdd(ctx, tablesForRoomIndexKey(table.RoomID), redis.Z{Score: float64(table.Number), Member: string(table.ID)})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetTable(ctx context.Context, id model.TableID) (*model.TableInfo, error) {
	data, err := s.client.Get(ctx, tableKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrTableNotFound
		}
		return nil, err
	}

	var table model.TableInfo
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	return &table, nil
}

func (s *Storage) ListTables(ctx context.Context, roomID model.RoomID) ([]*model.TableInfo, error) {
	ids, err := s.client.ZRange(ctx, tablesForRoomIndexKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var tables []*model.TableInfo
	for _, id := range ids {
		table, err := s.GetTable(ctx, model.TableID(id))
		if err != nil {
			if errors.Is(err, model.ErrTableNotFound) {
				// Index entry outlived the table
				continue
			}
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (s *Storage) DeleteTable(ctx context.Context, id model.TableID) error {
	table, err := s.GetTable(ctx, id)
	if err != nil && !errors.Is(err, model.ErrTableNotFound) {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, tableKey(id), seatsKey(id), chatKey(model.ChatScopeTable, string(id)))
	if table != nil {
		pipe.ZRem(ctx, tablesForRoomIndexKey(table.RoomID), string(id))
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Seat operations

func (s *Storage) UpsertSeat(ctx context.Context, seat *model.SeatAssignment) error {
	data, err := json.Marshal(seat)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, seatsKey(seat.TableID), strconv.Itoa(seat.SeatNumber), data).Err()
}

func (s *Storage) GetSeats(ctx context.Context, tableID model.TableID) ([]*model.SeatAssignment, error) {
	fields, err := s.client.HGetAll(ctx, seatsKey(tableID)).Result()
	if err != nil {
		return nil, err
	}

	seats := make([]*model.SeatAssignment, 0, len(fields))
	for n := 1; n <= model.NumSeats; n++ {
		raw, ok := fields[strconv.Itoa(n)]
		if !ok {
			continue
		}
		var seat model.SeatAssignment
		if err := json.Unmarshal([]byte(raw), &seat); err != nil {
			return nil, fmt.Errorf("decode seat %d of %s: %w", n, tableID, err)
		}
		seats = append(seats, &seat)
	}
	return seats, nil
}

// Chat operations

func (s *Storage) AppendChatMessage(ctx context.Context, msg *model.ChatRecord) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := chatKey(msg.Scope, msg.ScopeID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if s.cfg.ChatHistory > 0 {
		pipe.LTrim(ctx, key, -s.cfg.ChatHistory, -1)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) ListChatMessages(ctx context.Context, scope model.ChatScope, scopeID string, limit int) ([]*model.ChatRecord, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	raws, err := s.client.LRange(ctx, chatKey(scope, scopeID), start, -1).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]*model.ChatRecord, 0, len(raws))
	for _, raw := range raws {
		var msg model.ChatRecord
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, err
		}
		msgs = append(msgs, &msg)
	}
	return msgs, nil
}
