package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/storage"
)

// Store persists towers data through gorm
type Store struct {
	db *gorm.DB
}

// New wraps an open gorm DB
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying gorm DB instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure Store implements the interface
var _ storage.Storage = (*Store)(nil)

// notFound maps gorm's missing-row error onto a domain sentinel
func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// Player operations

func (s *Store) SavePlayer(ctx context.Context, player *model.Player) error {
	row := playerRow(player)
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *Store) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var row PlayerRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		return nil, notFound(err, model.ErrPlayerNotFound)
	}
	return row.toModel(), nil
}

// Registered player operations

func (s *Store) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	row := registeredPlayerRow(rp)
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *Store) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	var row RegisteredPlayerRow
	if err := s.db.WithContext(ctx).First(&row, "player_id = ?", string(playerID)).Error; err != nil {
		return nil, notFound(err, model.ErrPlayerNotFound)
	}
	return row.toModel(), nil
}

func (s *Store) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	var row RegisteredPlayerRow
	if err := s.db.WithContext(ctx).First(&row, "username = ?", username).Error; err != nil {
		return nil, notFound(err, model.ErrPlayerNotFound)
	}
	return row.toModel(), nil
}

// Stats operations

func (s *Store) LoadOrCreateStats(ctx context.Context, id model.PlayerID, now time.Time) (*model.PlayerStats, error) {
	row := statsRow(model.NewPlayerStats(id, now))
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, err
	}

	var stored StatsRow
	if err := s.db.WithContext(ctx).First(&stored, "player_id = ?", string(id)).Error; err != nil {
		return nil, notFound(err, model.ErrStatsNotFound)
	}
	return stored.toModel(), nil
}

func (s *Store) SaveStats(ctx context.Context, stats *model.PlayerStats) error {
	row := statsRow(stats)
	return s.db.WithContext(ctx).Save(&row).Error
}

// Table operations

func (s *Store) SaveTable(ctx context.Context, table *model.TableInfo) error {
	row := tableRow(table)
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *Store) GetTable(ctx context.Context, id model.TableID) (*model.TableInfo, error) {
	var row TableRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		return nil, notFound(err, model.ErrTableNotFound)
	}
	return row.toModel(), nil
}

func (s *Store) ListTables(ctx context.Context, roomID model.RoomID) ([]*model.TableInfo, error) {
	var rows []TableRow
	if err := s.db.WithContext(ctx).Where("room_id = ?", string(roomID)).Order("number").Find(&rows).Error; err != nil {
		return nil, err
	}
	tables := make([]*model.TableInfo, len(rows))
	for i, r := range rows {
		tables[i] = r.toModel()
	}
	return tables, nil
}

func (s *Store) DeleteTable(ctx context.Context, id model.TableID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&SeatRow{}, "table_id = ?", string(id)).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ChatRow{}, "scope = ? AND scope_id = ?", string(model.ChatScopeTable), string(id)).Error; err != nil {
			return err
		}
		return tx.Delete(&TableRow{}, "id = ?", string(id)).Error
	})
}

// Seat operations

func (s *Store) UpsertSeat(ctx context.Context, seat *model.SeatAssignment) error {
	row := seatRow(seat)
	return upsertSeat(s.db.WithContext(ctx), &row).Error
}

func upsertSeat(tx *gorm.DB, row *SeatRow) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "table_id"}, {Name: "seat_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"player_id", "updated_at"}),
	}).Create(row)
}

func (s *Store) GetSeats(ctx context.Context, tableID model.TableID) ([]*model.SeatAssignment, error) {
	var rows []SeatRow
	if err := s.db.WithContext(ctx).Where("table_id = ?", string(tableID)).Order("seat_number").Find(&rows).Error; err != nil {
		return nil, err
	}
	seats := make([]*model.SeatAssignment, len(rows))
	for i, r := range rows {
		seats[i] = r.toModel()
	}
	return seats, nil
}

// Chat operations

func (s *Store) AppendChatMessage(ctx context.Context, msg *model.ChatRecord) error {
	row := chatRow(msg)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (s *Store) ListChatMessages(ctx context.Context, scope model.ChatScope, scopeID string, limit int) ([]*model.ChatRecord, error) {
	q := s.db.WithContext(ctx).
		Where("scope = ? AND scope_id = ?", string(scope), scopeID).
		Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []ChatRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	msgs := make([]*model.ChatRecord, len(rows))
	for i, r := range rows {
		msgs[len(rows)-1-i] = r.toModel()
	}
	return msgs, nil
}
