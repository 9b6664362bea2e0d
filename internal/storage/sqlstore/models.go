package sqlstore

import (
	"time"

	"github.com/mcoot/towers-go/internal/model"
)

// PlayerRow is a player identity
type PlayerRow struct {
	ID          string `gorm:"primaryKey"`
	DisplayName string
	AvatarID    string
	Theme       string
	IsGuest     bool
	CreatedAt   time.Time
}

// RegisteredPlayerRow holds login credentials
type RegisteredPlayerRow struct {
	PlayerID     string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex"`
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StatsRow is a player's competitive record
type StatsRow struct {
	PlayerID       string `gorm:"primaryKey"`
	Rating         int
	GamesCompleted int
	Wins           int
	Losses         int
	Streak         int
	RecentWins     []time.Time `gorm:"serializer:json"`
	UpdatedAt      time.Time
}

// TableRow describes a table
type TableRow struct {
	ID        string `gorm:"primaryKey"`
	RoomID    string `gorm:"index:idx_room_number,unique"`
	Number    int    `gorm:"index:idx_room_number,unique"`
	HostID    string
	Type      string
	Rated     bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SeatRow is the occupant of one seat, keyed by (table, seat)
type SeatRow struct {
	TableID    string `gorm:"primaryKey"`
	SeatNumber int    `gorm:"primaryKey;autoIncrement:false"`
	PlayerID   string `gorm:"index"`
	UpdatedAt  time.Time
}

// ChatRow is one append-only chat message
type ChatRow struct {
	ID              string `gorm:"primaryKey"`
	Scope           string `gorm:"index:idx_chat_scope"`
	ScopeID         string `gorm:"index:idx_chat_scope"`
	AuthorID        string
	AuthorName      string
	Kind            string
	Text            string
	Vars            map[string]string `gorm:"serializer:json"`
	VisibleToUserID string
	CreatedAt       time.Time `gorm:"index"`
}

func playerRow(p *model.Player) PlayerRow {
	return PlayerRow{
		ID:          string(p.ID),
		DisplayName: p.DisplayName,
		AvatarID:    p.AvatarID,
		Theme:       p.Theme,
		IsGuest:     p.IsGuest,
		CreatedAt:   p.CreatedAt,
	}
}

func (r PlayerRow) toModel() *model.Player {
	return &model.Player{
		ID:          model.PlayerID(r.ID),
		DisplayName: r.DisplayName,
		AvatarID:    r.AvatarID,
		Theme:       r.Theme,
		IsGuest:     r.IsGuest,
		CreatedAt:   r.CreatedAt,
	}
}

func registeredPlayerRow(rp *model.RegisteredPlayer) RegisteredPlayerRow {
	return RegisteredPlayerRow{
		PlayerID:     string(rp.PlayerID),
		Username:     rp.Username,
		PasswordHash: rp.PasswordHash,
		CreatedAt:    rp.CreatedAt,
		UpdatedAt:    rp.UpdatedAt,
	}
}

func (r RegisteredPlayerRow) toModel() *model.RegisteredPlayer {
	return &model.RegisteredPlayer{
		PlayerID:     model.PlayerID(r.PlayerID),
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func statsRow(s *model.PlayerStats) StatsRow {
	return StatsRow{
		PlayerID:       string(s.PlayerID),
		Rating:         s.Rating,
		GamesCompleted: s.GamesCompleted,
		Wins:           s.Wins,
		Losses:         s.Losses,
		Streak:         s.Streak,
		RecentWins:     append([]time.Time{}, s.RecentWins...),
		UpdatedAt:      s.UpdatedAt,
	}
}

func (r StatsRow) toModel() *model.PlayerStats {
	wins := append([]time.Time{}, r.RecentWins...)
	return &model.PlayerStats{
		PlayerID:       model.PlayerID(r.PlayerID),
		Rating:         r.Rating,
		GamesCompleted: r.GamesCompleted,
		Wins:           r.Wins,
		Losses:         r.Losses,
		Streak:         r.Streak,
		RecentWins:     wins,
		UpdatedAt:      r.UpdatedAt,
	}
}

func tableRow(t *model.TableInfo) TableRow {
	return TableRow{
		ID:        string(t.ID),
		RoomID:    string(t.RoomID),
		Number:    t.Number,
		HostID:    string(t.HostID),
		Type:      string(t.Type),
		Rated:     t.Rated,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (r TableRow) toModel() *model.TableInfo {
	return &model.TableInfo{
		ID:        model.TableID(r.ID),
		RoomID:    model.RoomID(r.RoomID),
		Number:    r.Number,
		HostID:    model.PlayerID(r.HostID),
		Type:      model.TableType(r.Type),
		Rated:     r.Rated,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func seatRow(a *model.SeatAssignment) SeatRow {
	return SeatRow{
		TableID:    string(a.TableID),
		SeatNumber: a.SeatNumber,
		PlayerID:   string(a.PlayerID),
		UpdatedAt:  a.UpdatedAt,
	}
}

func (r SeatRow) toModel() *model.SeatAssignment {
	return &model.SeatAssignment{
		TableID:    model.TableID(r.TableID),
		SeatNumber: r.SeatNumber,
		PlayerID:   model.PlayerID(r.PlayerID),
		UpdatedAt:  r.UpdatedAt,
	}
}

func chatRow(m *model.ChatRecord) ChatRow {
	return ChatRow{
		ID:              m.ID,
		Scope:           string(m.Scope),
		ScopeID:         m.ScopeID,
		AuthorID:        string(m.AuthorID),
		AuthorName:      m.AuthorName,
		Kind:            m.Kind,
		Text:            m.Text,
		Vars:            m.Vars,
		VisibleToUserID: string(m.VisibleToUserID),
		CreatedAt:       m.CreatedAt,
	}
}

func (r ChatRow) toModel() *model.ChatRecord {
	return &model.ChatRecord{
		ID:              r.ID,
		Scope:           model.ChatScope(r.Scope),
		ScopeID:         r.ScopeID,
		AuthorID:        model.PlayerID(r.AuthorID),
		AuthorName:      r.AuthorName,
		Kind:            r.Kind,
		Text:            r.Text,
		Vars:            r.Vars,
		VisibleToUserID: model.PlayerID(r.VisibleToUserID),
		CreatedAt:       r.CreatedAt,
	}
}
