package response

import (
	"time"

	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/registry"
	"github.com/mcoot/towers-go/internal/services/auth"
	"github.com/mcoot/towers-go/internal/services/table"
)

// Player represents a player in API responses
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
	Online      bool   `json:"online,omitempty"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:          string(p.ID),
		DisplayName: p.DisplayName,
		IsGuest:     p.IsGuest,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Player       Player `json:"player"`
	SessionToken string `json:"session_token"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		Player:       PlayerFromModel(&s.Player),
		SessionToken: s.Token,
	}
}

// Ticket is a short-lived credential for the websocket handshake
type Ticket struct {
	Ticket    string    `json:"ticket"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Stats is a player's competitive record
type Stats struct {
	PlayerID       string `json:"player_id"`
	Rating         int    `json:"rating"`
	GamesCompleted int    `json:"games_completed"`
	Wins           int    `json:"wins"`
	Losses         int    `json:"losses"`
	Streak         int    `json:"streak"`
	Hero           bool   `json:"hero"`
}

// StatsFromModel converts model.PlayerStats
func StatsFromModel(s *model.PlayerStats, now time.Time) Stats {
	return Stats{
		PlayerID:       string(s.PlayerID),
		Rating:         s.Rating,
		GamesCompleted: s.GamesCompleted,
		Wins:           s.Wins,
		Losses:         s.Losses,
		Streak:         s.Streak,
		Hero:           s.IsHeroEligible(now),
	}
}

// OnlinePlayers lists connected players
type OnlinePlayers struct {
	Players []Player `json:"players"`
}

// OnlinePlayersFromModel converts the registry's online list
func OnlinePlayersFromModel(players []model.Player) OnlinePlayers {
	out := OnlinePlayers{Players: make([]Player, len(players))}
	for i := range players {
		out.Players[i] = PlayerFromModel(&players[i])
		out.Players[i].Online = true
	}
	return out
}

// Rooms lists the configured rooms
type Rooms struct {
	Rooms []registry.RoomSummary `json:"rooms"`
}

// Tables lists the open tables of a room
type Tables struct {
	RoomID string          `json:"room_id"`
	Tables []table.Summary `json:"tables"`
}

// Reload reports which seats changed when a table was re-read from storage
type Reload struct {
	TableID string `json:"table_id"`
	Changed []int  `json:"changed_seats"`
}
