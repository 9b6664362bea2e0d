package model

import "time"

// EventType identifies the type of event pushed to clients
type EventType string

const (
	// Presence events
	EventUserOnline  EventType = "user.online"
	EventUserOffline EventType = "user.offline"

	// Table events
	EventTableUpdated EventType = "table.updated"
	EventTableDeleted EventType = "table.deleted"
	EventSeatUpdated  EventType = "seat.updated"

	// Game events
	EventGameStarted  EventType = "game.started"
	EventBoardUpdated EventType = "board.updated"
	EventGameOver     EventType = "game.over"

	// Chat events
	EventChatUpdated EventType = "chat.updated"

	// Invitation events
	EventInvitationReceived EventType = "invitation.received"
	EventInvitationUpdated  EventType = "invitation.updated"

	// Liveness events
	EventPing EventType = "ping"
)

// Event is the base structure for all events
type Event struct {
	Type      EventType
	Timestamp time.Time
	RoomID    RoomID   // Empty for events not scoped to a room
	TableID   TableID  // Empty for events not scoped to a table
	PlayerID  PlayerID // The player who triggered or is affected
	Payload   any      // Type-specific data
}

// PresencePayload contains data for user online/offline events
type PresencePayload struct {
	PlayerID    PlayerID `json:"player_id"`
	DisplayName string   `json:"display_name"`
}

// TableDeletedPayload contains data for table deleted events
type TableDeletedPayload struct {
	RoomID  RoomID  `json:"room_id"`
	TableID TableID `json:"table_id"`
}

// SeatUpdatedPayload contains data for seat updated events
type SeatUpdatedPayload struct {
	TableID     TableID  `json:"table_id"`
	Seat        int      `json:"seat"`
	Team        int      `json:"team"`
	PlayerID    PlayerID `json:"player_id,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Ready       bool     `json:"ready"`
	Target      int      `json:"target"`
}

// GameStartedPayload contains data for game started events
type GameStartedPayload struct {
	TableID TableID            `json:"table_id"`
	Seats   map[int]PlayerID   `json:"seats"`
	Teams   map[int][]PlayerID `json:"teams"`
}

// RatingChange describes one player's rating movement after a rated game
type RatingChange struct {
	PlayerID  PlayerID `json:"player_id"`
	Team      int      `json:"team"`
	OldRating int      `json:"old_rating"`
	NewRating int      `json:"new_rating"`
	Delta     int      `json:"delta"`
}

// GameOverPayload contains data for game over events
type GameOverPayload struct {
	TableID       TableID        `json:"table_id"`
	WinningTeams  []int          `json:"winning_teams"`
	Winners       []PlayerID     `json:"winners"`
	Rated         bool           `json:"rated"`
	RatingChanges []RatingChange `json:"rating_changes,omitempty"`
}

// InvitationPayload contains data for invitation events
type InvitationPayload struct {
	ID            string   `json:"id"`
	RoomID        RoomID   `json:"room_id"`
	TableID       TableID  `json:"table_id"`
	InviterID     PlayerID `json:"inviter_id"`
	InviteeID     PlayerID `json:"invitee_id"`
	Status        string   `json:"status"`
	DeclineReason string   `json:"decline_reason,omitempty"`
}

// InvitationPayloadFrom converts an invitation to its wire payload
func InvitationPayloadFrom(inv *TableInvitation) InvitationPayload {
	return InvitationPayload{
		ID:            inv.ID,
		RoomID:        inv.RoomID,
		TableID:       inv.TableID,
		InviterID:     inv.InviterID,
		InviteeID:     inv.InviteeID,
		Status:        string(inv.Status),
		DeclineReason: inv.DeclineReason,
	}
}

// PingPayload contains the nonce a client must echo back in a pong
type PingPayload struct {
	Nonce string `json:"nonce"`
}
