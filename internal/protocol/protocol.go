// Package protocol defines the socket wire format: the envelope every frame travels in,
// the closed set of client commands, and the server messages sent back.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcoot/towers-go/internal/model"
)

// ErrMalformed is returned for frames that are not valid envelopes or payloads
var ErrMalformed = errors.New("malformed message")

// Envelope is the outer form of every frame in both directions
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Command is a decoded client command. The set of implementations is closed:
// only types in this package satisfy it.
type Command interface {
	Type() string
	command()
}

// Client command types
const (
	TypeRoomJoin      = "room.join"
	TypeRoomLeave     = "room.leave"
	TypeTableJoin     = "table.join"
	TypeTableLeave    = "table.leave"
	TypeSeatSit       = "seat.sit"
	TypeSeatStand     = "seat.stand"
	TypeSeatReady     = "seat.ready"
	TypeSeatTarget    = "seat.target"
	TypeTableStart    = "table.start"
	TypeGameMove      = "game.move"
	TypeGameCycle     = "game.cycle"
	TypeGameDrop      = "game.drop"
	TypeGamePower     = "game.power"
	TypeChatRoom      = "chat.room"
	TypeChatTable     = "chat.table"
	TypeChatMute      = "chat.mute"
	TypeChatUnmute    = "chat.unmute"
	TypeInviteSend    = "invite.send"
	TypeInviteAccept  = "invite.accept"
	TypeInviteDecline = "invite.decline"
	TypeBlockInvites  = "player.block_invites"
	TypePingRequest   = "ping.request"
	TypePong          = "pong"
)

// RoomJoin enters a room's broadcast channel
type RoomJoin struct {
	RoomID model.RoomID `json:"room_id"`
}

// RoomLeave leaves a room
type RoomLeave struct {
	RoomID model.RoomID `json:"room_id"`
}

// TableJoin joins a table as a member
type TableJoin struct {
	TableID model.TableID `json:"table_id"`
}

// TableLeave leaves a table, standing up first
type TableLeave struct {
	TableID model.TableID `json:"table_id"`
}

// SeatSit takes a seat
type SeatSit struct {
	TableID model.TableID `json:"table_id"`
	Seat    int           `json:"seat"`
}

// SeatStand vacates the player's seat
type SeatStand struct {
	TableID model.TableID `json:"table_id"`
}

// SeatReady toggles the ready flag
type SeatReady struct {
	TableID model.TableID `json:"table_id"`
	Ready   bool          `json:"ready"`
}

// SeatTarget changes the default attack target
type SeatTarget struct {
	TableID model.TableID `json:"table_id"`
	Target  int           `json:"target"`
}

// TableStart asks the host's table to start now
type TableStart struct {
	TableID model.TableID `json:"table_id"`
}

// Move directions on the wire
const (
	DirLeft  = "left"
	DirRight = "right"
)

// GameMove shifts the falling piece
type GameMove struct {
	TableID   model.TableID `json:"table_id"`
	Direction string        `json:"direction"`
}

// GameCycle rotates the falling piece
type GameCycle struct {
	TableID model.TableID `json:"table_id"`
}

// GameDrop hard-drops the falling piece
type GameDrop struct {
	TableID model.TableID `json:"table_id"`
}

// GamePower fires a bar item; Target 0 uses the default target
type GamePower struct {
	TableID model.TableID `json:"table_id"`
	Index   int           `json:"index"`
	Target  int           `json:"target,omitempty"`
}

// ChatRoom posts to a room log
type ChatRoom struct {
	RoomID model.RoomID `json:"room_id"`
	Text   string       `json:"text"`
}

// ChatTable posts to a table log
type ChatTable struct {
	TableID model.TableID `json:"table_id"`
	Text    string        `json:"text"`
}

// ChatMute hides an author's messages from the sender. RoomID selects the log the
// confirmation notice is posted to.
type ChatMute struct {
	PlayerID model.PlayerID `json:"player_id"`
	RoomID   model.RoomID   `json:"room_id,omitempty"`
}

// ChatUnmute ends a mute
type ChatUnmute struct {
	PlayerID model.PlayerID `json:"player_id"`
	RoomID   model.RoomID   `json:"room_id,omitempty"`
}

// InviteSend invites a player to a table
type InviteSend struct {
	TableID  model.TableID  `json:"table_id"`
	PlayerID model.PlayerID `json:"player_id"`
}

// InviteAccept accepts an invitation
type InviteAccept struct {
	InvitationID string `json:"invitation_id"`
}

// InviteDecline declines one invitation, or every pending one when All is set
type InviteDecline struct {
	InvitationID string `json:"invitation_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
	All          bool   `json:"all,omitempty"`
}

// BlockInvites toggles whether the player accepts invitations
type BlockInvites struct {
	Blocked bool `json:"blocked"`
}

// PingRequest measures the round trip to another player
type PingRequest struct {
	PlayerID model.PlayerID `json:"player_id"`
}

// Pong answers a server ping
type Pong struct {
	Nonce string `json:"nonce"`
}

func (RoomJoin) Type() string { return TypeRoomJoin }
func (RoomLeave) Type() string { return TypeRoomLeave }
func (TableJoin) Type() string { return TypeTableJoin }
func (TableLeave) Type() string { return TypeTableLeave }
func (SeatSit) Type() string { return TypeSeatSit }
func (SeatStand) Type() string { return TypeSeatStand }
func (SeatReady) Type() string { return TypeSeatReady }
func (SeatTarget) Type() string { return TypeSeatTarget }
func (TableStart) Type() string { return TypeTableStart }
func (GameMove) Type() string { return TypeGameMove }
func (GameCycle) Type() string { return TypeGameCycle }
func (GameDrop) Type() string { return TypeGameDrop }
func (GamePower) Type() string { return TypeGamePower }
func (ChatRoom) Type() string { return TypeChatRoom }
func (ChatTable) Type() string { return TypeChatTable }
func (ChatMute) Type() string { return TypeChatMute }
func (ChatUnmute) Type() string { return TypeChatUnmute }
func (InviteSend) Type() string { return TypeInviteSend }
func (InviteAccept) Type() string { return TypeInviteAccept }
func (InviteDecline) Type() string { return TypeInviteDecline }
func (BlockInvites) Type() string { return TypeBlockInvites }
func (PingRequest) Type() string { return TypePingRequest }
func (Pong) Type() string { return TypePong }

func (RoomJoin) command() {}
func (RoomLeave) command() {}
func (TableJoin) command() {}
func (TableLeave) command() {}
func (SeatSit) command() {}
func (SeatStand) command() {}
func (SeatReady) command() {}
func (SeatTarget) command() {}
func (TableStart) command() {}
func (GameMove) command() {}
func (GameCycle) command() {}
func (GameDrop) command() {}
func (GamePower) command() {}
func (ChatRoom) command() {}
func (ChatTable) command() {}
func (ChatMute) command() {}
func (ChatUnmute) command() {}
func (InviteSend) command() {}
func (InviteAccept) command() {}
func (InviteDecline) command() {}
func (BlockInvites) command() {}
func (PingRequest) command() {}
func (Pong) command() {}

func decodeInto[C Command](raw json.RawMessage) (Command, error) {
	var c C
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return c, nil
}

var decoders = map[string]func(json.RawMessage) (Command, error){
	TypeRoomJoin:      decodeInto[RoomJoin],
	TypeRoomLeave:     decodeInto[RoomLeave],
	TypeTableJoin:     decodeInto[TableJoin],
	TypeTableLeave:    decodeInto[TableLeave],
	TypeSeatSit:       decodeInto[SeatSit],
	TypeSeatStand:     decodeInto[SeatStand],
	TypeSeatReady:     decodeInto[SeatReady],
	TypeSeatTarget:    decodeInto[SeatTarget],
	TypeTableStart:    decodeInto[TableStart],
	TypeGameMove:      decodeInto[GameMove],
	TypeGameCycle:     decodeInto[GameCycle],
	TypeGameDrop:      decodeInto[GameDrop],
	TypeGamePower:     decodeInto[GamePower],
	TypeChatRoom:      decodeInto[ChatRoom],
	TypeChatTable:     decodeInto[ChatTable],
	TypeChatMute:      decodeInto[ChatMute],
	TypeChatUnmute:    decodeInto[ChatUnmute],
	TypeInviteSend:    decodeInto[InviteSend],
	TypeInviteAccept:  decodeInto[InviteAccept],
	TypeInviteDecline: decodeInto[InviteDecline],
	TypeBlockInvites:  decodeInto[BlockInvites],
	TypePingRequest:   decodeInto[PingRequest],
	TypePong:          decodeInto[Pong],
}

// Decode parses a client frame into its envelope and command
func Decode(frame []byte) (Envelope, Command, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return env, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	decode, ok := decoders[env.Type]
	if !ok {
		return env, nil, fmt.Errorf("%w: %q", model.ErrUnknownCommand, env.Type)
	}
	cmd, err := decode(env.Payload)
	return env, cmd, err
}

// Server message types that are not model events
const (
	TypeAck        = "ack"
	TypePingResult = "ping.result"
)

// ServerMessage is a frame sent to a client
type ServerMessage struct {
	Type      string        `json:"type"`
	ID        string        `json:"id,omitempty"`
	RoomID    model.RoomID  `json:"room_id,omitempty"`
	TableID   model.TableID `json:"table_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Payload   any           `json:"payload,omitempty"`
}

// ErrorBody describes a failed command
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Ack answers a command; Result is set on success and Error on failure
type Ack struct {
	OK     bool       `json:"ok"`
	Result any        `json:"result,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// PingResult reports the round trip measured by a ping.request
type PingResult struct {
	PlayerID model.PlayerID `json:"player_id"`
	OK       bool           `json:"ok"`
	RTTMs    int64          `json:"rtt_ms,omitempty"`
}

// FromEvent wraps a model event for the wire
func FromEvent(e model.Event) ServerMessage {
	return ServerMessage{
		Type:      string(e.Type),
		RoomID:    e.RoomID,
		TableID:   e.TableID,
		Timestamp: e.Timestamp,
		Payload:   e.Payload,
	}
}

// NewAck builds the reply to command id
func NewAck(id string, now time.Time, result any, errBody *ErrorBody) ServerMessage {
	return ServerMessage{
		Type:      TypeAck,
		ID:        id,
		Timestamp: now,
		Payload:   Ack{OK: errBody == nil, Result: result, Error: errBody},
	}
}
