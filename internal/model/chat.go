package model

import "time"

// RoomChatKind classifies a message in a room log
type RoomChatKind string

const (
	RoomChat             RoomChatKind = "CHAT"
	RoomSystemAction     RoomChatKind = "SYSTEM_ACTION"
	RoomModerationNotice RoomChatKind = "MODERATION_NOTICE"
)

// TableChatKind classifies a message in a table log
type TableChatKind string

const (
	TableChat               TableChatKind = "CHAT"
	TableSystemAction       TableChatKind = "SYSTEM_ACTION"
	TableCipherKey          TableChatKind = "CIPHER_KEY"
	TableRatingChange       TableChatKind = "RATING_CHANGE"
	TableHeroMessage        TableChatKind = "HERO_MESSAGE"
	TableModerationNotice   TableChatKind = "MODERATION_NOTICE"
	TableInvitationNotice   TableChatKind = "INVITATION_NOTICE"
	TableInvitationAccepted TableChatKind = "INVITATION_ACCEPTED"
	TableInvitationDeclined TableChatKind = "INVITATION_DECLINED"
	TableGameStarted        TableChatKind = "GAME_STARTED"
	TableGameOver           TableChatKind = "GAME_OVER"
)

// ChatScope says whether a stored message belongs to a room or a table
type ChatScope string

const (
	ChatScopeRoom  ChatScope = "room"
	ChatScopeTable ChatScope = "table"
)

// ChatRecord is the persisted form of a chat message
type ChatRecord struct {
	ID              string
	Scope           ChatScope
	ScopeID         string
	AuthorID        PlayerID
	AuthorName      string
	Kind            string
	Text            string
	Vars            map[string]string
	VisibleToUserID PlayerID
	CreatedAt       time.Time
}
