package model

import "time"

// InvitationStatus is the lifecycle state of a table invitation
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// TableInvitation asks a player to join a table
type TableInvitation struct {
	ID            string
	RoomID        RoomID
	TableID       TableID
	InviterID     PlayerID
	InviteeID     PlayerID
	Status        InvitationStatus
	DeclineReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsPending reports whether the invitation can still be answered
func (i *TableInvitation) IsPending() bool {
	return i.Status == InvitationPending
}
