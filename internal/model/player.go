package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Player represents a connected or persisted user
type Player struct {
	ID          PlayerID
	DisplayName string
	AvatarID    string
	Theme       string
	IsGuest     bool // true for unregistered players
	CreatedAt   time.Time
}

// RegisteredPlayer extends Player with authentication data
// Stored separately for security (password never in memory with session)
type RegisteredPlayer struct {
	PlayerID     PlayerID
	Username     string // login username (immutable)
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MutePeriod records that a viewer muted an author for a span of time.
// An open period (UnmutedAt nil) hides everything the author posts from MutedAt on.
type MutePeriod struct {
	AuthorID  PlayerID
	MutedAt   time.Time
	UnmutedAt *time.Time
}

// Covers reports whether a message posted at t falls inside the period
func (m MutePeriod) Covers(t time.Time) bool {
	if t.Before(m.MutedAt) {
		return false
	}
	return m.UnmutedAt == nil || t.Before(*m.UnmutedAt)
}
