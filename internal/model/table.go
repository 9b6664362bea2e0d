package model

import (
	"fmt"
	"time"
)

// RoomID identifies a preconfigured room
type RoomID string

// TableID identifies a table within a room
type TableID string

// NumSeats is the fixed number of seats at every table
const NumSeats = 8

// TableType controls who may join a table
type TableType string

const (
	TablePublic    TableType = "public"
	TableProtected TableType = "protected" // anyone may watch, seats need an invitation
	TablePrivate   TableType = "private"   // joining at all needs an invitation
)

// Valid reports whether t is a known table type
func (t TableType) Valid() bool {
	switch t {
	case TablePublic, TableProtected, TablePrivate:
		return true
	}
	return false
}

// Room is a preconfigured lobby that contains tables
type Room struct {
	ID        RoomID
	Name      string
	MaxTables int
}

// TableInfo is the persisted description of a table
type TableInfo struct {
	ID        TableID
	RoomID    RoomID
	Number    int
	HostID    PlayerID
	Type      TableType
	Rated     bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTableID derives the table identifier from its room and number
func NewTableID(roomID RoomID, number int) TableID {
	return TableID(fmt.Sprintf("%s-%d", roomID, number))
}

// SeatAssignment is the persisted occupant of one seat; an empty PlayerID means vacant
type SeatAssignment struct {
	TableID    TableID
	SeatNumber int
	PlayerID   PlayerID
	UpdatedAt  time.Time
}

// TeamForSeat returns the team of a 1-based seat: 1&2 → 1, 3&4 → 2, 5&6 → 3, 7&8 → 4
func TeamForSeat(seat int) int {
	return (seat + 1) / 2
}

// DefaultTargetSeat returns the seat a seat attacks unless told otherwise
func DefaultTargetSeat(seat int) int {
	return ((seat + 1) % NumSeats) + 1
}

// ValidSeat reports whether n is a seat number
func ValidSeat(n int) bool {
	return n >= 1 && n <= NumSeats
}
