package model

import "errors"

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound = errors.New("player not found")
	ErrPlayerOffline  = errors.New("player is offline")
	ErrStatsNotFound  = errors.New("player stats not found")

	// Room errors
	ErrRoomNotFound = errors.New("room not found")
	ErrNotInRoom    = errors.New("player is not in room")
	ErrRoomFull     = errors.New("room has no free table numbers")

	// Table errors
	ErrTableNotFound    = errors.New("table not found")
	ErrNotAtTable       = errors.New("player is not at table")
	ErrAccessDenied     = errors.New("table access denied")
	ErrNotHost          = errors.New("player is not the host")
	ErrInvalidTableType = errors.New("invalid table type")

	// Seat errors
	ErrSeatNotFound  = errors.New("seat not found")
	ErrSeatTaken     = errors.New("seat is already taken")
	ErrNotSeated     = errors.New("player is not seated")
	ErrInvalidTarget = errors.New("invalid target seat")

	// Game errors
	ErrGameInProgress   = errors.New("game is in progress")
	ErrNoGameInProgress = errors.New("no game in progress")
	ErrNotEnoughPlayers = errors.New("at least two seated players are required to start")
	ErrPlayersNotReady  = errors.New("not every seated player is ready")
	ErrSeatEliminated   = errors.New("seat has been eliminated")
	ErrPowerIndex       = errors.New("no power at that index")
	ErrInvalidDirection = errors.New("invalid move direction")

	// Chat errors
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message is too long")

	// Invitation errors
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrInvitationNotPending = errors.New("invitation is no longer pending")
	ErrNotInvitee           = errors.New("invitation is addressed to another player")
	ErrInvitationsBlocked   = errors.New("player is not accepting invitations")
	ErrAlreadyInvited       = errors.New("player already has a pending invitation to this table")

	// Connection errors
	ErrPingTimeout    = errors.New("ping timed out")
	ErrUnknownCommand = errors.New("unknown command")
	ErrRateLimited    = errors.New("rate limit exceeded")

	// Consistency errors
	ErrStaleState         = errors.New("state changed while the request was in flight")
	ErrInvariantViolation = errors.New("internal invariant violated")
)
