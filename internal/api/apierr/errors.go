package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/protocol"
	"github.com/mcoot/towers-go/internal/services/auth"
	"github.com/mcoot/towers-go/internal/services/invitation"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeRateLimited          = "RATE_LIMITED"
	CodeUnknownCommand       = "UNKNOWN_COMMAND"
	CodePlayerNotFound       = "PLAYER_NOT_FOUND"
	CodePlayerOffline        = "PLAYER_OFFLINE"
	CodeRoomNotFound         = "ROOM_NOT_FOUND"
	CodeNotInRoom            = "NOT_IN_ROOM"
	CodeRoomFull             = "ROOM_FULL"
	CodeTableNotFound        = "TABLE_NOT_FOUND"
	CodeNotAtTable           = "NOT_AT_TABLE"
	CodeAccessDenied         = "ACCESS_DENIED"
	CodeNotHost              = "NOT_HOST"
	CodeInvalidTableType     = "INVALID_TABLE_TYPE"
	CodeSeatNotFound         = "SEAT_NOT_FOUND"
	CodeSeatTaken            = "SEAT_TAKEN"
	CodeNotSeated            = "NOT_SEATED"
	CodeInvalidTarget        = "INVALID_TARGET"
	CodeGameInProgress       = "GAME_IN_PROGRESS"
	CodeNoGameInProgress     = "NO_GAME_IN_PROGRESS"
	CodeNotEnoughPlayers     = "NOT_ENOUGH_PLAYERS"
	CodePlayersNotReady      = "PLAYERS_NOT_READY"
	CodeSeatEliminated       = "SEAT_ELIMINATED"
	CodePowerIndex           = "POWER_INDEX"
	CodeInvalidDirection     = "INVALID_DIRECTION"
	CodeEmptyMessage         = "EMPTY_MESSAGE"
	CodeMessageTooLong       = "MESSAGE_TOO_LONG"
	CodeInvitationNotFound   = "INVITATION_NOT_FOUND"
	CodeInvitationNotPending = "INVITATION_NOT_PENDING"
	CodeNotInvitee           = "NOT_INVITEE"
	CodeInvitationsBlocked   = "INVITATIONS_BLOCKED"
	CodeAlreadyInvited       = "ALREADY_INVITED"
	CodeSelfInvite           = "SELF_INVITE"
	CodePingTimeout          = "PING_TIMEOUT"
	CodeStaleState           = "STALE_STATE"
	CodeUsernameExists       = "USERNAME_EXISTS"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeInvalidDisplayName   = "INVALID_DISPLAY_NAME"
	CodeInvalidUsername      = "INVALID_USERNAME"
	CodeWeakPassword         = "WEAK_PASSWORD"
	CodeInternalError        = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

type mapping struct {
	target error
	status int
	api    APIError
}

// mappings is checked in order; the first errors.Is match wins
var mappings = []mapping{
	{model.ErrPlayerNotFound, http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}},
	{model.ErrStatsNotFound, http.StatusNotFound, APIError{CodePlayerNotFound, "Player stats not found"}},
	{model.ErrPlayerOffline, http.StatusConflict, APIError{CodePlayerOffline, "Player is offline"}},
	{model.ErrRoomNotFound, http.StatusNotFound, APIError{CodeRoomNotFound, "Room not found"}},
	{model.ErrNotInRoom, http.StatusConflict, APIError{CodeNotInRoom, "Not in this room"}},
	{model.ErrRoomFull, http.StatusConflict, APIError{CodeRoomFull, "Room has no free tables"}},
	{model.ErrTableNotFound, http.StatusNotFound, APIError{CodeTableNotFound, "Table not found"}},
	{model.ErrNotAtTable, http.StatusConflict, APIError{CodeNotAtTable, "Not at this table"}},
	{model.ErrAccessDenied, http.StatusForbidden, APIError{CodeAccessDenied, "An invitation is required"}},
	{model.ErrNotHost, http.StatusForbidden, APIError{CodeNotHost, "Only the host can perform this action"}},
	{model.ErrInvalidTableType, http.StatusBadRequest, APIError{CodeInvalidTableType, "Unknown table type"}},
	{model.ErrSeatNotFound, http.StatusBadRequest, APIError{CodeSeatNotFound, "Seat does not exist"}},
	{model.ErrSeatTaken, http.StatusConflict, APIError{CodeSeatTaken, "Seat is already taken"}},
	{model.ErrNotSeated, http.StatusConflict, APIError{CodeNotSeated, "Not seated"}},
	{model.ErrInvalidTarget, http.StatusBadRequest, APIError{CodeInvalidTarget, "Invalid target seat"}},
	{model.ErrGameInProgress, http.StatusConflict, APIError{CodeGameInProgress, "Game is in progress"}},
	{model.ErrNoGameInProgress, http.StatusConflict, APIError{CodeNoGameInProgress, "No game in progress"}},
	{model.ErrNotEnoughPlayers, http.StatusConflict, APIError{CodeNotEnoughPlayers, "At least two seated players are required"}},
	{model.ErrPlayersNotReady, http.StatusConflict, APIError{CodePlayersNotReady, "Not every seated player is ready"}},
	{model.ErrSeatEliminated, http.StatusConflict, APIError{CodeSeatEliminated, "Seat has been eliminated"}},
	{model.ErrPowerIndex, http.StatusBadRequest, APIError{CodePowerIndex, "No power at that index"}},
	{model.ErrInvalidDirection, http.StatusBadRequest, APIError{CodeInvalidDirection, "Invalid move direction"}},
	{model.ErrEmptyMessage, http.StatusBadRequest, APIError{CodeEmptyMessage, "Message is empty"}},
	{model.ErrMessageTooLong, http.StatusBadRequest, APIError{CodeMessageTooLong, "Message is too long"}},
	{model.ErrInvitationNotFound, http.StatusNotFound, APIError{CodeInvitationNotFound, "Invitation not found"}},
	{model.ErrInvitationNotPending, http.StatusConflict, APIError{CodeInvitationNotPending, "Invitation is no longer pending"}},
	{model.ErrNotInvitee, http.StatusForbidden, APIError{CodeNotInvitee, "Invitation is addressed to another player"}},
	{model.ErrInvitationsBlocked, http.StatusConflict, APIError{CodeInvitationsBlocked, "Player is not accepting invitations"}},
	{model.ErrAlreadyInvited, http.StatusConflict, APIError{CodeAlreadyInvited, "Player already has a pending invitation"}},
	{invitation.ErrSelfInvite, http.StatusBadRequest, APIError{CodeSelfInvite, "You cannot invite yourself"}},
	{model.ErrPingTimeout, http.StatusGatewayTimeout, APIError{CodePingTimeout, "Ping timed out"}},
	{model.ErrUnknownCommand, http.StatusBadRequest, APIError{CodeUnknownCommand, "Unknown command"}},
	{model.ErrRateLimited, http.StatusTooManyRequests, APIError{CodeRateLimited, "Too many requests"}},
	{model.ErrStaleState, http.StatusConflict, APIError{CodeStaleState, "State changed, please retry"}},
	{protocol.ErrMalformed, http.StatusBadRequest, APIError{CodeInvalidRequest, "Malformed message"}},

	{auth.ErrInvalidCredentials, http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}},
	{auth.ErrInvalidSession, http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired session"}},
	{auth.ErrInvalidTicket, http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired socket ticket"}},
	{auth.ErrUsernameExists, http.StatusConflict, APIError{CodeUsernameExists, "Username already exists"}},
	{auth.ErrInvalidDisplayName, http.StatusBadRequest, APIError{CodeInvalidDisplayName, "Display name must be 1-24 characters"}},
	{auth.ErrInvalidUsername, http.StatusBadRequest, APIError{CodeInvalidUsername, "Username must be 3-32 letters, digits, '_' or '-'"}},
	{auth.ErrWeakPassword, http.StatusBadRequest, APIError{CodeWeakPassword, "Password must be at least 8 characters"}},
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Describe returns the status and body an error maps to. Socket acks use the body only.
func Describe(err error) (int, APIError) {
	he := toHTTPError(err)
	return he.status, he.apiError
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return &httpError{m.status, m.api}
		}
	}
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
