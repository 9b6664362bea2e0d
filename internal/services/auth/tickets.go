package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mcoot/towers-go/internal/model"
)

const ticketIssuer = "towers"

// TicketClaims are the JWT claims of a socket ticket
type TicketClaims struct {
	PlayerID    string `json:"pid"`
	DisplayName string `json:"name"`
	Guest       bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

// IssueTicket exchanges a session token for a short-lived signed ticket that
// authenticates the websocket handshake
func (s *Service) IssueTicket(sessionToken string) (string, error) {
	session, err := s.ValidateSession(sessionToken)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	claims := &TicketClaims{
		PlayerID:    string(session.Player.ID),
		DisplayName: session.Player.DisplayName,
		Guest:       session.Player.IsGuest,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ticketIssuer,
			Subject:   string(session.Player.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ticketTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.ticketSecret)
}

// ValidateTicket checks a socket ticket and returns the player it was issued to
func (s *Service) ValidateTicket(ticket string) (*model.Player, error) {
	token, err := jwt.ParseWithClaims(ticket, &TicketClaims{}, func(*jwt.Token) (any, error) {
		return s.ticketSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ticketIssuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidTicket, err)
	}

	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid || claims.PlayerID == "" {
		return nil, ErrInvalidTicket
	}
	return &model.Player{
		ID:          model.PlayerID(claims.PlayerID),
		DisplayName: claims.DisplayName,
		IsGuest:     claims.Guest,
	}, nil
}

// TicketTTL is how long an issued ticket stays valid
func (s *Service) TicketTTL() time.Duration {
	return s.ticketTTL
}
