package auth

import "time"

// Socket ticket tests

func (s *ServiceSuite) TestTicketRoundTrip() {
	session, err := s.service.CreateGuestPlayer(s.ctx, "Alice")
	s.Require().NoError(err)

	ticket, err := s.service.IssueTicket(session.Token)
	s.Require().NoError(err)
	s.NotEmpty(ticket)

	player, err := s.service.ValidateTicket(ticket)
	s.Require().NoError(err)
	s.Equal(session.PlayerID, player.ID)
	s.Equal("Alice", player.DisplayName)
	s.True(player.IsGuest)
}

func (s *ServiceSuite) TestIssueTicketNeedsValidSession() {
	_, err := s.service.IssueTicket("sess_nope")
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestTicketExpires() {
	session, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")
	ticket, err := s.service.IssueTicket(session.Token)
	s.Require().NoError(err)

	s.clock.Advance(DefaultConfig().TicketTTL + time.Second)

	_, err = s.service.ValidateTicket(ticket)
	s.ErrorIs(err, ErrInvalidTicket)
}

func (s *ServiceSuite) TestTicketFromAnotherSecretRejected() {
	other := New(s.storage, s.clock, Config{TicketSecret: "another-secret"})
	session, _ := other.CreateGuestPlayer(s.ctx, "Mallory")
	ticket, err := other.IssueTicket(session.Token)
	s.Require().NoError(err)

	_, err = s.service.ValidateTicket(ticket)
	s.ErrorIs(err, ErrInvalidTicket)
}

func (s *ServiceSuite) TestGarbageTicketRejected() {
	_, err := s.service.ValidateTicket("not-a-jwt")
	s.ErrorIs(err, ErrInvalidTicket)
}
