package invitation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/towers-go/internal/dependencies/mocks"
	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/services/chat"
)

type ManagerSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	manager *Manager
	log     *chat.Log[model.TableChatKind]
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.manager = NewManager(s.clock)
	s.log = chat.NewLog[model.TableChatKind](s.clock, 0)
}

func (s *ManagerSuite) invite(invitee model.PlayerID) *model.TableInvitation {
	inv, err := s.manager.Create("eiffel", "eiffel-1", "host", invitee)
	s.Require().NoError(err)
	return inv
}

func (s *ManagerSuite) TestCreateIsPending() {
	inv := s.invite("guest")

	s.NotEmpty(inv.ID)
	s.Equal(model.InvitationPending, inv.Status)
	s.Equal(s.clock.Now(), inv.CreatedAt)
}

func (s *ManagerSuite) TestCreateRejectsSelfInvite() {
	_, err := s.manager.Create("eiffel", "eiffel-1", "host", "host")
	s.ErrorIs(err, ErrSelfInvite)
}

func (s *ManagerSuite) TestCreateRejectsDuplicatePending() {
	s.invite("guest")
	_, err := s.manager.Create("eiffel", "eiffel-1", "host", "guest")
	s.ErrorIs(err, model.ErrAlreadyInvited)
}

func (s *ManagerSuite) TestAcceptPublicTablePostsInviterNotice() {
	inv := s.invite("guest")

	got, err := s.manager.Accept(inv.ID, "guest", AcceptContext{TableType: model.TablePublic}, s.log)
	s.Require().NoError(err)
	s.Equal(model.InvitationAccepted, got.Status)

	msgs := s.log.All()
	s.Require().Len(msgs, 1)
	s.Equal(model.TableInvitationAccepted, msgs[0].Kind)
	s.Equal(model.PlayerID("host"), msgs[0].VisibleToUserID)
}

func (s *ManagerSuite) TestAcceptProtectedSeatedPostsPairedNotices() {
	inv := s.invite("guest")

	_, err := s.manager.Accept(inv.ID, "guest", AcceptContext{TableType: model.TableProtected, InviteeSeated: true}, s.log)
	s.Require().NoError(err)

	msgs := s.log.All()
	s.Require().Len(msgs, 2)
	s.Equal(model.PlayerID("host"), msgs[0].VisibleToUserID)
	s.Equal("inviter", msgs[0].Vars["grant"])
	s.Equal(model.PlayerID("guest"), msgs[1].VisibleToUserID)
	s.Equal("invitee", msgs[1].Vars["grant"])
}

func (s *ManagerSuite) TestAcceptPrivateUnseatedPostsSingleNotice() {
	inv := s.invite("guest")

	_, err := s.manager.Accept(inv.ID, "guest", AcceptContext{TableType: model.TablePrivate}, s.log)
	s.Require().NoError(err)
	s.Equal(1, s.log.Len())
}

func (s *ManagerSuite) TestAcceptByWrongPlayer() {
	inv := s.invite("guest")
	_, err := s.manager.Accept(inv.ID, "intruder", AcceptContext{}, s.log)
	s.ErrorIs(err, model.ErrNotInvitee)
}

func (s *ManagerSuite) TestAcceptUnknown() {
	_, err := s.manager.Accept("missing", "guest", AcceptContext{}, s.log)
	s.ErrorIs(err, model.ErrInvitationNotFound)
}

func (s *ManagerSuite) TestTerminalStatesRejectTransitions() {
	inv := s.invite("guest")
	_, err := s.manager.Decline(inv.ID, "guest", "busy", "Guest", s.log)
	s.Require().NoError(err)

	_, err = s.manager.Accept(inv.ID, "guest", AcceptContext{}, s.log)
	s.ErrorIs(err, model.ErrInvitationNotPending)
	_, err = s.manager.Decline(inv.ID, "guest", "", "Guest", s.log)
	s.ErrorIs(err, model.ErrInvitationNotPending)
}

func (s *ManagerSuite) TestDeclineRecordsReasonAndNotifiesInviter() {
	inv := s.invite("guest")
	s.clock.Advance(time.Minute)

	got, err := s.manager.Decline(inv.ID, "guest", "busy", "Guest", s.log)
	s.Require().NoError(err)
	s.Equal(model.InvitationDeclined, got.Status)
	s.Equal("busy", got.DeclineReason)
	s.Equal(s.clock.Now(), got.UpdatedAt)

	msgs := s.log.All()
	s.Require().Len(msgs, 1)
	s.Equal(model.TableInvitationDeclined, msgs[0].Kind)
	s.Equal(model.PlayerID("host"), msgs[0].VisibleToUserID)
	s.Equal("busy", msgs[0].Vars["reason"])
}

func (s *ManagerSuite) TestDeclineAllOnlyTouchesInviteePending() {
	first := s.invite("guest")
	s.clock.Advance(time.Second)
	second, err := s.manager.Create("eiffel", "eiffel-2", "other", "guest")
	s.Require().NoError(err)
	someoneElse := s.invite("bystander")
	accepted, err := s.manager.Create("eiffel", "eiffel-3", "host", "guest")
	s.Require().NoError(err)
	_, err = s.manager.Accept(accepted.ID, "guest", AcceptContext{}, s.log)
	s.Require().NoError(err)

	before := s.log.Len()
	declined := s.manager.DeclineAll("guest", "away", "Guest", func(model.TableID) Noticer { return s.log })

	s.Require().Len(declined, 2)
	s.Equal(first.ID, declined[0].ID)
	s.Equal(second.ID, declined[1].ID)
	s.Equal(before+2, s.log.Len())

	got, err := s.manager.Get(someoneElse.ID)
	s.Require().NoError(err)
	s.True(got.IsPending())
	got, err = s.manager.Get(accepted.ID)
	s.Require().NoError(err)
	s.Equal(model.InvitationAccepted, got.Status)
	s.Empty(s.manager.PendingFor("guest"))
}

func (s *ManagerSuite) TestDropTable() {
	inv := s.invite("guest")
	s.manager.DropTable("eiffel-1")

	_, err := s.manager.Get(inv.ID)
	s.ErrorIs(err, model.ErrInvitationNotFound)
}
