package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/towers-go/internal/dependencies/mocks"
	"github.com/mcoot/towers-go/internal/metrics"
	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/persist"
	"github.com/mcoot/towers-go/internal/protocol"
	"github.com/mcoot/towers-go/internal/services/chat"
	"github.com/mcoot/towers-go/internal/services/stats"
	"github.com/mcoot/towers-go/internal/services/table"
	"github.com/mcoot/towers-go/internal/storage/memory"
	"github.com/mcoot/towers-go/internal/testutil"
)

var (
	alice = model.Player{ID: "p-alice", DisplayName: "Alice"}
	bob   = model.Player{ID: "p-bob", DisplayName: "Bob"}
	carol = model.Player{ID: "p-carol", DisplayName: "Carol"}
)

type fakeConn struct {
	id string

	mu   sync.Mutex
	msgs []protocol.ServerMessage
	// onSend runs after a message is recorded
	onSend func(protocol.ServerMessage)
	full   bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg protocol.ServerMessage) bool {
	c.mu.Lock()
	if c.full {
		c.mu.Unlock()
		return false
	}
	c.msgs = append(c.msgs, msg)
	hook := c.onSend
	c.mu.Unlock()
	if hook != nil {
		hook(msg)
	}
	return true
}

func (c *fakeConn) count(typ model.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.msgs {
		if m.Type == string(typ) {
			n++
		}
	}
	return n
}

func (c *fakeConn) last(typ model.EventType) (protocol.ServerMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if c.msgs[i].Type == string(typ) {
			return c.msgs[i], true
		}
	}
	return protocol.ServerMessage{}, false
}

type RegistrySuite struct {
	suite.Suite
	ctx     context.Context
	clock   *mocks.MockClock
	store   *memory.Storage
	metrics *metrics.Metrics
	persist *persist.Persister
	reg     *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.store = memory.New()
	s.metrics = metrics.New()
	for _, p := range []model.Player{alice, bob, carol} {
		p := p
		s.Require().NoError(s.store.SavePlayer(s.ctx, &p))
	}
	s.reg = s.newRegistry(DefaultConfig())
	s.Require().NoError(s.reg.Start(s.ctx))
}

func (s *RegistrySuite) TearDownTest() {
	s.reg.Stop()
}

func (s *RegistrySuite) newRegistry(cfg Config) *Registry {
	logger := testutil.NopLogger()
	cfg.TickInterval = 0
	s.persist = persist.New(persist.DefaultConfig(), logger, s.metrics)
	return New(cfg, Deps{
		Storage:   s.store,
		Stats:     stats.New(s.store, s.persist, s.clock, logger),
		Persister: s.persist,
		Clock:     s.clock,
		Random:    mocks.NewMockRandom(),
		Metrics:   s.metrics,
		Logger:    logger,
	})
}

func (s *RegistrySuite) connect(p model.Player) *fakeConn {
	c := &fakeConn{id: "conn-" + string(p.ID)}
	s.reg.Connect(s.ctx, p, c)
	return c
}

func (s *RegistrySuite) flush() {
	s.Require().NoError(s.persist.Flush(s.ctx))
}

func (s *RegistrySuite) dispatch(p model.Player, cmd protocol.Command) any {
	res, err := s.reg.Dispatch(s.ctx, p, cmd)
	s.Require().NoError(err, "dispatch %s", cmd.Type())
	return res
}

func (s *RegistrySuite) TestPresenceOnFirstAndLastConnection() {
	aliceConn := s.connect(alice)
	bobConn := s.connect(bob)
	s.Equal(1, aliceConn.count(model.EventUserOnline))
	s.True(s.reg.IsOnline(bob.ID))

	second := &fakeConn{id: "conn-bob-2"}
	s.reg.Connect(s.ctx, bob, second)
	s.Equal(1, aliceConn.count(model.EventUserOnline), "second connection is not announced")

	s.reg.Disconnect(bob.ID, bobConn.ID())
	s.Equal(0, aliceConn.count(model.EventUserOffline))
	s.True(s.reg.IsOnline(bob.ID))

	s.reg.Disconnect(bob.ID, second.ID())
	s.Equal(1, aliceConn.count(model.EventUserOffline))
	s.False(s.reg.IsOnline(bob.ID))
	s.Len(s.reg.OnlinePlayers(), 1)
	_, known := s.reg.Player(bob.ID)
	s.False(known, "removed once the last connection closes")
}

func (s *RegistrySuite) TestReconnectAfterLastDisconnect() {
	conn := s.connect(bob)
	s.reg.SetBlocksInvitations(s.ctx, bob, true)
	s.reg.Disconnect(bob.ID, conn.ID())

	s.connect(bob)

	p, known := s.reg.Player(bob.ID)
	s.True(known)
	s.Equal(bob.DisplayName, p.DisplayName)
	s.True(s.reg.IsOnline(bob.ID))
	s.False(s.reg.blocksInvitations(bob.ID), "per-session settings start fresh")
}

func (s *RegistrySuite) TestPublishCountsDrops() {
	c := s.connect(alice)
	c.full = true

	s.reg.Publish(alice.ID, model.Event{Type: model.EventTableUpdated})

	s.Equal(0, c.count(model.EventTableUpdated))
}

func (s *RegistrySuite) TestCreateTableUsesLowestFreeNumber() {
	first, err := s.reg.CreateTable(s.ctx, "lobby", alice, model.TablePublic, true)
	s.Require().NoError(err)
	second, err := s.reg.CreateTable(s.ctx, "lobby", bob, model.TablePublic, false)
	s.Require().NoError(err)
	s.Equal(1, first.Number)
	s.Equal(2, second.Number)
	s.Equal(alice.ID, first.HostID)
	s.Len(first.Members, 1)

	s.Require().NoError(s.reg.LeaveTable(s.ctx, first.ID, alice.ID))
	third, err := s.reg.CreateTable(s.ctx, "lobby", carol, model.TablePrivate, false)
	s.Require().NoError(err)
	s.Equal(1, third.Number)
}

func (s *RegistrySuite) TestCreateTableValidation() {
	_, err := s.reg.CreateTable(s.ctx, "lobby", alice, "secret", false)
	s.ErrorIs(err, model.ErrInvalidTableType)

	_, err = s.reg.CreateTable(s.ctx, "nowhere", alice, model.TablePublic, false)
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *RegistrySuite) TestRoomFull() {
	s.reg.Stop()
	cfg := DefaultConfig()
	cfg.Rooms = []model.Room{{ID: "tiny", Name: "Tiny", MaxTables: 1}}
	s.reg = s.newRegistry(cfg)
	s.Require().NoError(s.reg.Start(s.ctx))

	_, err := s.reg.CreateTable(s.ctx, "tiny", alice, model.TablePublic, false)
	s.Require().NoError(err)
	_, err = s.reg.CreateTable(s.ctx, "tiny", bob, model.TablePublic, false)
	s.ErrorIs(err, model.ErrRoomFull)
}

func (s *RegistrySuite) TestRoomMembersSeeNewAndDeletedTables() {
	carolConn := s.connect(carol)
	view := s.dispatch(carol, protocol.RoomJoin{RoomID: "lobby"}).(RoomView)
	s.Empty(view.Tables)

	created, err := s.reg.CreateTable(s.ctx, "lobby", alice, model.TablePublic, false)
	s.Require().NoError(err)
	s.Equal(1, carolConn.count(model.EventTableUpdated))

	tables, err := s.reg.ListTables(s.ctx, "lobby")
	s.Require().NoError(err)
	s.Require().Len(tables, 1)
	s.Equal(created.ID, tables[0].ID)

	s.Require().NoError(s.reg.LeaveTable(s.ctx, created.ID, alice.ID))
	s.Equal(1, carolConn.count(model.EventTableDeleted))

	s.flush()
	_, err = s.store.GetTable(s.ctx, created.ID)
	s.ErrorIs(err, model.ErrTableNotFound)
	_, err = s.reg.TableView(s.ctx, created.ID, carol.ID)
	s.ErrorIs(err, model.ErrTableNotFound)
}

func (s *RegistrySuite) TestLeavingKeepsTableWhileMembersRemain() {
	created, err := s.reg.CreateTable(s.ctx, "lobby", alice, model.TablePublic, false)
	s.Require().NoError(err)
	s.dispatch(bob, protocol.TableJoin{TableID: created.ID})

	s.Require().NoError(s.reg.LeaveTable(s.ctx, created.ID, alice.ID))

	view, err := s.reg.TableView(s.ctx, created.ID, bob.ID)
	s.Require().NoError(err)
	s.Equal(bob.ID, view.HostID)
}

func (s *RegistrySuite) TestSeatChangesArePersisted() {
	created, err := s.reg.CreateTable(s.ctx, "lobby", alice, model.TablePublic, false)
	s.Require().NoError(err)
	s.dispatch(bob, protocol.TableJoin{TableID: created.ID})
	s.dispatch(alice, protocol.SeatSit{TableID: created.ID, Seat: 1})
	s.dispatch(bob, protocol.SeatSit{TableID: created.ID, Seat: 3})
	s.dispatch(bob, protocol.SeatStand{TableID: created.ID})
	s.dispatch(bob, protocol.SeatSit{TableID: created.ID, Seat: 4})

	s.flush()
	seats, err := s.store.GetSeats(s.ctx, created.ID)
	s.Require().NoError(err)
	bySeat := map[int]model.PlayerID{}
	for _, a := range seats {
		bySeat[a.SeatNumber] = a.PlayerID
	}
	s.Equal(alice.ID, bySeat[1])
	s.Equal(model.PlayerID(""), bySeat[3])
	s.Equal(bob.ID, bySeat[4])
}

func (s *RegistrySuite) TestGameCommandsReachTheTable() {
	aliceConn := s.connect(alice)
	created, err := s.reg.CreateTable(s.ctx, "lobby", alice, model.TablePublic, false)
	s.Require().NoError(err)
	s.dispatch(bob, protocol.TableJoin{TableID: created.ID})
	s.dispatch(alice, protocol.SeatSit{TableID: created.ID, Seat: 1})
	s.dispatch(bob, protocol.SeatSit{TableID: created.ID, Seat: 3})
	s.dispatch(alice, protocol.SeatReady{TableID: created.ID, Ready: true})
	s.dispatch(bob, protocol.SeatReady{TableID: created.ID, Ready: true})

	s.Equal(1, aliceConn.count(model.EventGameStarted))

	s.dispatch(alice, protocol.GameMove{TableID: created.ID, Direction: protocol.DirLeft})
	s.dispatch(alice, protocol.GameCycle{TableID: created.ID})
	s.dispatch(alice, protocol.GameDrop{TableID: created.ID})

	_, err = s.reg.Dispatch(s.ctx, alice, protocol.GameMove{TableID: created.ID, Direction: "up"})
	s.ErrorIs(err, model.ErrInvalidDirection)
	_, err = s.reg.Dispatch(s.ctx, alice, protocol.GamePower{TableID: created.ID, Index: 5})
	s.ErrorIs(err, model.ErrPowerIndex)
	_, err = s.reg.Dispatch(s.ctx, carol, protocol.GameDrop{TableID: created.ID})
	s.ErrorIs(err, model.ErrNotSeated)
	_, err = s.reg.Dispatch(s.ctx, alice, protocol.GameDrop{TableID: "lobby-9"})
	s.ErrorIs(err, model.ErrTableNotFound)
}

func (s *RegistrySuite) TestStartRestoresPersistedTables() {
	s.reg.Stop()

	now := s.clock.Now()
	s.Require().NoError(s.store.SaveTable(s.ctx, &model.TableInfo{
		ID: "lobby-4", RoomID: "lobby", Number: 4, HostID: alice.ID, Type: model.TableProtected, CreatedAt: now, UpdatedAt: now,
	}))
	s.Require().NoError(s.store.UpsertSeat(s.ctx, &model.SeatAssignment{TableID: "lobby-4", SeatNumber: 3, PlayerID: alice.ID, UpdatedAt: now}))
	s.Require().NoError(s.store.UpsertSeat(s.ctx, &model.SeatAssignment{TableID: "lobby-4", SeatNumber: 6, PlayerID: "p-ghost", UpdatedAt: now}))
	s.Require().NoError(s.store.AppendChatMessage(s.ctx, &model.ChatRecord{
		ID: "m1", Scope: model.ChatScopeRoom, ScopeID: "lobby", AuthorID: bob.ID, AuthorName: bob.DisplayName,
		Kind: string(model.RoomChat), Text: "anyone around?", CreatedAt: now,
	}))

	s.reg = s.newRegistry(DefaultConfig())
	s.Require().NoError(s.reg.Start(s.ctx))

	tables, err := s.reg.ListTables(s.ctx, "lobby")
	s.Require().NoError(err)
	s.Require().Len(tables, 1)
	s.Equal(4, tables[0].Number)
	s.Equal(1, tables[0].Seated, "seats naming unknown players are skipped")

	view, err := s.reg.TableView(s.ctx, "lobby-4", alice.ID)
	s.Require().NoError(err)
	s.Equal(alice.ID, view.Seats[2].PlayerID)

	chatLog, err := s.reg.RoomChat("lobby", carol.ID)
	s.Require().NoError(err)
	s.Require().Len(chatLog, 1)
	s.Equal("anyone around?", chatLog[0].Text)
}

func (s *RegistrySuite) TestStopKeepsPersistedSeats() {
	created, err := s.reg.CreateTable(s.ctx, "lobby", alice, model.TablePublic, false)
	s.Require().NoError(err)
	s.dispatch(alice, protocol.SeatSit{TableID: created.ID, Seat: 2})

	s.reg.Stop()

	seats, err := s.store.GetSeats(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Require().Len(seats, 1)
	s.Equal(alice.ID, seats[0].PlayerID)

	s.reg = s.newRegistry(DefaultConfig())
	s.Require().NoError(s.reg.Start(s.ctx))
}

func (s *RegistrySuite) TestReloadTableMergesOutOfBandSeats() {
	created, err := s.reg.CreateTable(s.ctx, "lobby", alice, model.TablePublic, false)
	s.Require().NoError(err)
	s.flush()

	s.Require().NoError(s.store.UpsertSeat(s.ctx, &model.SeatAssignment{
		TableID: created.ID, SeatNumber: 5, PlayerID: carol.ID, UpdatedAt: s.clock.Now(),
	}))

	changed, err := s.reg.ReloadTable(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal([]int{5}, changed)

	changed, err = s.reg.ReloadTable(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Empty(changed)
}

func (s *RegistrySuite) TestMuteSendsPrivateNotice() {
	aliceConn := s.connect(alice)
	bobConn := s.connect(bob)
	s.dispatch(alice, protocol.RoomJoin{RoomID: "lobby"})
	s.dispatch(bob, protocol.RoomJoin{RoomID: "lobby"})

	changed := s.dispatch(bob, protocol.ChatMute{PlayerID: alice.ID, RoomID: "lobby"})
	s.Equal(true, changed)
	again := s.dispatch(bob, protocol.ChatMute{PlayerID: alice.ID, RoomID: "lobby"})
	s.Equal(false, again)

	msg, ok := bobConn.last(model.EventChatUpdated)
	s.Require().True(ok)
	payload := msg.Payload.(chat.UpdatedPayload)
	s.Equal(string(model.RoomModerationNotice), payload.Message.Kind)
	s.True(payload.Message.Private)
	s.Equal(0, aliceConn.count(model.EventChatUpdated))

	s.dispatch(bob, protocol.ChatUnmute{PlayerID: alice.ID, RoomID: "lobby"})
	s.False(s.reg.Mutes().IsMuted(bob.ID, alice.ID))
}

func (s *RegistrySuite) TestRoomChatFanOut() {
	bobConn := s.connect(bob)
	carolConn := s.connect(carol)
	s.dispatch(alice, protocol.RoomJoin{RoomID: "lobby"})
	s.dispatch(bob, protocol.RoomJoin{RoomID: "lobby"})
	s.dispatch(carol, protocol.RoomJoin{RoomID: "lobby"})
	s.dispatch(bob, protocol.ChatMute{PlayerID: alice.ID})

	s.dispatch(alice, protocol.ChatRoom{RoomID: "lobby", Text: "hello"})

	s.Equal(1, carolConn.count(model.EventChatUpdated))
	s.Equal(0, bobConn.count(model.EventChatUpdated))

	_, err := s.reg.Dispatch(s.ctx, bob, protocol.ChatMute{PlayerID: bob.ID})
	s.ErrorIs(err, model.ErrInvalidTarget)

	s.dispatch(bob, protocol.RoomLeave{RoomID: "lobby"})
	_, err = s.reg.Dispatch(s.ctx, bob, protocol.ChatRoom{RoomID: "lobby", Text: "hi"})
	s.ErrorIs(err, model.ErrNotInRoom)

	s.flush()
	recs, err := s.store.ListChatMessages(s.ctx, model.ChatScopeRoom, "lobby", 0)
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal("hello", recs[0].Text)
}

func (s *RegistrySuite) TestInvitationGrantsAccessToPrivateTable() {
	bobConn := s.connect(bob)
	created, err := s.reg.CreateTable(s.ctx, "lobby", alice, model.TablePrivate, false)
	s.Require().NoError(err)

	_, err = s.reg.Dispatch(s.ctx, bob, protocol.TableJoin{TableID: created.ID})
	s.ErrorIs(err, model.ErrAccessDenied)

	res := s.dispatch(alice, protocol.InviteSend{TableID: created.ID, PlayerID: bob.ID})
	inv := res.(model.InvitationPayload)
	s.Equal(1, bobConn.count(model.EventInvitationReceived))
	s.Len(s.reg.PendingInvitations(bob.ID), 1)

	view := s.dispatch(bob, protocol.InviteAccept{InvitationID: inv.ID}).(table.View)
	s.Len(view.Members, 2)
	s.Equal(1, bobConn.count(model.EventInvitationUpdated))
}

func (s *RegistrySuite) TestInvitationRules() {
	s.reg.GetOrCreatePlayer(bob)
	created, err := s.reg.CreateTable(s.ctx, "lobby", alice, model.TablePublic, false)
	s.Require().NoError(err)

	_, err = s.reg.Dispatch(s.ctx, carol, protocol.InviteSend{TableID: created.ID, PlayerID: bob.ID})
	s.ErrorIs(err, model.ErrNotAtTable)
	_, err = s.reg.Dispatch(s.ctx, alice, protocol.InviteSend{TableID: created.ID, PlayerID: "p-nobody"})
	s.ErrorIs(err, model.ErrPlayerNotFound)

	inv := s.dispatch(alice, protocol.InviteSend{TableID: created.ID, PlayerID: bob.ID}).(model.InvitationPayload)
	_, err = s.reg.Dispatch(s.ctx, alice, protocol.InviteSend{TableID: created.ID, PlayerID: bob.ID})
	s.ErrorIs(err, model.ErrAlreadyInvited)

	_, err = s.reg.Dispatch(s.ctx, carol, protocol.InviteAccept{InvitationID: inv.ID})
	s.ErrorIs(err, model.ErrNotInvitee)

	declined := s.dispatch(bob, protocol.InviteDecline{InvitationID: inv.ID, Reason: "busy"}).(model.InvitationPayload)
	s.Equal(string(model.InvitationDeclined), declined.Status)
	_, err = s.reg.Dispatch(s.ctx, bob, protocol.InviteAccept{InvitationID: inv.ID})
	s.ErrorIs(err, model.ErrInvitationNotPending)
}

func (s *RegistrySuite) TestBlockingInvitationsDeclinesPending() {
	aliceConn := s.connect(alice)
	s.reg.GetOrCreatePlayer(bob)
	created, err := s.reg.CreateTable(s.ctx, "lobby", alice, model.TablePublic, false)
	s.Require().NoError(err)
	s.dispatch(alice, protocol.InviteSend{TableID: created.ID, PlayerID: bob.ID})

	s.dispatch(bob, protocol.BlockInvites{Blocked: true})

	s.Empty(s.reg.PendingInvitations(bob.ID))
	s.Equal(1, aliceConn.count(model.EventInvitationUpdated))
	_, err = s.reg.Dispatch(s.ctx, alice, protocol.InviteSend{TableID: created.ID, PlayerID: bob.ID})
	s.ErrorIs(err, model.ErrInvitationsBlocked)

	s.dispatch(bob, protocol.BlockInvites{Blocked: false})
	s.dispatch(alice, protocol.InviteSend{TableID: created.ID, PlayerID: bob.ID})
	declined := s.dispatch(bob, protocol.InviteDecline{All: true}).([]model.InvitationPayload)
	s.Len(declined, 1)
}

func (s *RegistrySuite) TestPingMeasuresRoundTrip() {
	bobConn := s.connect(bob)
	bobConn.onSend = func(msg protocol.ServerMessage) {
		if msg.Type != string(model.EventPing) {
			return
		}
		nonce := msg.Payload.(model.PingPayload).Nonce
		s.clock.Advance(40 * time.Millisecond)
		go s.reg.Pong(bob.ID, nonce)
	}

	res := s.dispatch(alice, protocol.PingRequest{PlayerID: bob.ID}).(protocol.PingResult)

	s.True(res.OK)
	s.Equal(int64(40), res.RTTMs)
}

func (s *RegistrySuite) TestPingFailures() {
	_, err := s.reg.Dispatch(s.ctx, alice, protocol.PingRequest{PlayerID: bob.ID})
	s.ErrorIs(err, model.ErrPlayerOffline)

	s.reg.cfg.PingTimeout = 20 * time.Millisecond
	bobConn := s.connect(bob)
	bobConn.onSend = func(msg protocol.ServerMessage) {
		if msg.Type == string(model.EventPing) {
			// answered by the wrong player
			go s.reg.Pong(carol.ID, msg.Payload.(model.PingPayload).Nonce)
		}
	}
	_, err = s.reg.Dispatch(s.ctx, alice, protocol.PingRequest{PlayerID: bob.ID})
	s.ErrorIs(err, model.ErrPingTimeout)
}
