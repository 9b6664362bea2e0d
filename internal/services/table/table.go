// Package table owns the state of one table: its seats, members, chat and the game in
// progress. A Table is not safe for concurrent use; Runtime serialises access to it.
package table

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/mcoot/towers-go/internal/dependencies/clock"
	"github.com/mcoot/towers-go/internal/dependencies/random"
	"github.com/mcoot/towers-go/internal/engine/board"
	"github.com/mcoot/towers-go/internal/metrics"
	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/services/chat"
)

// ChatHistory is the number of table chat messages kept in memory
const ChatHistory = 200

// Ratings is the part of the stats service a table needs to settle rated games
type Ratings interface {
	Rating(ctx context.Context, id model.PlayerID) (int, error)
	ApplyResult(ctx context.Context, id model.PlayerID, won bool, newRating int) (*model.PlayerStats, error)
	IsHeroEligible(id model.PlayerID) bool
}

// Config holds per-table game settings
type Config struct {
	Board   board.Config
	Preview int
	// StartDelay is the countdown between everyone being ready and the game starting
	StartDelay time.Duration
}

// DefaultConfig returns the standard table settings
func DefaultConfig() Config {
	return Config{
		Board:   board.DefaultConfig(),
		Preview: board.DefaultPreview,
	}
}

// Deps are the collaborators a table is built with. Every hook may be nil.
type Deps struct {
	Clock   clock.Clock
	Random  random.Random
	Ratings Ratings
	// Viewers resolves a player's mute periods for chat filtering
	Viewers func(id model.PlayerID) chat.Viewer
	// OnSeat is called whenever a seat's occupant changes
	OnSeat func(a model.SeatAssignment)
	// OnChat is called for every appended chat message
	OnChat  func(rec *model.ChatRecord)
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Outgoing is an event addressed to one player
type Outgoing struct {
	To    model.PlayerID
	Event model.Event
}

// Table is the authoritative state of one table
type Table struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	info    model.TableInfo
	seats   *SeatManager
	members []model.Player
	granted map[model.PlayerID]bool
	chat    *chat.Log[model.TableChatKind]

	game    *game
	startAt *time.Time
	// step increases once per externally driven change (tick, drop, fire, stand)
	step int

	outbox []Outgoing
}

// New creates an empty table
func New(info model.TableInfo, cfg Config, deps Deps) *Table {
	t := &Table{
		cfg:     cfg,
		deps:    deps,
		logger:  deps.Logger.With(slog.String("component", "table"), slog.String("table_id", string(info.ID))),
		info:    info,
		seats:   NewSeatManager(info.ID),
		granted: make(map[model.PlayerID]bool),
		chat:    chat.NewLog[model.TableChatKind](deps.Clock, ChatHistory),
	}
	t.chat.OnAppend(t.onChat)
	return t
}

// Info returns the table description
func (t *Table) Info() model.TableInfo { return t.info }

// ID returns the table id
func (t *Table) ID() model.TableID { return t.info.ID }

// Seats returns the seat manager
func (t *Table) Seats() *SeatManager { return t.seats }

// Chat returns the table chat log
func (t *Table) Chat() *chat.Log[model.TableChatKind] { return t.chat }

// Playing reports whether a game is in progress
func (t *Table) Playing() bool { return t.game != nil }

// Members returns the players at the table, in join order
func (t *Table) Members() []model.Player {
	return append([]model.Player(nil), t.members...)
}

// IsMember reports whether the player has joined the table
func (t *Table) IsMember(id model.PlayerID) bool {
	return t.memberIndex(id) >= 0
}

// Grant lets a player past the table's access checks
func (t *Table) Grant(id model.PlayerID) {
	t.granted[id] = true
}

// CanJoin reports whether the player may join the table
func (t *Table) CanJoin(id model.PlayerID) bool {
	return t.info.Type != model.TablePrivate || t.isTrusted(id)
}

// CanSit reports whether the player may take a seat
func (t *Table) CanSit(id model.PlayerID) bool {
	return t.info.Type == model.TablePublic || t.isTrusted(id)
}

func (t *Table) isTrusted(id model.PlayerID) bool {
	return id == t.info.HostID || t.granted[id]
}

// Drain returns and clears the events produced since the last call
func (t *Table) Drain() []Outgoing {
	out := t.outbox
	t.outbox = nil
	return out
}

// Join adds a player to the table. Joining twice is a no-op.
func (t *Table) Join(p model.Player) error {
	if t.IsMember(p.ID) {
		return nil
	}
	if !t.CanJoin(p.ID) {
		return model.ErrAccessDenied
	}
	t.members = append(t.members, p)
	t.chat.Notice(model.TableSystemAction, map[string]string{"action": "joined", "player": p.DisplayName}, "")
	t.emitTableUpdated()
	return nil
}

// Leave removes a player from the table, standing them up first.
// It reports whether the table is now empty.
func (t *Table) Leave(id model.PlayerID) (bool, error) {
	i := t.memberIndex(id)
	if i < 0 {
		return false, model.ErrNotAtTable
	}
	if _, seated := t.seats.SeatOf(id); seated {
		if err := t.Stand(id); err != nil {
			return false, err
		}
	}

	p := t.members[i]
	t.members = append(t.members[:i], t.members[i+1:]...)
	if len(t.members) == 0 {
		return true, nil
	}

	if id == t.info.HostID {
		t.info.HostID = t.members[0].ID
		t.info.UpdatedAt = t.deps.Clock.Now()
	}
	t.chat.Notice(model.TableSystemAction, map[string]string{"action": "left", "player": p.DisplayName}, "")
	t.emitTableUpdated()
	return false, nil
}

// Sit places a member in seat n, moving them if they already hold another seat
func (t *Table) Sit(p model.Player, n int) error {
	if !t.IsMember(p.ID) {
		return model.ErrNotAtTable
	}
	if t.game != nil {
		return model.ErrGameInProgress
	}
	if !t.CanSit(p.ID) {
		return model.ErrAccessDenied
	}

	previous, err := t.seats.Assign(p, n)
	if err != nil {
		return err
	}
	if previous == n {
		return nil
	}
	if err := t.verify(); err != nil {
		return err
	}

	t.cancelCountdown()
	if previous != 0 {
		t.seatChanged(previous)
	}
	t.seatChanged(n)
	return nil
}

// Stand vacates the player's seat. Standing during a game forfeits it.
func (t *Table) Stand(id model.PlayerID) error {
	seat, ok := t.seats.SeatOf(id)
	if !ok {
		return model.ErrNotSeated
	}

	forfeit := seat.Game.Active()
	if forfeit {
		t.step++
		t.eliminate(seat, "forfeit")
	}

	n, err := t.seats.Unassign(id)
	if err != nil {
		return err
	}
	if err := t.verify(); err != nil {
		return err
	}
	t.cancelCountdown()
	t.seatChanged(n)

	if forfeit {
		t.checkEnd()
	}
	return nil
}

// SetReady marks a seated player ready or not; the countdown starts once everyone is ready
func (t *Table) SetReady(id model.PlayerID, ready bool) error {
	seat, ok := t.seats.SeatOf(id)
	if !ok {
		return model.ErrNotSeated
	}
	if t.game != nil {
		return model.ErrGameInProgress
	}
	seat.Ready = ready
	t.seatChanged(seat.Number)
	t.maybeCountdown()
	return nil
}

// SetTarget changes the seat the player's attacks go to by default
func (t *Table) SetTarget(id model.PlayerID, target int) error {
	seat, ok := t.seats.SeatOf(id)
	if !ok {
		return model.ErrNotSeated
	}
	if !model.ValidSeat(target) {
		return model.ErrSeatNotFound
	}
	if target == seat.Number {
		return model.ErrInvalidTarget
	}
	seat.Target = target
	t.seatChanged(seat.Number)
	return nil
}

// Start begins the game at the host's request
func (t *Table) Start(id model.PlayerID) error {
	if id != t.info.HostID {
		return model.ErrNotHost
	}
	return t.start()
}

// Post appends a player's chat message
func (t *Table) Post(p model.Player, text string) error {
	if !t.IsMember(p.ID) {
		return model.ErrNotAtTable
	}
	_, err := t.chat.Post(p, model.TableChat, text)
	return err
}

// Notice appends a system notice; it satisfies invitation.Noticer
func (t *Table) Notice(kind model.TableChatKind, vars map[string]string, visibleTo model.PlayerID) chat.Message[model.TableChatKind] {
	return t.chat.Notice(kind, vars, visibleTo)
}

// Shutdown vacates every seat and drops the game before the table is deleted
func (t *Table) Shutdown() {
	t.emitAll(model.EventTableDeleted, model.TableDeletedPayload{RoomID: t.info.RoomID, TableID: t.info.ID})
	if t.game != nil && t.deps.Metrics != nil {
		t.deps.Metrics.ActiveGames.Dec()
	}
	t.game = nil
	t.startAt = nil
	for _, s := range t.seats.Occupied() {
		n := s.Number
		_, _ = t.seats.Unassign(s.Occupant.ID)
		t.persistSeat(n)
	}
	t.seats.VacateAll()
	t.members = nil
}

// Reload merges persisted seat assignments into the live seats
func (t *Table) Reload(assignments []*model.SeatAssignment, lookup func(model.PlayerID) (model.Player, bool)) []int {
	changed := t.seats.Reconcile(assignments, lookup)
	if err := t.verify(); err != nil {
		return changed
	}
	for _, n := range changed {
		t.emitSeat(n)
	}
	if len(changed) > 0 {
		t.cancelCountdown()
	}
	return changed
}

func (t *Table) memberIndex(id model.PlayerID) int {
	for i, m := range t.members {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (t *Table) verify() error {
	if err := t.seats.Verify(); err != nil {
		t.logger.Error("seat mapping disagreement", slog.Any("error", err))
		return err
	}
	return nil
}

func (t *Table) maybeCountdown() {
	occupied := t.seats.Occupied()
	if len(occupied) < 2 {
		t.cancelCountdown()
		return
	}
	for _, s := range occupied {
		if !s.Ready {
			t.cancelCountdown()
			return
		}
	}

	if t.cfg.StartDelay <= 0 {
		if err := t.start(); err != nil {
			t.logger.Warn("auto start failed", slog.Any("error", err))
		}
		return
	}
	at := t.deps.Clock.Now().Add(t.cfg.StartDelay)
	t.startAt = &at
	t.chat.Notice(model.TableSystemAction, map[string]string{
		"action":  "countdown",
		"seconds": strconv.Itoa(int(t.cfg.StartDelay / time.Second)),
	}, "")
}

func (t *Table) cancelCountdown() {
	t.startAt = nil
}

// seatChanged persists and announces seat n
func (t *Table) seatChanged(n int) {
	t.persistSeat(n)
	t.emitSeat(n)
}

func (t *Table) persistSeat(n int) {
	if t.deps.OnSeat == nil {
		return
	}
	a := t.seats.Assignment(n)
	a.UpdatedAt = t.deps.Clock.Now()
	t.deps.OnSeat(a)
}

func (t *Table) onChat(m chat.Message[model.TableChatKind]) {
	if t.deps.OnChat != nil {
		t.deps.OnChat(chat.Record(model.ChatScopeTable, string(t.info.ID), m))
	}

	payload := chat.UpdatedPayload{Scope: model.ChatScopeTable, ScopeID: string(t.info.ID), Message: m.View()}
	if m.VisibleToUserID != "" {
		// Private notices reach their recipient even when they are not at the table
		t.emitTo(m.VisibleToUserID, model.EventChatUpdated, payload)
		return
	}
	for _, p := range t.members {
		if chat.Visible(m, t.viewer(p.ID)) {
			t.emitTo(p.ID, model.EventChatUpdated, payload)
		}
	}
}

func (t *Table) viewer(id model.PlayerID) chat.Viewer {
	if t.deps.Viewers == nil {
		return chat.Viewer{UserID: id}
	}
	return t.deps.Viewers(id)
}

func (t *Table) event(typ model.EventType, payload any) model.Event {
	return model.Event{
		Type:      typ,
		Timestamp: t.deps.Clock.Now(),
		RoomID:    t.info.RoomID,
		TableID:   t.info.ID,
		Payload:   payload,
	}
}

func (t *Table) emitTo(id model.PlayerID, typ model.EventType, payload any) {
	t.outbox = append(t.outbox, Outgoing{To: id, Event: t.event(typ, payload)})
}

func (t *Table) emitAll(typ model.EventType, payload any) {
	for _, p := range t.members {
		t.emitTo(p.ID, typ, payload)
	}
}

func (t *Table) emitTableUpdated() {
	t.emitAll(model.EventTableUpdated, t.Summary())
}

func (t *Table) emitSeat(n int) {
	seat, _ := t.seats.Seat(n)
	payload := model.SeatUpdatedPayload{
		TableID: t.info.ID,
		Seat:    seat.Number,
		Team:    seat.Team,
		Ready:   seat.Ready,
		Target:  seat.Target,
	}
	if seat.Occupied() {
		payload.PlayerID = seat.Occupant.ID
		payload.DisplayName = seat.Occupant.DisplayName
	}
	t.emitAll(model.EventSeatUpdated, payload)
}

// emitBoard sends a seat's board to every member; only the occupant sees the power bar
func (t *Table) emitBoard(seat *Seat) {
	if seat.Game == nil {
		return
	}
	for _, p := range t.members {
		t.emitTo(p.ID, model.EventBoardUpdated, t.boardPayload(seat, p.ID))
	}
}
