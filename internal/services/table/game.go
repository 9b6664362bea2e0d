package table

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mcoot/towers-go/internal/engine/board"
	"github.com/mcoot/towers-go/internal/engine/power"
	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/services/elo"
)

const (
	// HeroCodeLength is the length of the cipher key revealed to a new hero
	HeroCodeLength = 8
	// HeroCodeAlphabet avoids characters that are easy to confuse
	HeroCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// RatingsTimeout bounds the stats reads and writes made while settling a rated game
	RatingsTimeout = 5 * time.Second
)

type participant struct {
	player model.Player
	seat   int
	team   int
}

type elimination struct {
	step int
	seat int
	team int
}

// game is the table-level state of a running game
type game struct {
	startedAt time.Time
	players   []participant
	// multiTeam is false when every player started on one team; seats then compete alone
	multiTeam    bool
	eliminations []elimination
}

// unit is what competes: a team, or a single seat in a one-team game
func (g *game) unit(seat, team int) int {
	if g.multiTeam {
		return team
	}
	return seat
}

func (g *game) name(id model.PlayerID) string {
	for _, p := range g.players {
		if p.player.ID == id {
			return p.player.DisplayName
		}
	}
	return string(id)
}

func (t *Table) start() error {
	if t.game != nil {
		return model.ErrGameInProgress
	}
	occupied := t.seats.Occupied()
	if len(occupied) < 2 {
		return model.ErrNotEnoughPlayers
	}
	for _, s := range occupied {
		if !s.Ready {
			return model.ErrPlayersNotReady
		}
	}

	g := &game{
		startedAt: t.deps.Clock.Now(),
		multiTeam: len(t.seats.Teams()) > 1,
	}
	payload := model.GameStartedPayload{
		TableID: t.info.ID,
		Seats:   make(map[int]model.PlayerID),
		Teams:   make(map[int][]model.PlayerID),
	}
	for _, s := range occupied {
		bar := power.NewBar()
		charger := power.NewCharger(t.deps.Random)
		s.Game = &SeatGame{
			Board:   board.New(t.cfg.Board, bar, charger),
			Next:    board.NewNextPieces(t.deps.Random, t.cfg.Preview),
			Bar:     bar,
			Charger: charger,
		}
		g.players = append(g.players, participant{player: *s.Occupant, seat: s.Number, team: s.Team})
		payload.Seats[s.Number] = s.Occupant.ID
		payload.Teams[s.Team] = append(payload.Teams[s.Team], s.Occupant.ID)
	}

	t.game = g
	t.startAt = nil
	t.step = 0
	if t.deps.Metrics != nil {
		t.deps.Metrics.ActiveGames.Inc()
	}
	t.logger.Info("game started",
		slog.Int("players", len(occupied)),
		slog.Int("teams", len(payload.Teams)))

	t.chat.Notice(model.TableGameStarted, map[string]string{
		"players": strconv.Itoa(len(occupied)),
		"teams":   strconv.Itoa(len(payload.Teams)),
	}, "")
	t.emitAll(model.EventGameStarted, payload)
	for _, s := range occupied {
		t.spawnNext(s)
		t.emitBoard(s)
	}
	return nil
}

// activeSeat returns the player's seat if it is still in the running game
func (t *Table) activeSeat(id model.PlayerID) (*Seat, error) {
	if t.game == nil {
		return nil, model.ErrNoGameInProgress
	}
	seat, ok := t.seats.SeatOf(id)
	if !ok || seat.Game == nil {
		return nil, model.ErrNotSeated
	}
	if seat.Game.Eliminated {
		return nil, model.ErrSeatEliminated
	}
	return seat, nil
}

// Move shifts the player's falling piece sideways; a blocked move is not an error
func (t *Table) Move(id model.PlayerID, dir board.MoveDir) error {
	if dir != board.MoveLeft && dir != board.MoveRight {
		return model.ErrInvalidDirection
	}
	seat, err := t.activeSeat(id)
	if err != nil {
		return err
	}
	if seat.Game.Board.Move(dir) {
		t.emitBoard(seat)
	}
	return nil
}

// Cycle rotates the blocks of the player's falling piece
func (t *Table) Cycle(id model.PlayerID) error {
	seat, err := t.activeSeat(id)
	if err != nil {
		return err
	}
	if seat.Game.Board.Cycle() {
		t.emitBoard(seat)
	}
	return nil
}

// Drop hard-drops the player's falling piece
func (t *Table) Drop(id model.PlayerID) error {
	seat, err := t.activeSeat(id)
	if err != nil {
		return err
	}
	t.step++
	t.afterStep(seat, seat.Game.Board.Drop())
	t.checkEnd()
	return nil
}

// FirePower fires the bar item at index. target 0 picks the default: the seat's target
// for attacks and the firing seat itself for defenses.
func (t *Table) FirePower(id model.PlayerID, index, target int) error {
	seat, err := t.activeSeat(id)
	if err != nil {
		return err
	}
	items := seat.Game.Bar.Items()
	if index < 0 || index >= len(items) {
		return model.ErrPowerIndex
	}
	item := items[index]
	attack := item.Power == board.PowerAttack

	if target == 0 {
		target = seat.Number
		if attack {
			target = seat.Target
		}
	}
	tgt, err := t.seats.Seat(target)
	if err != nil || !tgt.Game.Active() {
		return model.ErrInvalidTarget
	}
	if attack && tgt.Number == seat.Number {
		return model.ErrInvalidTarget
	}
	if !attack && tgt.Team != seat.Team {
		return model.ErrInvalidTarget
	}

	if _, err := seat.Game.Bar.Fire(index); err != nil {
		return err
	}
	t.step++
	res, err := power.Apply(item, power.Target{Board: tgt.Game.Board, Next: tgt.Game.Next, Bar: tgt.Game.Bar}, t.deps.Random)
	if err != nil {
		return err
	}
	t.chat.Notice(model.TableSystemAction, map[string]string{
		"action": "power",
		"seat":   strconv.Itoa(seat.Number),
		"target": strconv.Itoa(tgt.Number),
		"effect": power.Effect(item),
		"level":  item.Level.String(),
	}, "")

	t.settle(tgt, res)
	t.emitBoard(seat)
	if tgt != seat {
		t.emitBoard(tgt)
	}
	t.checkEnd()
	return nil
}

// Tick advances every active seat by one row and starts a pending countdown when due
func (t *Table) Tick() {
	if t.startAt != nil && !t.deps.Clock.Now().Before(*t.startAt) {
		t.startAt = nil
		if err := t.start(); err != nil {
			t.logger.Warn("countdown start failed", slog.Any("error", err))
		}
	}
	if t.game == nil {
		return
	}

	t.step++
	for _, s := range t.seats.Occupied() {
		if !s.Game.Active() {
			continue
		}
		res := s.Game.Board.Tick()
		if res.Moved || res.Committed {
			t.afterStep(s, res)
		}
	}
	t.checkEnd()
}

func (t *Table) afterStep(seat *Seat, res board.StepResult) {
	if res.Committed {
		t.settle(seat, res.Commit)
		t.spawnNext(seat)
	}
	t.emitBoard(seat)
}

// settle applies landed diamonds and eliminates the seat if its board topped out
func (t *Table) settle(seat *Seat, res board.CommitResult) {
	for _, sp := range res.Specials {
		t.applySpecial(seat, sp)
	}
	if seat.Game.Active() && seat.Game.Board.IsOver() {
		t.eliminate(seat, "topped out")
	}
}

func (t *Table) applySpecial(seat *Seat, sp board.Special) {
	t.chat.Notice(model.TableSystemAction, map[string]string{
		"action":  "special",
		"special": sp.String(),
		"seat":    strconv.Itoa(seat.Number),
	}, "")

	switch sp {
	case board.SpecialSpeedDrop:
		for _, o := range t.opponents(seat) {
			res := o.Game.Board.Drop()
			if res.Committed {
				t.afterStep(o, res)
			}
		}
	case board.SpecialRemovePowers:
		for _, o := range t.opponents(seat) {
			o.Game.Board.Mutate(func(g board.Grid) (board.Grid, bool) {
				return power.StripPowers(g), false
			})
			o.Game.Bar.Clear()
			if o.Game.Board.IsOver() {
				t.eliminate(o, "topped out")
			}
			t.emitBoard(o)
		}
	case board.SpecialRemoveStones:
		seat.Game.Board.Mutate(func(g board.Grid) (board.Grid, bool) {
			return power.RemoveStones(g), false
		})
	}
}

// opponents returns the active seats competing against seat
func (t *Table) opponents(seat *Seat) []*Seat {
	var out []*Seat
	for _, s := range t.seats.Occupied() {
		if s == seat || !s.Game.Active() {
			continue
		}
		if t.game.multiTeam && s.Team == seat.Team {
			continue
		}
		out = append(out, s)
	}
	return out
}

// spawnNext brings in the seat's next piece, queueing an earned diamond first
func (t *Table) spawnNext(seat *Seat) {
	g := seat.Game
	if !g.Active() {
		return
	}
	if _, _, falling := g.Board.Piece(); falling {
		return
	}
	if sp, ok := g.Charger.TakeDiamond(); ok {
		g.Next.PushFront(board.DiamondPiece(g.Next.RandomLetter(), g.Next.RandomLetter(), sp))
	}
	if err := g.Board.Spawn(g.Next.Pop()); err != nil {
		t.eliminate(seat, "topped out")
	}
}

func (t *Table) eliminate(seat *Seat, reason string) {
	g := seat.Game
	if !g.Active() {
		return
	}
	g.Eliminated = true
	g.EliminatedStep = t.step
	t.game.eliminations = append(t.game.eliminations, elimination{step: t.step, seat: seat.Number, team: seat.Team})

	name := ""
	if seat.Occupied() {
		name = seat.Occupant.DisplayName
	}
	t.logger.Info("seat eliminated", slog.Int("seat", seat.Number), slog.String("reason", reason))
	t.chat.Notice(model.TableSystemAction, map[string]string{
		"action": "eliminated",
		"seat":   strconv.Itoa(seat.Number),
		"player": name,
		"reason": reason,
	}, "")
	t.emitBoard(seat)
}

// checkEnd finishes the game once at most one competitor is still playing
func (t *Table) checkEnd() {
	if t.game == nil {
		return
	}
	alive := make(map[int]bool)
	for _, s := range t.seats.All() {
		if s.Game.Active() {
			alive[t.game.unit(s.Number, s.Team)] = true
		}
	}
	if len(alive) > 1 {
		return
	}

	winners := alive
	if len(winners) == 0 {
		// Everyone topped out together; the last to go down win
		last := -1
		for _, e := range t.game.eliminations {
			if e.step > last {
				last = e.step
			}
		}
		for _, e := range t.game.eliminations {
			if e.step == last {
				winners[t.game.unit(e.seat, e.team)] = true
			}
		}
	}
	t.finish(winners)
}

func (t *Table) finish(winningUnits map[int]bool) {
	g := t.game
	won := make(map[model.PlayerID]bool)
	teams := make(map[int]bool)
	payload := model.GameOverPayload{TableID: t.info.ID}
	var names []string
	for _, p := range g.players {
		if !winningUnits[g.unit(p.seat, p.team)] {
			continue
		}
		won[p.player.ID] = true
		payload.Winners = append(payload.Winners, p.player.ID)
		names = append(names, p.player.DisplayName)
		if !teams[p.team] {
			teams[p.team] = true
			payload.WinningTeams = append(payload.WinningTeams, p.team)
		}
	}
	sort.Ints(payload.WinningTeams)

	if t.info.Rated && g.multiTeam && t.deps.Ratings != nil {
		changes, err := t.settleRatings(won)
		if err != nil {
			t.logger.Error("failed to settle ratings, finishing unrated", slog.Any("error", err))
		} else {
			payload.Rated = true
			payload.RatingChanges = changes
		}
	}

	t.chat.Notice(model.TableGameOver, map[string]string{"winners": strings.Join(names, ", ")}, "")
	t.emitAll(model.EventGameOver, payload)
	t.logger.Info("game over",
		slog.Any("winning_teams", payload.WinningTeams),
		slog.Bool("rated", payload.Rated),
		slog.Duration("duration", t.deps.Clock.Now().Sub(g.startedAt)))

	t.game = nil
	if t.deps.Metrics != nil {
		t.deps.Metrics.ActiveGames.Dec()
		t.deps.Metrics.GamesFinished.WithLabelValues(strconv.FormatBool(payload.Rated)).Inc()
	}
	for _, s := range t.seats.All() {
		s.Game = nil
		if s.Occupied() {
			s.Ready = false
			t.emitSeat(s.Number)
		}
	}
}

// settleRatings runs Elo over the teams that started the game and records each result
func (t *Table) settleRatings(won map[model.PlayerID]bool) ([]model.RatingChange, error) {
	g := t.game
	ctx, cancel := context.WithTimeout(context.Background(), RatingsTimeout)
	defer cancel()

	byTeam := make(map[int]*elo.Team)
	var order []int
	for _, p := range g.players {
		team, ok := byTeam[p.team]
		if !ok {
			team = &elo.Team{Number: p.team}
			byTeam[p.team] = team
			order = append(order, p.team)
		}
		rating, err := t.deps.Ratings.Rating(ctx, p.player.ID)
		if err != nil {
			return nil, fmt.Errorf("rating of %s: %w", p.player.ID, err)
		}
		team.Members = append(team.Members, elo.Member{PlayerID: p.player.ID, Rating: rating})
	}
	sort.Ints(order)
	teams := make([]elo.Team, 0, len(order))
	for _, n := range order {
		teams = append(teams, *byTeam[n])
	}

	changes, err := elo.Compute(teams, won)
	if err != nil {
		return nil, err
	}

	for _, c := range changes {
		wasHero := t.deps.Ratings.IsHeroEligible(c.PlayerID)
		if _, err := t.deps.Ratings.ApplyResult(ctx, c.PlayerID, won[c.PlayerID], c.NewRating); err != nil {
			t.logger.Error("failed to record game result",
				slog.String("player_id", string(c.PlayerID)),
				slog.Any("error", err))
			continue
		}

		name := g.name(c.PlayerID)
		t.chat.Notice(model.TableRatingChange, map[string]string{
			"player": name,
			"old":    strconv.Itoa(c.OldRating),
			"new":    strconv.Itoa(c.NewRating),
			"delta":  strconv.Itoa(c.Delta),
		}, "")
		if !wasHero && t.deps.Ratings.IsHeroEligible(c.PlayerID) {
			t.chat.Notice(model.TableHeroMessage, map[string]string{"player": name}, "")
			t.chat.Notice(model.TableCipherKey, map[string]string{
				"code": t.deps.Random.String(HeroCodeLength, HeroCodeAlphabet),
			}, c.PlayerID)
		}
	}
	return changes, nil
}
