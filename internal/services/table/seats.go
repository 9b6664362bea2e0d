package table

import (
	"fmt"

	"github.com/mcoot/towers-go/internal/engine/board"
	"github.com/mcoot/towers-go/internal/engine/power"
	"github.com/mcoot/towers-go/internal/model"
)

// SeatGame is the state a seat owns while a game is running
type SeatGame struct {
	Board   *board.Board
	Next    *board.NextPieces
	Bar     *power.Bar
	Charger *power.Charger

	Eliminated bool
	// EliminatedStep is the table step at which the seat topped out
	EliminatedStep int
}

// Active reports whether the seat is still playing
func (g *SeatGame) Active() bool {
	return g != nil && !g.Eliminated
}

// Seat is one of the eight places at a table
type Seat struct {
	Number   int
	Team     int
	Target   int
	Occupant *model.Player
	Ready    bool
	Game     *SeatGame
}

// Occupied reports whether a player sits here
func (s *Seat) Occupied() bool {
	return s.Occupant != nil
}

func (s *Seat) vacate() {
	s.Occupant = nil
	s.Ready = false
	s.Game = nil
	s.Target = model.DefaultTargetSeat(s.Number)
}

// SeatManager is the only writer of both seat->player and player->seat mappings
type SeatManager struct {
	tableID  model.TableID
	seats    [model.NumSeats]*Seat
	byPlayer map[model.PlayerID]int
}

// NewSeatManager creates eight vacant seats
func NewSeatManager(tableID model.TableID) *SeatManager {
	m := &SeatManager{tableID: tableID, byPlayer: make(map[model.PlayerID]int)}
	for i := range m.seats {
		n := i + 1
		m.seats[i] = &Seat{Number: n, Team: model.TeamForSeat(n), Target: model.DefaultTargetSeat(n)}
	}
	return m
}

// Seat returns seat n
func (m *SeatManager) Seat(n int) (*Seat, error) {
	if !model.ValidSeat(n) {
		return nil, model.ErrSeatNotFound
	}
	return m.seats[n-1], nil
}

// All returns every seat in number order
func (m *SeatManager) All() []*Seat {
	return m.seats[:]
}

// Occupied returns the occupied seats in number order
func (m *SeatManager) Occupied() []*Seat {
	var out []*Seat
	for _, s := range m.seats {
		if s.Occupied() {
			out = append(out, s)
		}
	}
	return out
}

// SeatOf returns the seat held by a player
func (m *SeatManager) SeatOf(id model.PlayerID) (*Seat, bool) {
	n, ok := m.byPlayer[id]
	if !ok {
		return nil, false
	}
	return m.seats[n-1], true
}

// Assign seats p at seat n. A player holds at most one seat, so any seat they already
// hold is vacated first. It returns the previously held seat number, or 0.
func (m *SeatManager) Assign(p model.Player, n int) (int, error) {
	seat, err := m.Seat(n)
	if err != nil {
		return 0, err
	}
	if seat.Occupied() {
		if seat.Occupant.ID == p.ID {
			return n, nil
		}
		return 0, model.ErrSeatTaken
	}

	previous := 0
	if old, ok := m.byPlayer[p.ID]; ok {
		m.seats[old-1].vacate()
		previous = old
	}

	occupant := p
	seat.Occupant = &occupant
	seat.Ready = false
	m.byPlayer[p.ID] = n
	return previous, nil
}

// Unassign vacates the player's seat and returns its number
func (m *SeatManager) Unassign(id model.PlayerID) (int, error) {
	n, ok := m.byPlayer[id]
	if !ok {
		return 0, model.ErrNotSeated
	}
	m.seats[n-1].vacate()
	delete(m.byPlayer, id)
	return n, nil
}

// VacateAll clears every seat, dropping any game objects
func (m *SeatManager) VacateAll() {
	for _, s := range m.seats {
		s.vacate()
	}
	m.byPlayer = make(map[model.PlayerID]int)
}

// Teams returns the distinct teams with at least one occupant
func (m *SeatManager) Teams() []int {
	seen := make(map[int]bool)
	var teams []int
	for _, s := range m.seats {
		if s.Occupied() && !seen[s.Team] {
			seen[s.Team] = true
			teams = append(teams, s.Team)
		}
	}
	return teams
}

// Verify checks that both directions of the mapping agree
func (m *SeatManager) Verify() error {
	for id, n := range m.byPlayer {
		seat := m.seats[n-1]
		if !seat.Occupied() || seat.Occupant.ID != id {
			occupant := model.PlayerID("")
			if seat.Occupied() {
				occupant = seat.Occupant.ID
			}
			return fmt.Errorf("table %s: player %s maps to seat %d held by %q: %w",
				m.tableID, id, n, occupant, model.ErrInvariantViolation)
		}
	}
	for _, seat := range m.seats {
		if !seat.Occupied() {
			continue
		}
		if n, ok := m.byPlayer[seat.Occupant.ID]; !ok || n != seat.Number {
			return fmt.Errorf("table %s: seat %d held by %s who maps to seat %d: %w",
				m.tableID, seat.Number, seat.Occupant.ID, n, model.ErrInvariantViolation)
		}
	}
	return nil
}

// Assignment returns the persisted form of seat n
func (m *SeatManager) Assignment(n int) model.SeatAssignment {
	a := model.SeatAssignment{TableID: m.tableID, SeatNumber: n}
	if seat := m.seats[n-1]; seat.Occupied() {
		a.PlayerID = seat.Occupant.ID
	}
	return a
}

// Reconcile merges persisted assignments into the live seats one seat at a time.
// Seats with a running game are left alone. lookup resolves a persisted player id;
// unknown players leave the seat untouched. It returns the seat numbers that changed.
func (m *SeatManager) Reconcile(assignments []*model.SeatAssignment, lookup func(model.PlayerID) (model.Player, bool)) []int {
	var changed []int
	for _, a := range assignments {
		seat, err := m.Seat(a.SeatNumber)
		if err != nil || seat.Game != nil {
			continue
		}

		current := model.PlayerID("")
		if seat.Occupied() {
			current = seat.Occupant.ID
		}
		if current == a.PlayerID {
			continue
		}

		if a.PlayerID == "" {
			_, _ = m.Unassign(current)
			changed = append(changed, a.SeatNumber)
			continue
		}

		p, ok := lookup(a.PlayerID)
		if !ok {
			continue
		}
		if held, ok := m.SeatOf(p.ID); ok && held.Game != nil {
			continue
		}
		if current != "" {
			_, _ = m.Unassign(current)
		}
		previous, err := m.Assign(p, a.SeatNumber)
		if err != nil {
			continue
		}
		if previous != 0 && previous != a.SeatNumber {
			changed = append(changed, previous)
		}
		changed = append(changed, a.SeatNumber)
	}
	return changed
}
