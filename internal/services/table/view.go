package table

import (
	"github.com/mcoot/towers-go/internal/engine/board"
	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/services/chat"
)

// Summary is the lobby listing of a table
type Summary struct {
	ID      model.TableID   `json:"id"`
	RoomID  model.RoomID    `json:"room_id"`
	Number  int             `json:"number"`
	HostID  model.PlayerID  `json:"host_id"`
	Type    model.TableType `json:"type"`
	Rated   bool            `json:"rated"`
	Playing bool            `json:"playing"`
	Seated  int             `json:"seated"`
	Members int             `json:"members"`
}

// BoardPayload is the payload of a board.updated event
type BoardPayload struct {
	TableID    model.TableID       `json:"table_id"`
	Seat       int                 `json:"seat"`
	Board      board.View          `json:"board"`
	Next       [][]board.BlockView `json:"next"`
	Bar        []board.BlockView   `json:"bar,omitempty"`
	Eliminated bool                `json:"eliminated"`
}

// SeatView is one seat as a particular viewer sees it
type SeatView struct {
	Number      int            `json:"number"`
	Team        int            `json:"team"`
	Target      int            `json:"target"`
	PlayerID    model.PlayerID `json:"player_id,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	Ready       bool           `json:"ready"`
	Board       *BoardPayload  `json:"board,omitempty"`
}

// MemberView is a player at the table
type MemberView struct {
	ID          model.PlayerID `json:"id"`
	DisplayName string         `json:"display_name"`
}

// View is the full state of a table sent to a member when they join or reconnect
type View struct {
	Summary
	Seats   []SeatView         `json:"seats"`
	Members []MemberView       `json:"members"`
	Chat    []chat.MessageView `json:"chat"`
}

// Summary returns the lobby listing of the table
func (t *Table) Summary() Summary {
	return Summary{
		ID:      t.info.ID,
		RoomID:  t.info.RoomID,
		Number:  t.info.Number,
		HostID:  t.info.HostID,
		Type:    t.info.Type,
		Rated:   t.info.Rated,
		Playing: t.game != nil,
		Seated:  len(t.seats.Occupied()),
		Members: len(t.members),
	}
}

// View projects the table for one viewer. Power bars and private chat are only
// included for the viewer they belong to.
func (t *Table) View(viewer model.PlayerID) View {
	v := View{
		Summary: t.Summary(),
		Chat:    t.chat.ToPlainObject(t.viewer(viewer)),
	}
	for _, s := range t.seats.All() {
		sv := SeatView{Number: s.Number, Team: s.Team, Target: s.Target, Ready: s.Ready}
		if s.Occupied() {
			sv.PlayerID = s.Occupant.ID
			sv.DisplayName = s.Occupant.DisplayName
		}
		if s.Game != nil {
			p := t.boardPayload(s, viewer)
			sv.Board = &p
		}
		v.Seats = append(v.Seats, sv)
	}
	for _, m := range t.members {
		v.Members = append(v.Members, MemberView{ID: m.ID, DisplayName: m.DisplayName})
	}
	return v
}

func (t *Table) boardPayload(seat *Seat, viewer model.PlayerID) BoardPayload {
	g := seat.Game
	p := BoardPayload{
		TableID:    t.info.ID,
		Seat:       seat.Number,
		Board:      g.Board.View(),
		Eliminated: g.Eliminated,
	}
	for _, piece := range g.Next.Peek() {
		p.Next = append(p.Next, board.PieceBlocks(piece))
	}
	if seat.Occupied() && seat.Occupant.ID == viewer {
		p.Bar = g.Bar.View()
	}
	return p
}
