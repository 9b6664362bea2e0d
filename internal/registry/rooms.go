package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/services/chat"
	"github.com/mcoot/towers-go/internal/services/table"
)

type room struct {
	info    model.Room
	chat    *chat.Log[model.RoomChatKind]
	members map[model.PlayerID]bool
}

// RoomSummary describes a room in listings
type RoomSummary struct {
	ID          model.RoomID `json:"id"`
	Name        string       `json:"name"`
	MaxTables   int          `json:"max_tables"`
	TableCount  int          `json:"table_count"`
	MemberCount int          `json:"member_count"`
}

// RoomView is the state a player receives on entering a room
type RoomView struct {
	RoomSummary
	Tables  []table.Summary    `json:"tables"`
	Members []table.MemberView `json:"members"`
	Chat    []chat.MessageView `json:"chat"`
}

func (r *Registry) newRoom(info model.Room) *room {
	rm := &room{
		info:    info,
		chat:    chat.NewLog[model.RoomChatKind](r.deps.Clock, r.cfg.ChatHistory),
		members: make(map[model.PlayerID]bool),
	}
	rm.chat.OnAppend(func(m chat.Message[model.RoomChatKind]) { r.onRoomChat(info.ID, m) })
	return rm
}

func (r *Registry) restoreRoomChat(ctx context.Context, id model.RoomID) error {
	recs, err := r.deps.Storage.ListChatMessages(ctx, model.ChatScopeRoom, string(id), r.cfg.ChatHistory)
	if err != nil {
		return fmt.Errorf("load chat for room %s: %w", id, err)
	}
	msgs := make([]chat.Message[model.RoomChatKind], len(recs))
	for i, rec := range recs {
		msgs[i] = chat.FromRecord[model.RoomChatKind](rec)
	}

	r.mu.RLock()
	rm, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok {
		return model.ErrRoomNotFound
	}
	rm.chat.Restore(msgs)
	return nil
}

// onRoomChat persists a room message and fans it out to the members allowed to see it
func (r *Registry) onRoomChat(id model.RoomID, m chat.Message[model.RoomChatKind]) {
	rec := chat.Record(model.ChatScopeRoom, string(id), m)
	r.enqueue("chat.room", func(ctx context.Context) error {
		return r.deps.Storage.AppendChatMessage(ctx, rec)
	})

	e := r.event(model.EventChatUpdated, id, "", chat.UpdatedPayload{
		Scope:   model.ChatScopeRoom,
		ScopeID: string(id),
		Message: m.View(),
	})
	if m.VisibleToUserID != "" {
		r.Publish(m.VisibleToUserID, e)
		return
	}
	for _, member := range r.roomMembers(id) {
		if chat.Visible(m, r.mutes.Viewer(member)) {
			r.Publish(member, e)
		}
	}
}

// Rooms lists the configured rooms
func (r *Registry) Rooms() []RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomSummary, 0, len(r.rooms))
	for _, info := range r.cfg.Rooms {
		out = append(out, r.summaryLocked(r.rooms[info.ID]))
	}
	return out
}

func (r *Registry) summaryLocked(rm *room) RoomSummary {
	n := 0
	for _, e := range r.tables {
		if e.roomID == rm.info.ID {
			n++
		}
	}
	return RoomSummary{
		ID:          rm.info.ID,
		Name:        rm.info.Name,
		MaxTables:   rm.info.MaxTables,
		TableCount:  n,
		MemberCount: len(rm.members),
	}
}

// JoinRoom subscribes a player to a room and returns what they see on entering
func (r *Registry) JoinRoom(ctx context.Context, id model.RoomID, p model.Player) (RoomView, error) {
	r.mu.Lock()
	rm, ok := r.rooms[id]
	if !ok {
		r.mu.Unlock()
		return RoomView{}, model.ErrRoomNotFound
	}
	r.playerLocked(p)
	rm.members[p.ID] = true
	r.mu.Unlock()

	tables, err := r.ListTables(ctx, id)
	if err != nil {
		return RoomView{}, err
	}

	r.mu.RLock()
	view := RoomView{RoomSummary: r.summaryLocked(rm), Tables: tables}
	for _, mid := range sortedIDs(rm.members) {
		if e, ok := r.players[mid]; ok {
			view.Members = append(view.Members, table.MemberView{ID: mid, DisplayName: e.player.DisplayName})
		}
	}
	r.mu.RUnlock()
	view.Chat = rm.chat.ToPlainObject(r.mutes.Viewer(p.ID))
	return view, nil
}

// LeaveRoom unsubscribes a player from a room
func (r *Registry) LeaveRoom(id model.RoomID, player model.PlayerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[id]
	if !ok {
		return model.ErrRoomNotFound
	}
	if !rm.members[player] {
		return model.ErrNotInRoom
	}
	delete(rm.members, player)
	return nil
}

// PostRoomChat appends a member's message to the room log
func (r *Registry) PostRoomChat(id model.RoomID, p model.Player, text string) error {
	rm, err := r.roomFor(id, p.ID)
	if err != nil {
		return err
	}
	_, err = rm.chat.Post(p, model.RoomChat, text)
	return err
}

// RoomChat returns the room log as the player sees it
func (r *Registry) RoomChat(id model.RoomID, viewer model.PlayerID) ([]chat.MessageView, error) {
	r.mu.RLock()
	rm, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return rm.chat.ToPlainObject(r.mutes.Viewer(viewer)), nil
}

func (r *Registry) roomFor(id model.RoomID, member model.PlayerID) (*room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	if !rm.members[member] {
		return nil, model.ErrNotInRoom
	}
	return rm, nil
}

func (r *Registry) roomMembers(id model.RoomID) []model.PlayerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[id]
	if !ok {
		return nil
	}
	return sortedIDs(rm.members)
}

// publishRoom sends an event to every member of a room
func (r *Registry) publishRoom(id model.RoomID, e model.Event) {
	for _, member := range r.roomMembers(id) {
		r.Publish(member, e)
	}
}

// Mute hides author's future messages from viewer. When a room is given the viewer
// gets a private notice there.
func (r *Registry) Mute(viewer model.Player, author model.PlayerID, roomID model.RoomID) (bool, error) {
	if author == viewer.ID {
		return false, model.ErrInvalidTarget
	}
	changed := r.mutes.Mute(viewer.ID, author)
	if changed {
		r.moderationNotice(viewer, author, roomID, "muted")
	}
	return changed, nil
}

// Unmute reveals author's future messages to viewer again
func (r *Registry) Unmute(viewer model.Player, author model.PlayerID, roomID model.RoomID) (bool, error) {
	if author == viewer.ID {
		return false, model.ErrInvalidTarget
	}
	changed := r.mutes.Unmute(viewer.ID, author)
	if changed {
		r.moderationNotice(viewer, author, roomID, "unmuted")
	}
	return changed, nil
}

func (r *Registry) moderationNotice(viewer model.Player, author model.PlayerID, roomID model.RoomID, action string) {
	if roomID == "" {
		return
	}
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	name := string(author)
	if p, ok := r.Player(author); ok {
		name = p.DisplayName
	}
	rm.chat.Notice(model.RoomModerationNotice, map[string]string{"action": action, "player": name}, viewer.ID)
}

func sortSummaries(s []table.Summary) {
	sort.Slice(s, func(i, j int) bool { return s[i].Number < s[j].Number })
}
