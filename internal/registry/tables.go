package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/services/chat"
	"github.com/mcoot/towers-go/internal/services/table"
)

// runtime returns the live runtime of a table
func (r *Registry) runtime(id model.TableID) (*table.Runtime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tables[id]
	if !ok {
		return nil, false
	}
	return e.runtime, true
}

// withTable runs fn on the table's runtime
func (r *Registry) withTable(ctx context.Context, id model.TableID, fn func(*table.Table) error) error {
	rt, ok := r.runtime(id)
	if !ok {
		return model.ErrTableNotFound
	}
	return rt.Do(ctx, fn)
}

func (r *Registry) newRuntime(info model.TableInfo) *table.Runtime {
	t := table.New(info, r.cfg.Table, table.Deps{
		Clock:   r.deps.Clock,
		Random:  r.deps.Random,
		Ratings: r.deps.Stats,
		Viewers: r.mutes.Viewer,
		OnSeat:  r.persistSeat,
		OnChat:  r.persistTableChat,
		Metrics: r.deps.Metrics,
		Logger:  r.deps.Logger,
	})
	return table.NewRuntime(t, r, r.cfg.TickInterval)
}

func (r *Registry) persistSeat(a model.SeatAssignment) {
	r.enqueue("seat", func(ctx context.Context) error {
		return r.deps.Storage.UpsertSeat(ctx, &a)
	})
}

func (r *Registry) persistTableChat(rec *model.ChatRecord) {
	r.enqueue("chat.table", func(ctx context.Context) error {
		return r.deps.Storage.AppendChatMessage(ctx, rec)
	})
}

// GetOrCreateTable returns the table's runtime, loading the table with its seats and chat
// from storage when it is not yet in memory
func (r *Registry) GetOrCreateTable(ctx context.Context, id model.TableID) (*table.Runtime, error) {
	if rt, ok := r.runtime(id); ok {
		return rt, nil
	}

	info, err := r.deps.Storage.GetTable(ctx, id)
	if err != nil {
		return nil, err
	}
	seats, err := r.deps.Storage.GetSeats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load seats for %s: %w", id, err)
	}
	recs, err := r.deps.Storage.ListChatMessages(ctx, model.ChatScopeTable, string(id), r.cfg.ChatHistory)
	if err != nil {
		return nil, fmt.Errorf("load chat for %s: %w", id, err)
	}
	players := r.resolvePlayers(ctx, seats)

	r.mu.Lock()
	// Another request may have loaded the table while storage was read
	if e, ok := r.tables[id]; ok {
		r.mu.Unlock()
		return e.runtime, nil
	}
	if _, ok := r.rooms[info.RoomID]; !ok {
		r.mu.Unlock()
		return nil, model.ErrRoomNotFound
	}
	rt := r.newRuntime(*info)
	r.tables[id] = &tableEntry{roomID: info.RoomID, runtime: rt}
	r.mu.Unlock()

	go rt.Run()
	r.deps.Metrics.ActiveTables.Inc()

	msgs := make([]chat.Message[model.TableChatKind], len(recs))
	for i, rec := range recs {
		msgs[i] = chat.FromRecord[model.TableChatKind](rec)
	}
	err = rt.Do(ctx, func(t *table.Table) error {
		t.Chat().Restore(msgs)
		t.Reload(seats, lookupIn(players))
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("table loaded", slog.String("table_id", string(id)), slog.Int("seats", len(seats)))
	return rt, nil
}

// resolvePlayers finds the players named by seat assignments, in memory first and then in storage
func (r *Registry) resolvePlayers(ctx context.Context, seats []*model.SeatAssignment) map[model.PlayerID]model.Player {
	out := make(map[model.PlayerID]model.Player)
	for _, a := range seats {
		if a.PlayerID == "" {
			continue
		}
		if _, ok := out[a.PlayerID]; ok {
			continue
		}
		if p, ok := r.Player(a.PlayerID); ok {
			out[a.PlayerID] = p
			continue
		}
		p, err := r.deps.Storage.GetPlayer(ctx, a.PlayerID)
		if err != nil {
			r.logger.Warn("seated player not found",
				slog.String("table_id", string(a.TableID)),
				slog.String("player_id", string(a.PlayerID)),
				slog.Any("error", err))
			continue
		}
		out[a.PlayerID] = r.GetOrCreatePlayer(*p)
	}
	return out
}

func lookupIn(players map[model.PlayerID]model.Player) func(model.PlayerID) (model.Player, bool) {
	return func(id model.PlayerID) (model.Player, bool) {
		p, ok := players[id]
		return p, ok
	}
}

// ReloadTable re-reads a table's seats from storage and merges them into the live table.
// It returns the seat numbers that changed.
func (r *Registry) ReloadTable(ctx context.Context, id model.TableID) ([]int, error) {
	if _, ok := r.runtime(id); !ok {
		if _, err := r.GetOrCreateTable(ctx, id); err != nil {
			return nil, err
		}
		// A fresh load already merged the persisted seats
		return nil, nil
	}

	seats, err := r.deps.Storage.GetSeats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load seats for %s: %w", id, err)
	}
	players := r.resolvePlayers(ctx, seats)

	var changed []int
	err = r.withTable(ctx, id, func(t *table.Table) error {
		changed = t.Reload(seats, lookupIn(players))
		return nil
	})
	return changed, err
}

// CreateTable opens a table under the room's lowest free number with the host already at it
func (r *Registry) CreateTable(ctx context.Context, roomID model.RoomID, host model.Player, typ model.TableType, rated bool) (table.View, error) {
	if !typ.Valid() {
		return table.View{}, model.ErrInvalidTableType
	}

	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return table.View{}, model.ErrRoomNotFound
	}
	number := r.freeNumberLocked(rm.info)
	if number == 0 {
		r.mu.Unlock()
		return table.View{}, model.ErrRoomFull
	}
	id := model.NewTableID(roomID, number)
	r.reserved[id] = true
	r.playerLocked(host)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.reserved, id)
		r.mu.Unlock()
	}()

	now := r.deps.Clock.Now()
	info := &model.TableInfo{
		ID:        id,
		RoomID:    roomID,
		Number:    number,
		HostID:    host.ID,
		Type:      typ,
		Rated:     rated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// A deleted table with the same number may still have its removal queued
	if err := r.deps.Persister.Flush(ctx); err != nil {
		return table.View{}, fmt.Errorf("flush before creating %s: %w", id, err)
	}
	if err := r.deps.Storage.SaveTable(ctx, info); err != nil {
		return table.View{}, fmt.Errorf("save table %s: %w", id, err)
	}
	rt, err := r.GetOrCreateTable(ctx, id)
	if err != nil {
		return table.View{}, err
	}

	var view table.View
	var summary table.Summary
	err = rt.Do(ctx, func(t *table.Table) error {
		if err := t.Join(host); err != nil {
			return err
		}
		view = t.View(host.ID)
		summary = t.Summary()
		return nil
	})
	if err != nil {
		return table.View{}, err
	}

	r.logger.Info("table created",
		slog.String("table_id", string(id)),
		slog.String("host_id", string(host.ID)),
		slog.String("type", string(typ)))
	r.publishRoom(roomID, r.event(model.EventTableUpdated, roomID, id, summary))
	return view, nil
}

// freeNumberLocked returns the lowest unused table number, or 0 when the room is full
func (r *Registry) freeNumberLocked(info model.Room) int {
	for n := 1; info.MaxTables <= 0 || n <= info.MaxTables; n++ {
		id := model.NewTableID(info.ID, n)
		if _, used := r.tables[id]; used {
			continue
		}
		if r.reserved[id] {
			continue
		}
		return n
	}
	return 0
}

// JoinTable adds a player to a table and returns the table as they see it
func (r *Registry) JoinTable(ctx context.Context, id model.TableID, p model.Player) (table.View, error) {
	rt, err := r.GetOrCreateTable(ctx, id)
	if err != nil {
		return table.View{}, err
	}
	r.GetOrCreatePlayer(p)

	var view table.View
	err = rt.Do(ctx, func(t *table.Table) error {
		if err := t.Join(p); err != nil {
			return err
		}
		view = t.View(p.ID)
		return nil
	})
	return view, err
}

// LeaveTable removes a player from a table, deleting the table once nobody is left
func (r *Registry) LeaveTable(ctx context.Context, id model.TableID, player model.PlayerID) error {
	rt, ok := r.runtime(id)
	if !ok {
		return model.ErrTableNotFound
	}

	var empty bool
	err := rt.Do(ctx, func(t *table.Table) error {
		var err error
		empty, err = t.Leave(player)
		return err
	})
	if err != nil || !empty {
		return err
	}
	return r.deleteIfEmpty(ctx, id, rt)
}

// deleteIfEmpty removes the table from the registry from inside its runtime, so no command
// can slip in between the emptiness check and the removal
func (r *Registry) deleteIfEmpty(ctx context.Context, id model.TableID, rt *table.Runtime) error {
	var roomID model.RoomID
	err := rt.Do(ctx, func(t *table.Table) error {
		roomID = t.Info().RoomID
		if len(t.Members()) > 0 {
			return model.ErrStaleState
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if e, ok := r.tables[id]; ok && e.runtime == rt {
			delete(r.tables, id)
			return nil
		}
		return model.ErrStaleState
	})
	if errors.Is(err, model.ErrStaleState) {
		r.logger.Debug("table no longer empty, keeping it", slog.String("table_id", string(id)))
		return nil
	}
	if err != nil {
		return err
	}
	r.finishDelete(id, roomID, rt)
	return nil
}

// DeleteTable shuts a table down, vacating its seats and removing it from storage
func (r *Registry) DeleteTable(ctx context.Context, id model.TableID) error {
	r.mu.Lock()
	e, ok := r.tables[id]
	if ok {
		delete(r.tables, id)
	}
	r.mu.Unlock()
	if !ok {
		return model.ErrTableNotFound
	}
	r.finishDelete(id, e.roomID, e.runtime)
	return nil
}

func (r *Registry) finishDelete(id model.TableID, roomID model.RoomID, rt *table.Runtime) {
	rt.Close()
	r.deps.Metrics.ActiveTables.Dec()
	r.invites.DropTable(id)
	r.enqueue("table.delete", func(ctx context.Context) error {
		return r.deps.Storage.DeleteTable(ctx, id)
	})
	r.publishRoom(roomID, r.event(model.EventTableDeleted, roomID, id,
		model.TableDeletedPayload{RoomID: roomID, TableID: id}))
	r.logger.Info("table deleted", slog.String("table_id", string(id)))
}

// ListTables returns the listings of every table in a room, ordered by number
func (r *Registry) ListTables(ctx context.Context, roomID model.RoomID) ([]table.Summary, error) {
	r.mu.RLock()
	if _, ok := r.rooms[roomID]; !ok {
		r.mu.RUnlock()
		return nil, model.ErrRoomNotFound
	}
	var runtimes []*table.Runtime
	for _, e := range r.tables {
		if e.roomID == roomID {
			runtimes = append(runtimes, e.runtime)
		}
	}
	r.mu.RUnlock()

	out := make([]table.Summary, 0, len(runtimes))
	for _, rt := range runtimes {
		err := rt.Do(ctx, func(t *table.Table) error {
			out = append(out, t.Summary())
			return nil
		})
		if errors.Is(err, model.ErrTableNotFound) {
			// deleted while listing
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	sortSummaries(out)
	return out, nil
}

// TableView returns a table as one viewer sees it. Private tables are hidden from
// players who could not join them.
func (r *Registry) TableView(ctx context.Context, id model.TableID, viewer model.PlayerID) (table.View, error) {
	var view table.View
	err := r.withTable(ctx, id, func(t *table.Table) error {
		if !t.CanJoin(viewer) && !t.IsMember(viewer) {
			return model.ErrAccessDenied
		}
		view = t.View(viewer)
		return nil
	})
	return view, err
}
