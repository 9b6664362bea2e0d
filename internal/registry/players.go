package registry

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/protocol"
)

// GetOrCreatePlayer registers p if it is unknown and returns the live record
func (r *Registry) GetOrCreatePlayer(p model.Player) model.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playerLocked(p).player
}

func (r *Registry) playerLocked(p model.Player) *playerEntry {
	e, ok := r.players[p.ID]
	if !ok {
		e = &playerEntry{player: p, conns: make(map[string]Conn)}
		r.players[p.ID] = e
	}
	return e
}

// Player returns a known player
func (r *Registry) Player(id model.PlayerID) (model.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.players[id]
	if !ok {
		return model.Player{}, false
	}
	return e.player, true
}

// PlayerStats returns the stats of a player known in memory or in storage
func (r *Registry) PlayerStats(ctx context.Context, id model.PlayerID) (*model.PlayerStats, error) {
	if _, ok := r.Player(id); !ok {
		if _, err := r.deps.Storage.GetPlayer(ctx, id); err != nil {
			return nil, err
		}
	}
	return r.deps.Stats.Load(ctx, id)
}

// IsOnline reports whether the player has at least one connection
func (r *Registry) IsOnline(id model.PlayerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.players[id]
	return ok && e.online()
}

// OnlinePlayers lists every connected player ordered by display name
func (r *Registry) OnlinePlayers() []model.Player {
	r.mu.RLock()
	var out []model.Player
	for _, e := range r.players {
		if e.online() {
			out = append(out, e.player)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out
}

// Connect attaches a connection to a player. The first connection marks the player online.
func (r *Registry) Connect(ctx context.Context, p model.Player, conn Conn) {
	r.mu.Lock()
	e := r.playerLocked(p)
	e.player = p
	e.conns[conn.ID()] = conn
	cameOnline := len(e.conns) == 1
	r.mu.Unlock()

	if _, err := r.deps.Stats.Load(ctx, p.ID); err != nil {
		r.logger.Warn("failed to load stats", slog.String("player_id", string(p.ID)), slog.Any("error", err))
	}
	if cameOnline {
		r.deps.Metrics.OnlinePlayers.Inc()
		r.broadcastPresence(model.EventUserOnline, p)
	}
}

// Disconnect detaches a connection. The last connection closing takes the player out of
// their rooms and out of the registry, and announces them offline. Seats are kept.
func (r *Registry) Disconnect(id model.PlayerID, connID string) {
	r.mu.Lock()
	e, ok := r.players[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := e.conns[connID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(e.conns, connID)
	wentOffline := !e.online()
	if wentOffline {
		for _, rm := range r.rooms {
			delete(rm.members, id)
		}
		delete(r.players, id)
	}
	p := e.player
	r.mu.Unlock()

	if wentOffline {
		r.deps.Stats.Forget(id)
		r.deps.Metrics.OnlinePlayers.Dec()
		r.broadcastPresence(model.EventUserOffline, p)
	}
}

// Publish delivers an event to every connection of a player; it satisfies table.Publisher
func (r *Registry) Publish(to model.PlayerID, e model.Event) {
	r.mu.RLock()
	entry, ok := r.players[to]
	var conns []Conn
	if ok {
		conns = make([]Conn, 0, len(entry.conns))
		for _, c := range entry.conns {
			conns = append(conns, c)
		}
	}
	r.mu.RUnlock()

	if len(conns) == 0 {
		return
	}
	msg := protocol.FromEvent(e)
	for _, c := range conns {
		if !c.Send(msg) {
			r.deps.Metrics.BroadcastDrops.Inc()
			r.logger.Debug("dropped event", slog.String("player_id", string(to)), slog.String("type", string(e.Type)))
		}
	}
}

func (r *Registry) broadcastPresence(typ model.EventType, p model.Player) {
	e := r.event(typ, "", "", model.PresencePayload{PlayerID: p.ID, DisplayName: p.DisplayName})
	e.PlayerID = p.ID
	for _, other := range r.OnlinePlayers() {
		if other.ID != p.ID {
			r.Publish(other.ID, e)
		}
	}
}

// SetBlocksInvitations toggles whether a player accepts invitations.
// Blocking also declines everything pending.
func (r *Registry) SetBlocksInvitations(ctx context.Context, p model.Player, blocked bool) {
	r.mu.Lock()
	r.playerLocked(p).blocksInvites = blocked
	r.mu.Unlock()

	if blocked {
		r.DeclineAllInvitations(ctx, p, "blocked")
	}
}

func (r *Registry) blocksInvitations(id model.PlayerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.players[id]
	return ok && e.blocksInvites
}

// Ping asks one of the target's connections to echo a nonce and measures the round trip.
// It fails with ErrPlayerOffline when the target has no connection and ErrPingTimeout
// when no pong arrives in time.
func (r *Registry) Ping(ctx context.Context, requester, target model.PlayerID) (protocol.PingResult, error) {
	conn, ok := r.anyConn(target)
	if !ok {
		return protocol.PingResult{}, model.ErrPlayerOffline
	}

	nonce := uuid.NewString()
	w := pingWaiter{player: target, done: make(chan struct{})}
	r.pingMu.Lock()
	r.pings[nonce] = w
	r.pingMu.Unlock()
	defer func() {
		r.pingMu.Lock()
		delete(r.pings, nonce)
		r.pingMu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.PingTimeout)
	defer cancel()

	sent := r.deps.Clock.Now()
	e := r.event(model.EventPing, "", "", model.PingPayload{Nonce: nonce})
	e.PlayerID = requester
	if !conn.Send(protocol.FromEvent(e)) {
		r.deps.Metrics.BroadcastDrops.Inc()
		return protocol.PingResult{PlayerID: target}, model.ErrPingTimeout
	}

	select {
	case <-w.done:
		rtt := r.deps.Clock.Now().Sub(sent)
		return protocol.PingResult{PlayerID: target, OK: true, RTTMs: rtt.Milliseconds()}, nil
	case <-ctx.Done():
		return protocol.PingResult{PlayerID: target}, model.ErrPingTimeout
	}
}

// Pong resolves an outstanding ping. Nonces issued to other players are ignored.
func (r *Registry) Pong(from model.PlayerID, nonce string) {
	r.pingMu.Lock()
	defer r.pingMu.Unlock()
	w, ok := r.pings[nonce]
	if !ok || w.player != from {
		return
	}
	delete(r.pings, nonce)
	close(w.done)
}

// anyConn picks the target's connection with the lowest ID
func (r *Registry) anyConn(id model.PlayerID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.players[id]
	if !ok || !e.online() {
		return nil, false
	}
	var best Conn
	for cid, c := range e.conns {
		if best == nil || cid < best.ID() {
			best = c
		}
	}
	return best, true
}
