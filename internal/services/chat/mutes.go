package chat

import (
	"sync"

	"github.com/mcoot/towers-go/internal/dependencies/clock"
	"github.com/mcoot/towers-go/internal/model"
)

// Mutes tracks, per viewer, the periods during which each author was muted.
// Closed periods are kept so history stays filtered consistently after an unmute.
type Mutes struct {
	mu      sync.RWMutex
	clock   clock.Clock
	periods map[model.PlayerID][]model.MutePeriod
}

// NewMutes creates an empty mute registry
func NewMutes(clk clock.Clock) *Mutes {
	return &Mutes{clock: clk, periods: make(map[model.PlayerID][]model.MutePeriod)}
}

// Mute opens a mute period; it returns false if author is already muted by viewer
func (m *Mutes) Mute(viewer, author model.PlayerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openIndex(viewer, author) >= 0 {
		return false
	}
	m.periods[viewer] = append(m.periods[viewer], model.MutePeriod{AuthorID: author, MutedAt: m.clock.Now()})
	return true
}

// Unmute closes the open mute period; it returns false if author was not muted
func (m *Mutes) Unmute(viewer, author model.PlayerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.openIndex(viewer, author)
	if i < 0 {
		return false
	}
	now := m.clock.Now()
	m.periods[viewer][i].UnmutedAt = &now
	return true
}

// IsMuted reports whether author is currently muted by viewer
func (m *Mutes) IsMuted(viewer, author model.PlayerID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.openIndex(viewer, author) >= 0
}

// Viewer returns the viewer's identity together with a snapshot of their mute periods
func (m *Mutes) Viewer(id model.PlayerID) Viewer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Viewer{UserID: id, Mutes: append([]model.MutePeriod(nil), m.periods[id]...)}
}

func (m *Mutes) openIndex(viewer, author model.PlayerID) int {
	for i, p := range m.periods[viewer] {
		if p.AuthorID == author && p.UnmutedAt == nil {
			return i
		}
	}
	return -1
}
