// Package invitation implements the table invitation state machine: every invitation starts
// pending and moves exactly once to accepted or declined.
package invitation

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mcoot/towers-go/internal/dependencies/clock"
	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/services/chat"
)

// ErrSelfInvite is returned when a player invites themselves
var ErrSelfInvite = errors.New("cannot invite yourself")

// Noticer posts system notices into a table's chat
type Noticer interface {
	Notice(kind model.TableChatKind, vars map[string]string, visibleTo model.PlayerID) chat.Message[model.TableChatKind]
}

// AcceptContext describes the table at the moment an invitation is accepted
type AcceptContext struct {
	TableType     model.TableType
	InviteeSeated bool
	InviterName   string
	InviteeName   string
}

// Manager owns every invitation known to the server. It is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	clock clock.Clock
	byID  map[string]*model.TableInvitation
}

// NewManager creates an empty invitation manager
func NewManager(clk clock.Clock) *Manager {
	return &Manager{clock: clk, byID: make(map[string]*model.TableInvitation)}
}

// Create records a new pending invitation
func (m *Manager) Create(roomID model.RoomID, tableID model.TableID, inviter, invitee model.PlayerID) (*model.TableInvitation, error) {
	if inviter == invitee {
		return nil, ErrSelfInvite
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, inv := range m.byID {
		if inv.TableID == tableID && inv.InviteeID == invitee && inv.IsPending() {
			return nil, model.ErrAlreadyInvited
		}
	}

	now := m.clock.Now()
	inv := &model.TableInvitation{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		TableID:   tableID,
		InviterID: inviter,
		InviteeID: invitee,
		Status:    model.InvitationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.byID[inv.ID] = inv
	c := *inv
	return &c, nil
}

// Get returns a copy of the invitation
func (m *Manager) Get(id string) (*model.TableInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byID[id]
	if !ok {
		return nil, model.ErrInvitationNotFound
	}
	c := *inv
	return &c, nil
}

// Accept moves a pending invitation to accepted and posts the matching notices.
// When the table is protected or private and the invitee already holds a seat, access is
// granted in place and both parties get their own notice; otherwise only the inviter is told.
func (m *Manager) Accept(id string, invitee model.PlayerID, ac AcceptContext, notices Noticer) (*model.TableInvitation, error) {
	inv, err := m.transition(id, invitee, model.InvitationAccepted, "")
	if err != nil {
		return nil, err
	}

	vars := map[string]string{
		"invitation_id": inv.ID,
		"inviter":       ac.InviterName,
		"invitee":       ac.InviteeName,
	}
	if ac.TableType != model.TablePublic && ac.InviteeSeated {
		notices.Notice(model.TableInvitationAccepted, withVar(vars, "grant", "inviter"), inv.InviterID)
		notices.Notice(model.TableInvitationAccepted, withVar(vars, "grant", "invitee"), inv.InviteeID)
	} else {
		notices.Notice(model.TableInvitationAccepted, vars, inv.InviterID)
	}
	return inv, nil
}

// Decline moves a pending invitation to declined and privately tells the inviter.
// A nil notices skips the notice.
func (m *Manager) Decline(id string, invitee model.PlayerID, reason, inviteeName string, notices Noticer) (*model.TableInvitation, error) {
	inv, err := m.transition(id, invitee, model.InvitationDeclined, reason)
	if err != nil {
		return nil, err
	}
	if notices == nil {
		return inv, nil
	}
	notices.Notice(model.TableInvitationDeclined, map[string]string{
		"invitation_id": inv.ID,
		"invitee":       inviteeName,
		"reason":        reason,
	}, inv.InviterID)
	return inv, nil
}

// DeclineAll declines every pending invitation addressed to invitee in one pass.
// noticesFor resolves the chat of each invitation's table; a nil result skips the notice.
func (m *Manager) DeclineAll(invitee model.PlayerID, reason, inviteeName string, noticesFor func(model.TableID) Noticer) []*model.TableInvitation {
	m.mu.Lock()
	now := m.clock.Now()
	var declined []*model.TableInvitation
	for _, inv := range m.byID {
		if inv.InviteeID != invitee || !inv.IsPending() {
			continue
		}
		inv.Status = model.InvitationDeclined
		inv.DeclineReason = reason
		inv.UpdatedAt = now
		c := *inv
		declined = append(declined, &c)
	}
	m.mu.Unlock()

	sort.Slice(declined, func(i, j int) bool { return declined[i].CreatedAt.Before(declined[j].CreatedAt) })
	for _, inv := range declined {
		notices := noticesFor(inv.TableID)
		if notices == nil {
			continue
		}
		notices.Notice(model.TableInvitationDeclined, map[string]string{
			"invitation_id": inv.ID,
			"invitee":       inviteeName,
			"reason":        reason,
		}, inv.InviterID)
	}
	return declined
}

// PendingFor returns every pending invitation addressed to invitee, oldest first
func (m *Manager) PendingFor(invitee model.PlayerID) []*model.TableInvitation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.TableInvitation
	for _, inv := range m.byID {
		if inv.InviteeID == invitee && inv.IsPending() {
			c := *inv
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ForTable returns every pending invitation for a table
func (m *Manager) ForTable(tableID model.TableID) []*model.TableInvitation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.TableInvitation
	for _, inv := range m.byID {
		if inv.TableID == tableID && inv.IsPending() {
			c := *inv
			out = append(out, &c)
		}
	}
	return out
}

// DropTable forgets every invitation for a deleted table
func (m *Manager) DropTable(tableID model.TableID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, inv := range m.byID {
		if inv.TableID == tableID {
			delete(m.byID, id)
		}
	}
}

func (m *Manager) transition(id string, invitee model.PlayerID, to model.InvitationStatus, reason string) (*model.TableInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.byID[id]
	if !ok {
		return nil, model.ErrInvitationNotFound
	}
	if inv.InviteeID != invitee {
		return nil, model.ErrNotInvitee
	}
	if !inv.IsPending() {
		return nil, model.ErrInvitationNotPending
	}
	inv.Status = to
	inv.DeclineReason = reason
	inv.UpdatedAt = m.clock.Now()
	c := *inv
	return &c, nil
}

func withVar(vars map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(vars)+1)
	for key, val := range vars {
		out[key] = val
	}
	out[k] = v
	return out
}
