package registry

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/services/chat"
	"github.com/mcoot/towers-go/internal/services/invitation"
	"github.com/mcoot/towers-go/internal/services/table"
)

// runtimeNoticer posts invitation notices through a table's runtime from outside it
type runtimeNoticer struct {
	ctx     context.Context
	runtime *table.Runtime
}

func (n runtimeNoticer) Notice(kind model.TableChatKind, vars map[string]string, visibleTo model.PlayerID) chat.Message[model.TableChatKind] {
	var m chat.Message[model.TableChatKind]
	_ = n.runtime.Do(n.ctx, func(t *table.Table) error {
		m = t.Notice(kind, vars, visibleTo)
		return nil
	})
	return m
}

func (r *Registry) displayName(id model.PlayerID) string {
	if p, ok := r.Player(id); ok {
		return p.DisplayName
	}
	return string(id)
}

// Invite asks another player to a table the inviter is at
func (r *Registry) Invite(ctx context.Context, inviter model.Player, tableID model.TableID, invitee model.PlayerID) (*model.TableInvitation, error) {
	if _, ok := r.Player(invitee); !ok {
		return nil, model.ErrPlayerNotFound
	}
	if r.blocksInvitations(invitee) {
		return nil, model.ErrInvitationsBlocked
	}

	var inv *model.TableInvitation
	err := r.withTable(ctx, tableID, func(t *table.Table) error {
		if !t.IsMember(inviter.ID) {
			return model.ErrNotAtTable
		}
		var err error
		inv, err = r.invites.Create(t.Info().RoomID, tableID, inviter.ID, invitee)
		if err != nil {
			return err
		}
		t.Notice(model.TableInvitationNotice, map[string]string{
			"inviter": inviter.DisplayName,
			"table":   strconv.Itoa(t.Info().Number),
		}, invitee)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("invitation sent",
		slog.String("invitation_id", inv.ID),
		slog.String("table_id", string(tableID)),
		slog.String("invitee_id", string(invitee)))
	r.Publish(invitee, r.invitationEvent(model.EventInvitationReceived, inv))
	return inv, nil
}

// AcceptInvitation accepts a pending invitation and puts the invitee at the table
func (r *Registry) AcceptInvitation(ctx context.Context, p model.Player, id string) (table.View, error) {
	inv, err := r.invites.Get(id)
	if err != nil {
		return table.View{}, err
	}
	if inv.InviteeID != p.ID {
		return table.View{}, model.ErrNotInvitee
	}
	r.GetOrCreatePlayer(p)
	inviterName := r.displayName(inv.InviterID)

	var view table.View
	err = r.withTable(ctx, inv.TableID, func(t *table.Table) error {
		_, seated := t.Seats().SeatOf(p.ID)
		accepted, err := r.invites.Accept(id, p.ID, invitation.AcceptContext{
			TableType:     t.Info().Type,
			InviteeSeated: seated,
			InviterName:   inviterName,
			InviteeName:   p.DisplayName,
		}, t)
		if err != nil {
			return err
		}
		inv = accepted
		t.Grant(p.ID)
		if err := t.Join(p); err != nil {
			return err
		}
		view = t.View(p.ID)
		return nil
	})
	if err != nil {
		return table.View{}, err
	}

	r.publishInvitationUpdate(inv)
	return view, nil
}

// DeclineInvitation declines one pending invitation
func (r *Registry) DeclineInvitation(ctx context.Context, p model.Player, id, reason string) (*model.TableInvitation, error) {
	inv, err := r.invites.Get(id)
	if err != nil {
		return nil, err
	}
	if inv.InviteeID != p.ID {
		return nil, model.ErrNotInvitee
	}

	var declined *model.TableInvitation
	err = r.withTable(ctx, inv.TableID, func(t *table.Table) error {
		var err error
		declined, err = r.invites.Decline(id, p.ID, reason, p.DisplayName, t)
		return err
	})
	if errors.Is(err, model.ErrTableNotFound) {
		// The table is gone; decline without a notice
		declined, err = r.invites.Decline(id, p.ID, reason, p.DisplayName, nil)
	}
	if err != nil {
		return nil, err
	}

	r.publishInvitationUpdate(declined)
	return declined, nil
}

// DeclineAllInvitations declines every invitation pending for the player
func (r *Registry) DeclineAllInvitations(ctx context.Context, p model.Player, reason string) []*model.TableInvitation {
	declined := r.invites.DeclineAll(p.ID, reason, p.DisplayName, func(id model.TableID) invitation.Noticer {
		rt, ok := r.runtime(id)
		if !ok {
			return nil
		}
		return runtimeNoticer{ctx: ctx, runtime: rt}
	})
	for _, inv := range declined {
		r.publishInvitationUpdate(inv)
	}
	return declined
}

// PendingInvitations lists the invitations waiting on a player
func (r *Registry) PendingInvitations(id model.PlayerID) []*model.TableInvitation {
	return r.invites.PendingFor(id)
}

func (r *Registry) invitationEvent(typ model.EventType, inv *model.TableInvitation) model.Event {
	return r.event(typ, inv.RoomID, inv.TableID, model.InvitationPayloadFrom(inv))
}

func (r *Registry) publishInvitationUpdate(inv *model.TableInvitation) {
	e := r.invitationEvent(model.EventInvitationUpdated, inv)
	r.Publish(inv.InviterID, e)
	r.Publish(inv.InviteeID, e)
}
