package registry

import (
	"context"
	"fmt"

	"github.com/mcoot/towers-go/internal/engine/board"
	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/protocol"
	"github.com/mcoot/towers-go/internal/services/table"
)

// Dispatch executes one client command on behalf of a player and returns the result
// carried by the acknowledgement, if any
func (r *Registry) Dispatch(ctx context.Context, p model.Player, cmd protocol.Command) (any, error) {
	switch c := cmd.(type) {
	case protocol.RoomJoin:
		return r.JoinRoom(ctx, c.RoomID, p)
	case protocol.RoomLeave:
		return nil, r.LeaveRoom(c.RoomID, p.ID)

	case protocol.TableJoin:
		return r.JoinTable(ctx, c.TableID, p)
	case protocol.TableLeave:
		return nil, r.LeaveTable(ctx, c.TableID, p.ID)
	case protocol.TableStart:
		return nil, r.withTable(ctx, c.TableID, func(t *table.Table) error { return t.Start(p.ID) })

	case protocol.SeatSit:
		return nil, r.withTable(ctx, c.TableID, func(t *table.Table) error { return t.Sit(p, c.Seat) })
	case protocol.SeatStand:
		return nil, r.withTable(ctx, c.TableID, func(t *table.Table) error { return t.Stand(p.ID) })
	case protocol.SeatReady:
		return nil, r.withTable(ctx, c.TableID, func(t *table.Table) error { return t.SetReady(p.ID, c.Ready) })
	case protocol.SeatTarget:
		return nil, r.withTable(ctx, c.TableID, func(t *table.Table) error { return t.SetTarget(p.ID, c.Target) })

	case protocol.GameMove:
		dir, err := moveDir(c.Direction)
		if err != nil {
			return nil, err
		}
		return nil, r.withTable(ctx, c.TableID, func(t *table.Table) error { return t.Move(p.ID, dir) })
	case protocol.GameCycle:
		return nil, r.withTable(ctx, c.TableID, func(t *table.Table) error { return t.Cycle(p.ID) })
	case protocol.GameDrop:
		return nil, r.withTable(ctx, c.TableID, func(t *table.Table) error { return t.Drop(p.ID) })
	case protocol.GamePower:
		return nil, r.withTable(ctx, c.TableID, func(t *table.Table) error { return t.FirePower(p.ID, c.Index, c.Target) })

	case protocol.ChatRoom:
		return nil, r.PostRoomChat(c.RoomID, p, c.Text)
	case protocol.ChatTable:
		return nil, r.withTable(ctx, c.TableID, func(t *table.Table) error { return t.Post(p, c.Text) })
	case protocol.ChatMute:
		return r.Mute(p, c.PlayerID, c.RoomID)
	case protocol.ChatUnmute:
		return r.Unmute(p, c.PlayerID, c.RoomID)

	case protocol.InviteSend:
		inv, err := r.Invite(ctx, p, c.TableID, c.PlayerID)
		if err != nil {
			return nil, err
		}
		return model.InvitationPayloadFrom(inv), nil
	case protocol.InviteAccept:
		return r.AcceptInvitation(ctx, p, c.InvitationID)
	case protocol.InviteDecline:
		if c.All {
			return invitationPayloads(r.DeclineAllInvitations(ctx, p, c.Reason)), nil
		}
		inv, err := r.DeclineInvitation(ctx, p, c.InvitationID, c.Reason)
		if err != nil {
			return nil, err
		}
		return model.InvitationPayloadFrom(inv), nil
	case protocol.BlockInvites:
		r.SetBlocksInvitations(ctx, p, c.Blocked)
		return nil, nil

	case protocol.PingRequest:
		res, err := r.Ping(ctx, p.ID, c.PlayerID)
		if err != nil {
			return nil, err
		}
		return res, nil
	case protocol.Pong:
		r.Pong(p.ID, c.Nonce)
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownCommand, cmd.Type())
}

func moveDir(s string) (board.MoveDir, error) {
	switch s {
	case protocol.DirLeft:
		return board.MoveLeft, nil
	case protocol.DirRight:
		return board.MoveRight, nil
	}
	return 0, model.ErrInvalidDirection
}

func invitationPayloads(invs []*model.TableInvitation) []model.InvitationPayload {
	out := make([]model.InvitationPayload, len(invs))
	for i, inv := range invs {
		out[i] = model.InvitationPayloadFrom(inv)
	}
	return out
}
