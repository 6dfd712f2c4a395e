package hub

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"workhub/internal/metrics"
	"workhub/internal/models"
	"workhub/internal/store"
)

// Dispatch hands a mutation event to the reactor. Join and leave are control
// operations with their own entry points; everything else lands here.
func (h *Hub) Dispatch(c *Client, ev Event) {
	metrics.EventDispatched(ev.kind())
	h.do(func() { h.route(c, ev) })
}

// route is the dispatch policy: kind -> recipients, exclude-sender. The
// switch is exhaustive over the closed event set; a new kind that is not
// wired in here is answered with an error frame instead of vanishing.
//
// Every room-scoped mutation requires the sender to be a live occupant of
// the room. Occupancy is only ever granted through Join, which already
// enforced durable membership, so this one check covers both.
func (h *Hub) route(c *Client, ev Event) {
	if rev, ok := ev.(roomEvent); ok {
		if _, occupant := h.occupancy[rev.room()][c.User.ID]; !occupant {
			c.Send(models.WSFrame{Type: FrameRoomError, Data: models.ErrorPayload{
				Code:    "room_access_denied",
				Message: "not an occupant of this room",
			}})
			return
		}
	}

	switch ev := ev.(type) {
	case *ChatMessage:
		h.routeChat(c, ev)
	case *TextDelta:
		h.routeDelta(c, ev)
	case *DrawStroke:
		h.broadcastRoom(ev.RoomID, models.WSFrame{Type: FrameStroke, Data: models.StrokePayload{
			RoomID:      ev.RoomID,
			UserID:      c.User.ID,
			DisplayName: c.User.DisplayName,
			Stroke:      ev.Stroke,
		}}, c.User.ID)
	case *CanvasClear:
		h.broadcastRoom(ev.RoomID, models.WSFrame{Type: FrameCanvasClear, Data: models.PeerPayload{
			RoomID:      ev.RoomID,
			UserID:      c.User.ID,
			DisplayName: c.User.DisplayName,
		}}, c.User.ID)
	case *Typing:
		h.broadcastRoom(ev.RoomID, models.WSFrame{Type: FrameTyping, Data: models.TypingPayload{
			RoomID:      ev.RoomID,
			UserID:      c.User.ID,
			DisplayName: c.User.DisplayName,
			Active:      ev.Active,
		}}, c.User.ID)
	case *CursorMove:
		h.moveCursor(ev.RoomID, c.User, ev.Position)
	case *EditStart:
		h.startEditing(ev.RoomID, c.User)
	case *EditStop:
		h.stopEditing(ev.RoomID, c.User)
	case *PointsTransfer:
		h.routePointsTransfer(c, ev)
	case *JoinRoom, *LeaveRoom:
		// handled before dispatch; reaching here is a programming error
		c.Send(errFrame("bad_dispatch", "join/leave are not routable events"))
	default:
		c.Send(errFrame("unknown_type", "unhandled event kind"))
	}
}

// routeChat broadcasts to the whole room, sender included, so every one of
// the sender's connections converges on the same history. Persistence is
// best-effort and runs after fan-out.
func (h *Hub) routeChat(c *Client, ev *ChatMessage) {
	payload := models.ChatPayload{
		MessageID:   uuid.New().String(),
		RoomID:      ev.RoomID,
		UserID:      c.User.ID,
		DisplayName: c.User.DisplayName,
		Text:        ev.Text,
		SentAt:      time.Now().UTC(),
	}
	h.broadcastRoom(ev.RoomID, models.WSFrame{Type: FrameChat, Data: payload}, "")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.PersistTimeout)
		defer cancel()
		err := h.hist.AppendMessage(ctx, store.ChatRecord{
			MessageID:   payload.MessageID,
			RoomID:      payload.RoomID,
			UserID:      payload.UserID,
			DisplayName: payload.DisplayName,
			Text:        payload.Text,
			SentAt:      payload.SentAt,
		})
		if err != nil {
			h.log.Error("message write failed", zap.String("roomId", ev.RoomID), zap.Error(err))
		}
	}()
}

// routeDelta applies the edit to the authoritative board and fans out the
// transformed delta, sender excluded. Out-of-order deltas corrupt the shared
// document, so applying on the reactor in arrival order is what preserves
// the per-connection ordering guarantee.
func (h *Hub) routeDelta(c *Client, ev *TextDelta) {
	b := h.board(ev.RoomID)
	applied, err := b.apply(ev.Delta)
	if err != nil {
		// resync: the sender gets the authoritative doc instead of an ack
		c.Send(errFrame("version_mismatch", err.Error()))
		c.Send(models.WSFrame{Type: FrameBoard, Data: b.snapshot()})
		return
	}
	h.broadcastRoom(ev.RoomID, models.WSFrame{Type: FrameDelta, Data: models.DeltaPayload{
		RoomID:      ev.RoomID,
		UserID:      c.User.ID,
		DisplayName: c.User.DisplayName,
		Delta:       applied,
	}}, c.User.ID)
	// ack with the assigned version so the sender can advance its base
	c.Send(models.WSFrame{Type: FrameBoard, Data: b.snapshot()})
}
