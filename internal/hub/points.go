package hub

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"workhub/internal/metrics"
	"workhub/internal/models"
	"workhub/internal/store"
)

// routePointsTransfer guards the one event kind with real invariants.
// Validation runs on the reactor against live tables; the two counter
// increments run on a worker, and fan-out happens only after both totals
// came back from the store. Reactor only.
func (h *Hub) routePointsTransfer(c *Client, ev *PointsTransfer) {
	if reason := h.rejectTransfer(c, ev); reason != "" {
		metrics.PointsTransfer("rejected")
		c.Send(models.WSFrame{Type: FramePointsError, Data: models.ErrorPayload{
			Code:    "invalid_transfer",
			Message: reason,
		}})
		return
	}
	target := h.presence[ev.To].user
	go h.settleTransfer(c, target, ev)
}

// rejectTransfer applies the checks in order: self-target, resolvable
// target, bounded amount. Identifiers are compared, never display names.
func (h *Hub) rejectTransfer(c *Client, ev *PointsTransfer) string {
	if ev.To == c.User.ID {
		return "cannot give points to yourself"
	}
	if _, online := h.presence[ev.To]; !online {
		return "recipient is not online"
	}
	if ev.Amount < h.cfg.PointsMin || ev.Amount > h.cfg.PointsMax {
		return fmt.Sprintf("amount must be between %d and %d", h.cfg.PointsMin, h.cfg.PointsMax)
	}
	return ""
}

// settleTransfer issues both increments as one logical operation: if either
// fails, nothing is fanned out and the sender alone hears about it. The
// totals that do get fanned out are the authoritative post-increment values.
func (h *Hub) settleTransfer(c *Client, target models.UserIdentity, ev *PointsTransfer) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.PersistTimeout)
	defer cancel()

	given, err := h.users.IncrementPoints(ctx, c.User.ID, store.FieldGiven, ev.Amount)
	if err != nil {
		h.failTransfer(c, ev, err)
		return
	}
	received, err := h.users.IncrementPoints(ctx, ev.To, store.FieldReceived, ev.Amount)
	if err != nil {
		h.failTransfer(c, ev, err)
		return
	}

	metrics.PointsTransfer("settled")
	update := models.PointsUpdatePayload{
		RoomID:        ev.RoomID,
		FromUserID:    c.User.ID,
		FromName:      c.User.DisplayName,
		ToUserID:      target.ID,
		ToName:        target.DisplayName,
		Amount:        ev.Amount,
		FromGiven:     given,
		ToReceived:    received,
		TransferredAt: time.Now().UTC(),
	}
	h.do(func() { h.fanOutPointsUpdate(update) })
}

func (h *Hub) failTransfer(c *Client, ev *PointsTransfer, err error) {
	metrics.PointsTransfer("failed")
	h.log.Error("points transfer failed",
		zap.String("from", c.User.ID), zap.String("to", ev.To), zap.Error(err))
	h.do(func() {
		c.Send(models.WSFrame{Type: FramePointsError, Data: models.ErrorPayload{
			Code:    "transfer_failed",
			Message: "transfer could not be recorded",
		}})
	})
}

// fanOutPointsUpdate delivers to the whole room, sender included, plus the
// recipient directly when they are online but elsewhere. Recipients are
// re-resolved here because occupancy may have changed while the increments
// were in flight.
func (h *Hub) fanOutPointsUpdate(update models.PointsUpdatePayload) {
	frame := models.WSFrame{Type: FramePointsUpdate, Data: update}
	h.broadcastRoom(update.RoomID, frame, "")
	if _, inRoom := h.occupancy[update.RoomID][update.ToUserID]; !inRoom {
		if entry, online := h.presence[update.ToUserID]; online {
			entry.conn.Send(frame)
		} else {
			metrics.DeliveryDropped()
		}
	}
}
