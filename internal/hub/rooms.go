package hub

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"workhub/internal/metrics"
	"workhub/internal/models"
)

/*** Room Membership Tracker ***/

// Join admits a user into a room's live occupancy set. Durable membership is
// checked against the room directory first; that lookup blocks only this
// connection's goroutine, never the reactor. Live occupancy and durable
// membership stay separate concepts: a durable member who never joined in
// this process lifetime does not occupy the room.
func (h *Hub) Join(ctx context.Context, c *Client, roomID string) (models.RoomJoinedPayload, error) {
	allowed, err := h.rooms.IsMember(ctx, roomID, c.User.ID)
	if err != nil {
		h.log.Error("membership lookup failed", zap.String("roomId", roomID), zap.Error(err))
		return models.RoomJoinedPayload{}, ErrRoomAccess
	}
	if !allowed {
		return models.RoomJoinedPayload{}, ErrRoomAccess
	}

	var resp models.RoomJoinedPayload
	h.call(func() {
		now := time.Now().UTC()
		occ, ok := h.occupancy[roomID]
		if !ok {
			occ = make(map[string]*occupant)
			h.occupancy[roomID] = occ
			metrics.SetRooms(len(h.occupancy))
		}
		if existing, ok := occ[c.User.ID]; ok {
			// idempotent join, still refreshes the last-seen marker
			existing.lastSeen = now
		} else {
			occ[c.User.ID] = &occupant{user: c.User, joinedAt: now, lastSeen: now}
			h.broadcastRoom(roomID, models.WSFrame{Type: FramePeerJoined, Data: models.PeerPayload{
				RoomID:      roomID,
				UserID:      c.User.ID,
				DisplayName: c.User.DisplayName,
			}}, c.User.ID)
		}
		resp = models.RoomJoinedPayload{
			RoomID:    roomID,
			Occupants: h.occupantList(roomID),
			Board:     h.board(roomID).snapshot(),
		}
	})
	return resp, nil
}

// Leave removes the user from occupancy. Not an error if absent.
func (h *Hub) Leave(c *Client, roomID string) {
	h.call(func() { h.dropFromRoom(roomID, c.User.ID) })
}

// dropFromRoom removes one user from a room's occupancy and editing sets,
// notifying remaining occupants once per removal. Reactor only.
func (h *Hub) dropFromRoom(roomID, userID string) {
	occ, ok := h.occupancy[roomID]
	if !ok {
		return
	}
	o, ok := occ[userID]
	if !ok {
		return
	}

	if _, editing := h.editing[roomID][userID]; editing {
		delete(h.editing[roomID], userID)
		h.broadcastRoom(roomID, models.WSFrame{Type: FrameEditStopped, Data: models.PeerPayload{
			RoomID:      roomID,
			UserID:      userID,
			DisplayName: o.user.DisplayName,
		}}, userID)
	}

	delete(occ, userID)
	h.broadcastRoom(roomID, models.WSFrame{Type: FramePeerLeft, Data: models.PeerPayload{
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: o.user.DisplayName,
	}}, userID)

	if len(occ) == 0 {
		h.closeRoom(roomID)
	}
}

// closeRoom tears down per-room state once the last occupant is gone,
// flushing the board to the store on the way out.
func (h *Hub) closeRoom(roomID string) {
	if b, ok := h.boards[roomID]; ok && b.dirty {
		b.dirty = false
		doc := b.snapshot()
		go h.persistBoard(roomID, doc)
	}
	delete(h.occupancy, roomID)
	delete(h.editing, roomID)
	delete(h.boards, roomID)
	metrics.SetRooms(len(h.occupancy))
}

func (h *Hub) occupantList(roomID string) []models.Occupant {
	occ := h.occupancy[roomID]
	out := make([]models.Occupant, 0, len(occ))
	for _, o := range occ {
		out = append(out, models.Occupant{
			UserID:      o.user.ID,
			DisplayName: o.user.DisplayName,
			JoinedAt:    o.joinedAt,
			LastSeen:    o.lastSeen,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

/*** Editing-Session Tracker ***/

func (h *Hub) startEditing(roomID string, user models.UserIdentity) {
	sessions, ok := h.editing[roomID]
	if !ok {
		sessions = make(map[string]*editorState)
		h.editing[roomID] = sessions
	}
	if _, ok := sessions[user.ID]; ok {
		return
	}
	sessions[user.ID] = &editorState{user: user, startedAt: time.Now().UTC()}
	h.broadcastRoom(roomID, models.WSFrame{Type: FrameEditStarted, Data: models.PeerPayload{
		RoomID:      roomID,
		UserID:      user.ID,
		DisplayName: user.DisplayName,
	}}, user.ID)
}

func (h *Hub) stopEditing(roomID string, user models.UserIdentity) {
	if _, ok := h.editing[roomID][user.ID]; !ok {
		return
	}
	delete(h.editing[roomID], user.ID)
	h.broadcastRoom(roomID, models.WSFrame{Type: FrameEditStopped, Data: models.PeerPayload{
		RoomID:      roomID,
		UserID:      user.ID,
		DisplayName: user.DisplayName,
	}}, user.ID)
}

// moveCursor overwrites the stored position, so arbitrary call frequency
// costs one slot per (room, user) and nothing more. Only declared editors
// get a slot; everyone else's cursor is forwarded without being retained.
func (h *Hub) moveCursor(roomID string, user models.UserIdentity, position int) {
	if state, ok := h.editing[roomID][user.ID]; ok {
		state.position = position
	}
	h.broadcastRoom(roomID, models.WSFrame{Type: FrameCursor, Data: models.CursorPayload{
		RoomID:      roomID,
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Position:    position,
	}}, user.ID)
}

func (h *Hub) editorList(roomID string) []models.Editor {
	sessions := h.editing[roomID]
	out := make([]models.Editor, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, models.Editor{
			UserID:      s.user.ID,
			DisplayName: s.user.DisplayName,
			Position:    s.position,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
