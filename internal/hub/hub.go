package hub

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"workhub/internal/config"
	"workhub/internal/metrics"
	"workhub/internal/models"
	"workhub/internal/store"
	"workhub/internal/utils"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRoomAccess   = errors.New("not a member of this room")
)

type presenceEntry struct {
	user        models.UserIdentity
	conn        *Client
	connectedAt time.Time
}

type occupant struct {
	user     models.UserIdentity
	joinedAt time.Time
	lastSeen time.Time
}

type editorState struct {
	user      models.UserIdentity
	position  int
	startedAt time.Time
}

// Hub owns every ephemeral table: presence, per-room occupancy, per-room
// editing sessions, and per-room board state. All of them are touched only
// from the reactor goroutine driven by Run, so none of them carry locks.
// Store calls never run on the reactor.
type Hub struct {
	log   *zap.Logger
	cfg   *config.Config
	users store.UserStore
	hist  store.HistoryStore
	rooms store.RoomDirectory

	tasks chan func()
	done  chan struct{}

	presence  map[string]*presenceEntry           // userID -> entry
	occupancy map[string]map[string]*occupant     // roomID -> userID -> occupant
	editing   map[string]map[string]*editorState  // roomID -> userID -> state
	boards    map[string]*board                   // roomID -> board
}

func New(log *zap.Logger, cfg *config.Config, users store.UserStore, hist store.HistoryStore, rooms store.RoomDirectory) *Hub {
	return &Hub{
		log:       log,
		cfg:       cfg,
		users:     users,
		hist:      hist,
		rooms:     rooms,
		tasks:     make(chan func(), 256),
		done:      make(chan struct{}),
		presence:  make(map[string]*presenceEntry),
		occupancy: make(map[string]map[string]*occupant),
		editing:   make(map[string]map[string]*editorState),
		boards:    make(map[string]*board),
	}
}

// Run drains the task queue until ctx is cancelled. Every in-memory mutation
// happens here, one task at a time.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.teardown()
			return
		case task := <-h.tasks:
			task()
		}
	}
}

func (h *Hub) teardown() {
	h.flushAllBoards()
	h.presence = make(map[string]*presenceEntry)
	h.occupancy = make(map[string]map[string]*occupant)
	h.editing = make(map[string]map[string]*editorState)
	h.boards = make(map[string]*board)
	metrics.SetConnections(0)
	metrics.SetRooms(0)
}

// do schedules fn on the reactor. Safe from any goroutine except the reactor
// itself when the queue is full.
func (h *Hub) do(fn func()) {
	select {
	case h.tasks <- fn:
	case <-h.done:
	}
}

// call schedules fn and waits for it. Must not be called from the reactor.
func (h *Hub) call(fn func()) {
	ran := make(chan struct{})
	h.do(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
	case <-h.done:
	}
}

// AdmitTimeout bounds credential validation during the handshake.
func (h *Hub) AdmitTimeout() time.Duration { return h.cfg.AdmitTimeout }

/*** Connection Registry ***/

// Authenticate validates the bearer token and resolves the user against the
// store. It runs before the websocket upgrade and before any state is
// touched; the caller bounds ctx with the admission timeout.
func (h *Hub) Authenticate(ctx context.Context, token string) (models.UserIdentity, error) {
	claims, err := utils.VerifyToken(token, h.cfg.JWTSecret)
	if err != nil {
		return models.UserIdentity{}, ErrUnauthorized
	}
	userID, err := utils.GetUserIDFromClaims(claims)
	if err != nil {
		return models.UserIdentity{}, ErrUnauthorized
	}
	user, err := h.users.FindUser(ctx, userID)
	if err != nil {
		h.log.Warn("admission lookup failed", zap.String("userId", userID), zap.Error(err))
		return models.UserIdentity{}, ErrUnauthorized
	}
	return user, nil
}

// Register admits an authenticated connection: one task creates (or, for a
// reconnecting user, overwrites) the presence entry, tells everyone, and
// welcomes the newcomer. All-or-nothing by construction.
func (h *Hub) Register(c *Client, user models.UserIdentity) {
	c.User = user
	h.call(func() {
		h.presence[user.ID] = &presenceEntry{
			user:        user,
			conn:        c,
			connectedAt: time.Now().UTC(),
		}
		metrics.SetConnections(len(h.presence))

		// presence is global, so the change goes to every connection
		h.broadcastPresence()
		c.Send(models.WSFrame{Type: FrameWelcome, Data: models.WelcomePayload{
			You:      user,
			ConnID:   c.ID,
			Presence: h.presenceList(),
		}})
	})
}

// Remove reconciles every ephemeral table for a disconnecting client. A
// stale connection (its user already re-admitted on a newer one) must not
// evict the live entry, so the handle is compared first.
func (h *Hub) Remove(c *Client) {
	h.call(func() {
		entry, ok := h.presence[c.User.ID]
		if !ok || entry.conn != c {
			return
		}
		for roomID := range h.occupancy {
			h.dropFromRoom(roomID, c.User.ID)
		}
		// editing entries track occupancy, but sweep them independently so
		// a disconnect never leaves one behind
		for roomID, sessions := range h.editing {
			if _, ok := sessions[c.User.ID]; !ok {
				continue
			}
			delete(sessions, c.User.ID)
			h.broadcastRoom(roomID, models.WSFrame{Type: FrameEditStopped, Data: models.PeerPayload{
				RoomID:      roomID,
				UserID:      c.User.ID,
				DisplayName: c.User.DisplayName,
			}}, c.User.ID)
		}
		delete(h.presence, c.User.ID)
		metrics.SetConnections(len(h.presence))
		h.broadcastPresence()
	})
}

func (h *Hub) presenceList() []models.PresenceEntry {
	out := make([]models.PresenceEntry, 0, len(h.presence))
	for _, e := range h.presence {
		out = append(out, models.PresenceEntry{
			UserID:      e.user.ID,
			DisplayName: e.user.DisplayName,
			Email:       e.user.Email,
			ConnID:      e.conn.ID,
			ConnectedAt: e.connectedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (h *Hub) broadcastPresence() {
	frame := models.WSFrame{Type: FramePresence, Data: h.presenceList()}
	for _, e := range h.presence {
		e.conn.Send(frame)
	}
}

// broadcastRoom resolves the room's occupants to live connections at
// dispatch time. An occupant with no presence entry is a delivery miss:
// dropped, counted, never retried.
func (h *Hub) broadcastRoom(roomID string, frame models.WSFrame, excludeUserID string) {
	for userID := range h.occupancy[roomID] {
		if userID == excludeUserID {
			continue
		}
		entry, ok := h.presence[userID]
		if !ok {
			metrics.DeliveryDropped()
			continue
		}
		entry.conn.Send(frame)
	}
}

/*** Reads for the REST surface ***/

func (h *Hub) Presence() []models.PresenceEntry {
	var out []models.PresenceEntry
	h.call(func() { out = h.presenceList() })
	return out
}

func (h *Hub) Occupants(roomID string) []models.Occupant {
	var out []models.Occupant
	h.call(func() { out = h.occupantList(roomID) })
	return out
}

func (h *Hub) ActiveEditors(roomID string) []models.Editor {
	var out []models.Editor
	h.call(func() { out = h.editorList(roomID) })
	return out
}

func (h *Hub) Board(roomID string) (models.BoardDoc, bool) {
	var doc models.BoardDoc
	var ok bool
	h.call(func() {
		b, found := h.boards[roomID]
		if found {
			doc, ok = b.snapshot(), true
		}
	})
	return doc, ok
}
