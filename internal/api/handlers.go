package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"workhub/internal/hub"
	"workhub/internal/models"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type Handlers struct {
	log *zap.Logger
	hub *hub.Hub
}

func NewHandlers(log *zap.Logger, h *hub.Hub) *Handlers {
	return &Handlers{log: log, hub: h}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) Ready(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ready"))
}

/*** Workspace WebSocket ***/

// WorkspaceWS admits a connection and pumps its frames into the hub. The
// bearer token rides the handshake query, is validated before the upgrade,
// and a failed admission never touches any hub state.
func (h *Handlers) WorkspaceWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	ctx, cancel := context.WithTimeout(r.Context(), h.hub.AdmitTimeout())
	user, err := h.hub.Authenticate(ctx, token)
	cancel()
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	client := hub.NewClient(conn)
	defer client.Close()
	h.hub.Register(client, user)
	defer h.hub.Remove(client)

	h.log.Info("connection admitted",
		zap.String("userId", user.ID), zap.String("connId", client.ID))

	for {
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			h.log.Info("connection closed",
				zap.String("userId", user.ID), zap.String("connId", client.ID))
			return
		}

		ev, err := hub.DecodeEvent(frame)
		if err != nil {
			client.Send(models.WSFrame{Type: hub.FrameError, Data: models.ErrorPayload{
				Code:    "unknown_type",
				Message: err.Error(),
			}})
			continue
		}

		// join and leave are control operations; the access check in Join
		// blocks only this connection's read pump
		switch ev := ev.(type) {
		case *hub.JoinRoom:
			resp, err := h.hub.Join(r.Context(), client, ev.RoomID)
			if err != nil {
				client.Send(models.WSFrame{Type: hub.FrameRoomError, Data: models.ErrorPayload{
					Code:    "room_access_denied",
					Message: err.Error(),
				}})
				continue
			}
			client.Send(models.WSFrame{Type: hub.FrameRoomJoined, Data: resp})
		case *hub.LeaveRoom:
			h.hub.Leave(client, ev.RoomID)
		default:
			h.hub.Dispatch(client, ev)
		}
	}
}

/*** Read-only REST surface ***/

func (h *Handlers) GetPresence(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.hub.Presence())
}

func (h *Handlers) GetOccupants(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	writeJSON(w, h.hub.Occupants(roomID))
}

func (h *Handlers) GetEditors(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	writeJSON(w, h.hub.ActiveEditors(roomID))
}

func (h *Handlers) GetBoard(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	doc, ok := h.hub.Board(roomID)
	if !ok {
		writeError(w, http.StatusNotFound, "no live board for room")
		return
	}
	writeJSON(w, doc)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ErrorPayload{Code: http.StatusText(status), Message: msg})
}
