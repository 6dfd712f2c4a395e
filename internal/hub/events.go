package hub

import (
	"encoding/json"
	"fmt"

	"workhub/internal/models"
)

// Frame types on the wire. Inbound kinds are decoded into the closed Event
// set below; adding a kind means touching DecodeEvent and the router switch.
const (
	// client -> hub
	FrameJoin        = "join"
	FrameLeave       = "leave"
	FrameChat        = "chat"
	FrameDelta       = "text_delta"
	FrameStroke      = "stroke"
	FrameCanvasClear = "canvas_clear"
	FrameCursor      = "cursor"
	FrameTyping      = "typing"
	FrameEditStart   = "edit_start"
	FrameEditStop    = "edit_stop"
	FramePoints      = "points"

	// hub -> client
	FrameWelcome      = "welcome"
	FramePresence     = "presence"
	FrameRoomJoined   = "joined"
	FramePeerJoined   = "peer_joined"
	FramePeerLeft     = "peer_left"
	FrameEditStarted  = "edit_started"
	FrameEditStopped  = "edit_stopped"
	FrameBoard        = "board"
	FramePointsUpdate = "points_update"
	FramePointsError  = "points_error"
	FrameRoomError    = "room_error"
	FrameError        = "error"
)

// Event is the closed set of client-originated kinds. The marker method
// keeps the set sealed to this package so the router switch stays exhaustive.
type Event interface {
	kind() string
}

type JoinRoom struct {
	RoomID string `json:"roomId"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

type ChatMessage struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

type TextDelta struct {
	RoomID string            `json:"roomId"`
	Delta  models.BoardDelta `json:"delta"`
}

type DrawStroke struct {
	RoomID string          `json:"roomId"`
	Stroke json.RawMessage `json:"stroke"`
}

type CanvasClear struct {
	RoomID string `json:"roomId"`
}

type CursorMove struct {
	RoomID   string `json:"roomId"`
	Position int    `json:"position"`
}

type Typing struct {
	RoomID string `json:"roomId"`
	Active bool   `json:"active"`
}

type EditStart struct {
	RoomID string `json:"roomId"`
}

type EditStop struct {
	RoomID string `json:"roomId"`
}

type PointsTransfer struct {
	RoomID string `json:"roomId"`
	To     string `json:"to"`
	Amount int    `json:"amount"`
}

// roomEvent is implemented by every room-scoped mutation kind. Join and
// leave are control operations, not mutations, so they stay out of the set.
type roomEvent interface {
	room() string
}

func (e ChatMessage) room() string    { return e.RoomID }
func (e TextDelta) room() string      { return e.RoomID }
func (e DrawStroke) room() string     { return e.RoomID }
func (e CanvasClear) room() string    { return e.RoomID }
func (e CursorMove) room() string     { return e.RoomID }
func (e Typing) room() string         { return e.RoomID }
func (e EditStart) room() string      { return e.RoomID }
func (e EditStop) room() string       { return e.RoomID }
func (e PointsTransfer) room() string { return e.RoomID }

func (JoinRoom) kind() string       { return FrameJoin }
func (LeaveRoom) kind() string      { return FrameLeave }
func (ChatMessage) kind() string    { return FrameChat }
func (TextDelta) kind() string      { return FrameDelta }
func (DrawStroke) kind() string     { return FrameStroke }
func (CanvasClear) kind() string    { return FrameCanvasClear }
func (CursorMove) kind() string     { return FrameCursor }
func (Typing) kind() string         { return FrameTyping }
func (EditStart) kind() string      { return FrameEditStart }
func (EditStop) kind() string       { return FrameEditStop }
func (PointsTransfer) kind() string { return FramePoints }

// DecodeEvent maps a raw frame onto its typed event.
func DecodeEvent(frame models.WSFrame) (Event, error) {
	switch frame.Type {
	case FrameJoin:
		var ev JoinRoom
		return &ev, unmarshalData(frame.Data, &ev)
	case FrameLeave:
		var ev LeaveRoom
		return &ev, unmarshalData(frame.Data, &ev)
	case FrameChat:
		var ev ChatMessage
		return &ev, unmarshalData(frame.Data, &ev)
	case FrameDelta:
		var ev TextDelta
		return &ev, unmarshalData(frame.Data, &ev)
	case FrameStroke:
		var ev DrawStroke
		return &ev, unmarshalData(frame.Data, &ev)
	case FrameCanvasClear:
		var ev CanvasClear
		return &ev, unmarshalData(frame.Data, &ev)
	case FrameCursor:
		var ev CursorMove
		return &ev, unmarshalData(frame.Data, &ev)
	case FrameTyping:
		var ev Typing
		return &ev, unmarshalData(frame.Data, &ev)
	case FrameEditStart:
		var ev EditStart
		return &ev, unmarshalData(frame.Data, &ev)
	case FrameEditStop:
		var ev EditStop
		return &ev, unmarshalData(frame.Data, &ev)
	case FramePoints:
		var ev PointsTransfer
		return &ev, unmarshalData(frame.Data, &ev)
	default:
		return nil, fmt.Errorf("unknown frame type %q", frame.Type)
	}
}

func unmarshalData(in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func errFrame(code, msg string) models.WSFrame {
	return models.WSFrame{Type: FrameError, Data: models.ErrorPayload{Code: code, Message: msg}}
}
