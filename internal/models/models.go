package models

import "time"

// WSFrame is the envelope for every message on the workspace socket.
type WSFrame struct {
	Type string      `json:"type"` // see events.go in internal/hub for the closed set
	Data interface{} `json:"data"`
}

// UserIdentity is the durable identity loaded once at admission time.
type UserIdentity struct {
	ID          string `json:"id" bson:"_id"`
	DisplayName string `json:"displayName" bson:"displayName"`
	Email       string `json:"email" bson:"email"`
}

// PresenceEntry mirrors one currently-online user. Keyed by user ID, not by
// connection: a user holds at most one entry regardless of connection count.
type PresenceEntry struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	ConnID      string    `json:"connId"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Occupant is one live member of a room's occupancy set.
type Occupant struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
	LastSeen    time.Time `json:"lastSeen"`
}

// Editor is one member of a room's editing-session set.
type Editor struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Position    int    `json:"position"`
}

/*** Shared text board ***/

// BoardDoc is the authoritative document snapshot for a room.
type BoardDoc struct {
	Text    string `json:"text"`
	Version int    `json:"version"`
}

// BoardDelta is a single edit against a known base version.
type BoardDelta struct {
	BaseVersion int    `json:"baseVersion"`
	Position    int    `json:"position"`
	Delete      int    `json:"numDelete"`
	Insert      string `json:"insert"`
	Version     int    `json:"version,omitempty"` // assigned by the hub on apply
}

/*** Outbound payloads ***/

type WelcomePayload struct {
	You      UserIdentity    `json:"you"`
	ConnID   string          `json:"connId"`
	Presence []PresenceEntry `json:"presence"`
}

type RoomJoinedPayload struct {
	RoomID    string     `json:"roomId"`
	Occupants []Occupant `json:"occupants"`
	Board     BoardDoc   `json:"board"`
}

type PeerPayload struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type CursorPayload struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Position    int    `json:"position"`
}

type ChatPayload struct {
	MessageID   string    `json:"messageId"`
	RoomID      string    `json:"roomId"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sentAt"`
}

type DeltaPayload struct {
	RoomID      string     `json:"roomId"`
	UserID      string     `json:"userId"`
	DisplayName string     `json:"displayName"`
	Delta       BoardDelta `json:"delta"`
}

type StrokePayload struct {
	RoomID      string      `json:"roomId"`
	UserID      string      `json:"userId"`
	DisplayName string      `json:"displayName"`
	Stroke      interface{} `json:"stroke"`
}

type TypingPayload struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Active      bool   `json:"active"`
}

// PointsUpdatePayload carries the authoritative post-increment totals read
// back from the store, never locally guessed ones.
type PointsUpdatePayload struct {
	RoomID        string    `json:"roomId"`
	FromUserID    string    `json:"fromUserId"`
	FromName      string    `json:"fromName"`
	ToUserID      string    `json:"toUserId"`
	ToName        string    `json:"toName"`
	Amount        int       `json:"amount"`
	FromGiven     int64     `json:"fromGivenTotal"`
	ToReceived    int64     `json:"toReceivedTotal"`
	TransferredAt time.Time `json:"transferredAt"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
