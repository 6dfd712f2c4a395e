package store

import (
	"context"
	"errors"
	"time"

	"workhub/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrRoomNotFound = errors.New("room not found")
)

// PointsField names one of the two per-user transfer counters.
type PointsField string

const (
	FieldGiven    PointsField = "pointsGiven"
	FieldReceived PointsField = "pointsReceived"
)

// ChatRecord is the durable form of a chat message.
type ChatRecord struct {
	MessageID   string    `bson:"_id"`
	RoomID      string    `bson:"roomId"`
	UserID      string    `bson:"userId"`
	DisplayName string    `bson:"displayName"`
	Text        string    `bson:"text"`
	SentAt      time.Time `bson:"sentAt"`
}

// UserStore resolves identities and settles points transfers.
type UserStore interface {
	FindUser(ctx context.Context, userID string) (models.UserIdentity, error)
	// IncrementPoints atomically adds amount to the named counter and
	// returns the post-increment total.
	IncrementPoints(ctx context.Context, userID string, field PointsField, amount int) (int64, error)
}

// HistoryStore holds durable chat and board records. Writes are issued
// best-effort by the hub for chat and deltas, synchronously for flushes.
type HistoryStore interface {
	AppendMessage(ctx context.Context, rec ChatRecord) error
	WriteBoardSnapshot(ctx context.Context, roomID string, doc models.BoardDoc) error
}

// RoomDirectory answers durable-membership questions: who is allowed in a
// room. Live occupancy is the hub's concern, not this one's.
type RoomDirectory interface {
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	Members(ctx context.Context, roomID string) ([]string, error)
}
