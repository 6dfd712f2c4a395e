package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RoomRecords implements RoomDirectory on Redis. Each room keeps its allowed
// members in a set under room:{id}:members.
type RoomRecords struct {
	rdb *redis.Client
}

func NewRoomRecords(rdb *redis.Client) *RoomRecords {
	return &RoomRecords{rdb: rdb}
}

func memberKey(roomID string) string {
	return fmt.Sprintf("room:%s:members", roomID)
}

func (r *RoomRecords) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	return r.rdb.SIsMember(ctx, memberKey(roomID), userID).Result()
}

func (r *RoomRecords) Members(ctx context.Context, roomID string) ([]string, error) {
	members, err := r.rdb.SMembers(ctx, memberKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrRoomNotFound
	}
	return members, nil
}

// AddMember records durable membership. The REST CRUD layer that manages
// rooms writes through this; the hub only reads.
func (r *RoomRecords) AddMember(ctx context.Context, roomID, userID string) error {
	return r.rdb.SAdd(ctx, memberKey(roomID), userID).Err()
}

func (r *RoomRecords) RemoveMember(ctx context.Context, roomID, userID string) error {
	return r.rdb.SRem(ctx, memberKey(roomID), userID).Err()
}
