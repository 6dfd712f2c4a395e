package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workhub/internal/models"
	"workhub/internal/store"
)

func TestNonOccupantMutationsRejected(t *testing.T) {
	h, users, hist, rooms := newTestHub(t)
	rooms.allow("r1", "u1", "v1")

	u, _ := admit(t, h, "u1", "Uma")
	v, capV := admit(t, h, "v1", "Vik")
	w, capW := admit(t, h, "w1", "Wen") // online, never joined r1
	mustJoin(t, h, u, "r1")
	mustJoin(t, h, v, "r1")

	capV.reset()
	h.Dispatch(w, &ChatMessage{RoomID: "r1", Text: "hi"})
	h.Dispatch(w, &EditStart{RoomID: "r1"})
	h.Dispatch(w, &TextDelta{RoomID: "r1", Delta: models.BoardDelta{BaseVersion: 1, Insert: "x"}})
	h.Dispatch(w, &PointsTransfer{RoomID: "r1", To: "v1", Amount: 5})
	h.call(func() {})

	// each rejected action answers the sender alone
	rejections := capW.ofType(FrameRoomError)
	require.Len(t, rejections, 4)
	assert.Equal(t, "room_access_denied", rejections[0].Data.(models.ErrorPayload).Code)
	assert.Empty(t, capV.list(), "occupants must not observe rejected actions")

	// and nothing mutated
	assert.Empty(t, h.ActiveEditors("r1"))
	doc, _ := h.Board("r1")
	assert.Equal(t, "", doc.Text)
	assert.Zero(t, users.total("w1", store.FieldGiven))
	assert.Zero(t, users.total("v1", store.FieldReceived))
	assert.Zero(t, hist.messageCount())
}

func TestDurableMemberMustJoinBeforeMutating(t *testing.T) {
	h, _, _, rooms := newTestHub(t)
	rooms.allow("r1", "u1", "v1")

	u, _ := admit(t, h, "u1", "Uma")
	v, capV := admit(t, h, "v1", "Vik") // durable member, has not joined
	mustJoin(t, h, u, "r1")

	h.Dispatch(v, &ChatMessage{RoomID: "r1", Text: "early"})
	h.call(func() {})
	require.Len(t, capV.ofType(FrameRoomError), 1)

	// joining lifts the gate
	mustJoin(t, h, v, "r1")
	capV.reset()
	h.Dispatch(v, &ChatMessage{RoomID: "r1", Text: "hi"})
	h.call(func() {})
	assert.Empty(t, capV.ofType(FrameRoomError))
	assert.Len(t, capV.ofType(FrameChat), 1)
}

func TestChatReachesWholeRoomIncludingSender(t *testing.T) {
	h, _, hist, rooms := newTestHub(t)
	rooms.allow("r1", "u1", "v1")
	rooms.allow("r2", "w1")

	u, capU := admit(t, h, "u1", "Uma")
	v, capV := admit(t, h, "v1", "Vik")
	w, capW := admit(t, h, "w1", "Wen")
	mustJoin(t, h, u, "r1")
	mustJoin(t, h, v, "r1")
	mustJoin(t, h, w, "r2")

	capU.reset()
	capV.reset()
	capW.reset()
	h.Dispatch(u, &ChatMessage{RoomID: "r1", Text: "hi"})
	h.call(func() {})

	for _, cap := range []*frameCapture{capU, capV} {
		frames := cap.ofType(FrameChat)
		require.Len(t, frames, 1)
		msg := frames[0].Data.(models.ChatPayload)
		assert.Equal(t, "u1", msg.UserID)
		assert.Equal(t, "Uma", msg.DisplayName)
		assert.Equal(t, "hi", msg.Text)
		assert.Equal(t, "r1", msg.RoomID)
		assert.NotEmpty(t, msg.MessageID)
	}
	// no leakage into other rooms
	assert.Empty(t, capW.ofType(FrameChat))

	// persisted best-effort after fan-out
	require.Eventually(t, func() bool { return hist.messageCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestDeltaExcludesSenderAndAcks(t *testing.T) {
	h, _, _, rooms := newTestHub(t)
	rooms.allow("r1", "u1", "v1")

	u, capU := admit(t, h, "u1", "Uma")
	v, capV := admit(t, h, "v1", "Vik")
	mustJoin(t, h, u, "r1")
	mustJoin(t, h, v, "r1")

	capU.reset()
	capV.reset()
	h.Dispatch(u, &TextDelta{RoomID: "r1", Delta: models.BoardDelta{
		BaseVersion: 1,
		Position:    0,
		Insert:      "hello",
	}})
	h.call(func() {})

	deltas := capV.ofType(FrameDelta)
	require.Len(t, deltas, 1)
	got := deltas[0].Data.(models.DeltaPayload)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "hello", got.Delta.Insert)
	assert.Equal(t, 2, got.Delta.Version)

	// the sender gets a board ack, not its own delta back
	assert.Empty(t, capU.ofType(FrameDelta))
	boards := capU.ofType(FrameBoard)
	require.Len(t, boards, 1)
	assert.Equal(t, models.BoardDoc{Text: "hello", Version: 2}, boards[0].Data.(models.BoardDoc))
}

func TestStaleDeltaGetsResync(t *testing.T) {
	h, _, _, rooms := newTestHub(t)
	rooms.allow("r1", "u1", "v1")

	u, _ := admit(t, h, "u1", "Uma")
	v, capV := admit(t, h, "v1", "Vik")
	mustJoin(t, h, u, "r1")
	mustJoin(t, h, v, "r1")

	h.Dispatch(u, &TextDelta{RoomID: "r1", Delta: models.BoardDelta{BaseVersion: 1, Insert: "a"}})
	h.call(func() {})

	capV.reset()
	h.Dispatch(v, &TextDelta{RoomID: "r1", Delta: models.BoardDelta{BaseVersion: 1, Insert: "b"}})
	h.call(func() {})

	errs := capV.ofType(FrameError)
	require.Len(t, errs, 1)
	assert.Equal(t, "version_mismatch", errs[0].Data.(models.ErrorPayload).Code)
	boards := capV.ofType(FrameBoard)
	require.Len(t, boards, 1)
	assert.Equal(t, "a", boards[0].Data.(models.BoardDoc).Text)
}

func TestStrokeAndTypingExcludeSender(t *testing.T) {
	h, _, _, rooms := newTestHub(t)
	rooms.allow("r1", "u1", "v1")

	u, capU := admit(t, h, "u1", "Uma")
	v, capV := admit(t, h, "v1", "Vik")
	mustJoin(t, h, u, "r1")
	mustJoin(t, h, v, "r1")

	capU.reset()
	capV.reset()
	h.Dispatch(u, &DrawStroke{RoomID: "r1", Stroke: json.RawMessage(`{"points":[[0,0],[3,4]]}`)})
	h.Dispatch(u, &Typing{RoomID: "r1", Active: true})
	h.Dispatch(u, &CanvasClear{RoomID: "r1"})
	h.call(func() {})

	assert.Len(t, capV.ofType(FrameStroke), 1)
	assert.Len(t, capV.ofType(FrameTyping), 1)
	assert.Len(t, capV.ofType(FrameCanvasClear), 1)
	assert.Empty(t, capU.list())
}

func TestDeliveryMissIsDroppedSilently(t *testing.T) {
	h, _, _, rooms := newTestHub(t)
	rooms.allow("r1", "u1", "v1")

	u, _ := admit(t, h, "u1", "Uma")
	v, _ := admit(t, h, "v1", "Vik")
	mustJoin(t, h, u, "r1")
	mustJoin(t, h, v, "r1")

	// simulate the gap between resolution and delivery: occupancy still
	// lists v1 but its presence entry is gone
	h.call(func() { delete(h.presence, "v1") })

	h.Dispatch(u, &ChatMessage{RoomID: "r1", Text: "anyone there?"})
	h.call(func() {}) // must not panic, no error surfaces to the sender
}
