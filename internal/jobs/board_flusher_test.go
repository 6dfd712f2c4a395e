package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"workhub/internal/config"
	"workhub/internal/hub"
	"workhub/internal/models"
	"workhub/internal/store"
)

type stubUsers struct{}

func (stubUsers) FindUser(_ context.Context, userID string) (models.UserIdentity, error) {
	return models.UserIdentity{ID: userID, DisplayName: userID}, nil
}

func (stubUsers) IncrementPoints(context.Context, string, store.PointsField, int) (int64, error) {
	return 0, nil
}

type recordingHistory struct {
	mu     sync.Mutex
	boards map[string]models.BoardDoc
}

func (r *recordingHistory) AppendMessage(context.Context, store.ChatRecord) error { return nil }

func (r *recordingHistory) WriteBoardSnapshot(_ context.Context, roomID string, doc models.BoardDoc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boards[roomID] = doc
	return nil
}

func (r *recordingHistory) board(roomID string) (models.BoardDoc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.boards[roomID]
	return doc, ok
}

type openRooms struct{}

func (openRooms) IsMember(context.Context, string, string) (bool, error) { return true, nil }
func (openRooms) Members(context.Context, string) ([]string, error)      { return nil, nil }

func newDirtyHub(t *testing.T, hist *recordingHistory) *hub.Hub {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:      "test-secret",
		AdmitTimeout:   time.Second,
		PersistTimeout: time.Second,
		PointsMin:      1,
		PointsMax:      100,
	}
	h := hub.New(zap.NewNop(), cfg, stubUsers{}, hist, openRooms{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	c := hub.NewClient(nil)
	c.SetSendHook(func(models.WSFrame) {})
	h.Register(c, models.UserIdentity{ID: "u1", DisplayName: "Uma"})
	_, err := h.Join(context.Background(), c, "r1")
	require.NoError(t, err)

	h.Dispatch(c, &hub.TextDelta{RoomID: "r1", Delta: models.BoardDelta{
		BaseVersion: 1,
		Insert:      "hello",
	}})
	require.Eventually(t, func() bool {
		doc, ok := h.Board("r1")
		return ok && doc.Version == 2
	}, time.Second, 10*time.Millisecond)
	return h
}

func TestStopFlushesDirtyBoards(t *testing.T) {
	hist := &recordingHistory{boards: make(map[string]models.BoardDoc)}
	h := newDirtyHub(t, hist)

	f := NewBoardFlusher(zap.NewNop(), h, hist, "@every 1h")
	require.NoError(t, f.Start())
	f.Stop()

	doc, ok := hist.board("r1")
	require.True(t, ok)
	assert.Equal(t, "hello", doc.Text)
	assert.Equal(t, 2, doc.Version)
}

func TestFlushSkipsCleanBoards(t *testing.T) {
	hist := &recordingHistory{boards: make(map[string]models.BoardDoc)}
	h := newDirtyHub(t, hist)

	f := NewBoardFlusher(zap.NewNop(), h, hist, "@every 1h")
	f.Stop()
	_, ok := hist.board("r1")
	require.True(t, ok)

	// dirty marks were cleared by the first pass; a second pass writes nothing
	delete(hist.boards, "r1")
	f.Stop()
	_, ok = hist.board("r1")
	assert.False(t, ok)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	hist := &recordingHistory{boards: make(map[string]models.BoardDoc)}
	h := newDirtyHub(t, hist)

	f := NewBoardFlusher(zap.NewNop(), h, hist, "not a schedule")
	assert.Error(t, f.Start())
}
