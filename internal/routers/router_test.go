package routers

import (
	"context"
	"net/http"
	"net/http/httptest"
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

type noopUsers struct{}

func (noopUsers) FindUser(context.Context, string) (models.UserIdentity, error) {
	return models.UserIdentity{}, store.ErrUserNotFound
}

func (noopUsers) IncrementPoints(context.Context, string, store.PointsField, int) (int64, error) {
	return 0, nil
}

type noopHistory struct{}

func (noopHistory) AppendMessage(context.Context, store.ChatRecord) error          { return nil }
func (noopHistory) WriteBoardSnapshot(context.Context, string, models.BoardDoc) error { return nil }

type noopRooms struct{}

func (noopRooms) IsMember(context.Context, string, string) (bool, error) { return false, nil }
func (noopRooms) Members(context.Context, string) ([]string, error) {
	return nil, store.ErrRoomNotFound
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:      "test-secret",
		AdmitTimeout:   time.Second,
		PersistTimeout: time.Second,
		PointsMin:      1,
		PointsMax:      100,
	}
	h := hub.New(zap.NewNop(), cfg, noopUsers{}, noopHistory{}, noopRooms{})
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
	return New(zap.NewNop(), h)
}

func TestHealthEndpoints(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestMetricsExposed(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestBoardNotFound(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/nope/board", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSocketRequiresToken(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
