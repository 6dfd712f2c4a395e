package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"workhub/internal/hub"
	"workhub/internal/store"
)

// BoardFlusher periodically persists dirty board documents so the durable
// record trails the live document by at most one schedule interval.
type BoardFlusher struct {
	log      *zap.Logger
	hub      *hub.Hub
	hist     store.HistoryStore
	schedule string
	cron     *cron.Cron
}

func NewBoardFlusher(log *zap.Logger, h *hub.Hub, hist store.HistoryStore, schedule string) *BoardFlusher {
	return &BoardFlusher{
		log:      log,
		hub:      h,
		hist:     hist,
		schedule: schedule,
		cron:     cron.New(),
	}
}

func (f *BoardFlusher) Start() error {
	_, err := f.cron.AddFunc(f.schedule, f.flush)
	if err != nil {
		return err
	}
	f.cron.Start()
	f.log.Info("board flusher started", zap.String("schedule", f.schedule))
	return nil
}

func (f *BoardFlusher) Stop() {
	if f.cron != nil {
		f.cron.Stop()
	}
	f.flush()
}

func (f *BoardFlusher) flush() {
	for roomID, doc := range f.hub.DirtySnapshots() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := f.hist.WriteBoardSnapshot(ctx, roomID, doc)
		cancel()
		if err != nil {
			f.log.Error("board flush failed", zap.String("roomId", roomID), zap.Error(err))
		}
	}
}
