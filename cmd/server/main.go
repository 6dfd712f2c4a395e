package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"workhub/internal/config"
	"workhub/internal/hub"
	"workhub/internal/jobs"
	"workhub/internal/routers"
	"workhub/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoStore, err := store.NewMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	roomRecords := store.NewRoomRecords(rdb)

	h := hub.New(logger, cfg, mongoStore, mongoStore, roomRecords)
	go h.Run(ctx)

	flusher := jobs.NewBoardFlusher(logger, h, mongoStore, cfg.BoardFlushSchedule)
	if err := flusher.Start(); err != nil {
		log.Fatalf("board flusher: %v", err)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: routers.New(logger, h),
	}

	go func() {
		log.Printf("workhub listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	flusher.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}
