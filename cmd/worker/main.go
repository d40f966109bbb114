// Package main runs the background worker: email delivery jobs and the
// waitlist offer reaper.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/whtouche/gather-sub002/config"
	"github.com/whtouche/gather-sub002/internal/auth"
	"github.com/whtouche/gather-sub002/internal/events"
	"github.com/whtouche/gather-sub002/internal/messaging"
	"github.com/whtouche/gather-sub002/internal/notify"
	"github.com/whtouche/gather-sub002/internal/waitlist"
	"github.com/whtouche/gather-sub002/internal/worker"
	"github.com/whtouche/gather-sub002/pkg/database"
	"github.com/whtouche/gather-sub002/pkg/mailer"
	"github.com/whtouche/gather-sub002/pkg/queue"
	"github.com/whtouche/gather-sub002/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	mail := mailer.New(cfg.Email, logger)

	userRepo := auth.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	messagingRepo := messaging.NewRepository(pool)
	processor := worker.NewProcessor(jobQueue, mail, userRepo, eventRepo, messagingRepo, logger)

	// The reaper expires lapsed seat offers and promotes the next entrant;
	// offer notifications go back through the same job queue.
	waitlistRepo := waitlist.NewRepository(pool)
	claimWindow := time.Duration(cfg.Waitlist.ClaimWindowMinutes) * time.Minute
	waitlistSvc := waitlist.NewService(waitlistRepo, eventRepo, notify.NewQueueNotifier(jobQueue, logger), claimWindow, logger)
	reaper := worker.NewReaper(waitlistSvc,
		time.Duration(cfg.Waitlist.ReapIntervalSeconds)*time.Second,
		cfg.Waitlist.ReapBatchSize, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	go reaper.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
