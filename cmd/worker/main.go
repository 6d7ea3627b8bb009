package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atriumhq/atrium/internal/app"
	"github.com/atriumhq/atrium/internal/notify"
	"github.com/atriumhq/atrium/internal/platform/db"
	"github.com/atriumhq/atrium/internal/sessions"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	server := asynq.NewServer(redisOpts, asynq.Config{Concurrency: 5})

	deliverHandler := notify.NewHandler(notify.LogDeliverer{Logger: logger}, logger)
	sweeper := sessions.NewSweeper(sessions.NewStore(pool), logger)

	mux := asynq.NewServeMux()
	mux.HandleFunc(notify.TaskDeliver, deliverHandler.HandleDeliver)
	mux.HandleFunc(sessions.TaskSweep, sweeper.HandleSweep)

	scheduler := asynq.NewScheduler(redisOpts, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := scheduler.Register("@every 1h", sessions.NewSweepTask()); err != nil {
		logger.Error("register sweep schedule", slog.Any("error", err))
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		logger.Error("start scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down worker")
		scheduler.Shutdown()
		server.Shutdown()
	}()

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := server.Run(mux); err != nil {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
