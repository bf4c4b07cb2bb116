package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pong/internal/api"
	"pong/internal/cluster"
	"pong/internal/config"
	"pong/internal/events"
	"pong/internal/logging"
	"pong/internal/stats"
	"pong/internal/storage"
)

// Workers sharing this queue group split the outcome stream.
const queueGroup = "pong-stats"

func main() {
	if err := run(); err != nil {
		slog.Error("stats worker stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	logger = logger.With("component", "stats-worker")
	if cfg.NATSURL == "" {
		return errors.New("PONG_NATS_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backends.Close()
	if backends.Stats == nil {
		return errors.New("the stats worker needs a PONG_STATS_BACKEND other than none")
	}

	nc, err := events.Connect(cfg.NATSURL, cfg.ServiceName+"-stats", logger)
	if err != nil {
		return err
	}
	defer nc.Close()

	store := backends.Stats
	sub, err := events.Subscribe(nc, cfg.NATSSubject, queueGroup, cfg.StatsTimeout,
		func(ctx context.Context, o stats.Outcome) error {
			logger.Debug("applying outcome", "match", o.MatchID, "winner", o.Winner)
			return stats.Apply(ctx, store, o)
		}, logger)
	if err != nil {
		return err
	}

	health := cluster.NewHealthAggregator(2 * time.Second)
	health.AddCheck("stats", store.Ping)
	health.AddCheck("nats", func(context.Context) error { return events.Healthy(nc) })
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(api.Routes{Health: health.Handler(), Stats: store, Logger: logger}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	logger.Info("stats worker running", "subject", cfg.NATSSubject, "queue", queueGroup, "addr", cfg.Addr)
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return errors.Join(sub.Drain(), httpServer.Shutdown(shutdownCtx))
}
