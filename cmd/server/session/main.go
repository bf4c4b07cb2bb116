package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"pong/internal/api"
	"pong/internal/auth"
	"pong/internal/cluster"
	"pong/internal/config"
	"pong/internal/events"
	"pong/internal/logging"
	"pong/internal/network"
	"pong/internal/session"
	"pong/internal/stats"
	"pong/internal/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("session server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration and logging.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Backends.
	backends, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backends.Close()

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = events.Connect(cfg.NATSURL, cfg.ServiceName, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
	}

	// 3. Game logic.
	reporterOpts := []stats.ReporterOption{
		stats.WithBuffer(cfg.StatsBuffer),
		stats.WithTimeout(cfg.StatsTimeout),
		stats.WithLogger(logger),
	}
	if nc != nil {
		reporterOpts = append(reporterOpts, stats.WithPublisher(events.NewPublisher(nc, cfg.NATSSubject)))
	}
	var direct stats.Store
	if cfg.SessionWritesStats() {
		direct = backends.Stats
	}
	reporter := stats.NewReporter(direct, reporterOpts...)

	handler := session.NewGameHandler(
		session.WithResolver(buildResolver(cfg, backends)),
		session.WithReporter(reporter),
		session.WithTickRate(cfg.TickRate),
		session.WithLogger(logger),
	)
	server := network.NewServer(handler, network.Options{
		SendBuffer:     cfg.SendBuffer,
		MaxMessageSize: cfg.MaxMessageBytes,
		Logger:         logger,
	})

	// 4. HTTP surface.
	health := cluster.NewHealthAggregator(2 * time.Second)
	if backends.Stats != nil {
		health.AddCheck("stats", backends.Stats.Ping)
	}
	if nc != nil {
		health.AddCheck("nats", func(context.Context) error { return events.Healthy(nc) })
	}

	routes := api.Routes{
		WebSocket: server,
		Health:    health.Handler(),
		Matches:   handler,
		StaticDir: cfg.StaticDir,
		Logger:    logger,
	}
	if backends.Stats != nil {
		routes.Stats = backends.Stats
	}
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(routes),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 5. Consul registration.
	var registration *cluster.Registration
	if cfg.ConsulAddr != "" {
		registration, err = register(cfg, logger)
		if err != nil {
			return err
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("session server listening", "addr", cfg.Addr, "tick_rate", cfg.TickRate, "stats", cfg.StatsBackend)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			registration.Deregister()
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	// 6. Graceful shutdown: leave Consul, stop accepting, close peers, drain stats.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	errs = append(errs, registration.Deregister())
	errs = append(errs, httpServer.Shutdown(shutdownCtx))
	server.Hub().CloseAll()
	errs = append(errs, handler.Close(shutdownCtx))
	errs = append(errs, reporter.Close(shutdownCtx))
	return errors.Join(errs...)
}

func buildResolver(cfg config.Config, backends *storage.Backends) auth.Resolver {
	var chain auth.Chain
	if cfg.JWTSecret != "" {
		chain = append(chain, auth.NewJWTResolver(cfg.JWTSecret))
	}
	if sessions := backends.Sessions(cfg); sessions != nil {
		chain = append(chain, sessions)
	}
	return chain
}

func register(cfg config.Config, logger *slog.Logger) (*cluster.Registration, error) {
	client, err := cluster.NewConsulClient(cfg.ConsulAddr, logger)
	if err != nil {
		return nil, err
	}
	_, portStr, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("parse PONG_ADDR: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parse PONG_ADDR port: %w", err)
	}
	return cluster.Register(client, cluster.Service{
		Name: cfg.ServiceName,
		Host: cfg.AdvertiseHost,
		Port: port,
		Tags: []string{"pong", "websocket"},
	}, logger)
}
