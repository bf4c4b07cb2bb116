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

	"github.com/gorilla/mux"

	"pong/internal/cluster"
	"pong/internal/config"
	"pong/internal/logging"
)

const pollInterval = 500 * time.Millisecond

func main() {
	if err := run(); err != nil {
		slog.Error("load balancer stopped", "error", err)
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
	if cfg.ConsulAddr == "" {
		return errors.New("PONG_CONSUL_ADDR is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := cluster.NewConsulClient(cfg.ConsulAddr, logger)
	if err != nil {
		return err
	}

	balancer := cluster.NewBalancer(logger)
	go balancer.Watch(ctx, client, cfg.ServiceName)
	go balancer.RunPoller(ctx, &http.Client{Timeout: pollInterval}, pollInterval)

	health := cluster.NewHealthAggregator(2 * time.Second)
	health.AddCheck("backends", func(context.Context) error {
		if len(balancer.Backends()) == 0 {
			return fmt.Errorf("no healthy %s instance", cfg.ServiceName)
		}
		return nil
	})

	r := mux.NewRouter()
	r.Handle("/healthz", health.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(balancer)

	server := &http.Server{Addr: cfg.Addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("load balancer listening", "addr", cfg.Addr, "service", cfg.ServiceName)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
