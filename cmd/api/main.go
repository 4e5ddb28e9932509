package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/leave-intake/internal/adapters/http"
	"github.com/kirillkom/leave-intake/internal/bootstrap"
	"github.com/kirillkom/leave-intake/internal/config"
	"github.com/kirillkom/leave-intake/internal/observability/logging"
	"github.com/kirillkom/leave-intake/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app.Executor.OnStateChange(func(operation string, _, to gobreaker.State) {
		httpMetrics.SetBreakerState(serviceName, operation, to)
	})

	router := httpadapter.NewRouter(
		cfg,
		app.ExtractUC,
		app.RegisterUC,
		app.Repo,
		app.Exporter,
		httpadapter.WithLogger(logger),
		httpadapter.WithMetrics(httpMetrics),
	).Handler()

	// Writes must outlast the model call on /extract-license.
	writeTimeout := config.Seconds(cfg.APIRequestTimeoutSeconds) + 10*time.Second
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := listen(server.Addr, cfg.APIMaxConnections)
	if err != nil {
		logger.Error("api_listen_failed", "addr", server.Addr, "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr, "max_connections", cfg.APIMaxConnections)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}

// listen caps accepted connections when maxConns is positive.
func listen(addr string, maxConns int) (net.Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		listener = netutil.LimitListener(listener, maxConns)
	}
	return listener, nil
}
