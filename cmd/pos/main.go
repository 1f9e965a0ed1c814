package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/pharmacy-pos/internal/cart"
	"github.com/joao-fontenele/pharmacy-pos/internal/checkout"
	"github.com/joao-fontenele/pharmacy-pos/internal/config"
	"github.com/joao-fontenele/pharmacy-pos/internal/pos"
	"github.com/joao-fontenele/pharmacy-pos/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var cfg config.POS
	if err := config.Load(&cfg); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "pos", cfg.ServiceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("pos", cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	storage, closeStorage, err := openCartStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open cart storage", "error", err)
		os.Exit(1)
	}
	defer closeStorage()

	store := cart.Open(ctx, storage, logger)
	defer store.Close()

	httpClient := telemetry.NewHTTPClient(cfg.RequestTimeout)
	backend := checkout.NewHTTPBackend(cfg.SalesURL, httpClient)
	orch := checkout.NewOrchestrator(store, backend, logger)
	handler := pos.NewHandler(store, orch, pos.NewServiceProxy(cfg.SalesURL, httpClient), logger)

	mux := pos.Routes(handler)
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.InstrumentServer(mux, "pos"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("starting pos service", "port", cfg.Port, "terminal_id", cfg.TerminalID)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// openCartStorage keeps the cart in Redis when REDIS_URL is set and in a
// local file otherwise.
func openCartStorage(ctx context.Context, cfg config.POS, logger *slog.Logger) (cart.Storage, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info("cart persisted to file", "path", cfg.CartFile)
		return cart.NewFileStorage(cfg.CartFile), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	logger.Info("cart persisted to redis", "addr", opts.Addr, "terminal_id", cfg.TerminalID)
	return cart.NewRedisStorage(client, cfg.TerminalID), func() { _ = client.Close() }, nil
}
