package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/joao-fontenele/pharmacy-pos/internal/catalog"
	"github.com/joao-fontenele/pharmacy-pos/internal/config"
	"github.com/joao-fontenele/pharmacy-pos/internal/messaging"
	"github.com/joao-fontenele/pharmacy-pos/internal/sales"
	"github.com/joao-fontenele/pharmacy-pos/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var cfg config.Sales
	if err := config.Load(&cfg); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "sales", cfg.ServiceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("sales", cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	dsn, err := withSearchPath(cfg.PostgresURL, cfg.SearchPath)
	if err != nil {
		logger.Error("invalid POSTGRES_URL", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", dsn)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var publisher sales.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.Topic)
		defer func() { _ = producer.Close() }()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, completed orders will not be announced")
	}

	products := catalog.NewProductRepository(db)
	catalogHandler := catalog.NewHandler(products, logger)
	salesHandler := sales.NewHandler(sales.NewService(sales.NewOrderRepository(db), products, publisher, logger), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /inventory/products", telemetry.WithHTTPRoute(catalogHandler.HandleSearch))
	mux.HandleFunc("GET /inventory/products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleGet))
	mux.HandleFunc("POST /sales/orders", telemetry.WithHTTPRoute(salesHandler.HandleCreate))
	mux.HandleFunc("GET /sales/orders/{id}", telemetry.WithHTTPRoute(salesHandler.HandleGet))
	mux.HandleFunc("POST /sales/orders/{id}/complete", telemetry.WithHTTPRoute(salesHandler.HandleComplete))
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.InstrumentServer(mux, "sales"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting sales service", "port", cfg.Port)
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

// withSearchPath sets search_path as a connection parameter so every
// pooled connection resolves unqualified tables the same way.
func withSearchPath(dsn, searchPath string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("search_path", searchPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
