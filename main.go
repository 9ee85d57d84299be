package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appInventory "github.com/aranya-atelier/checkout-core/internal/application/inventory"
	appOrder "github.com/aranya-atelier/checkout-core/internal/application/order"
	dominv "github.com/aranya-atelier/checkout-core/internal/domain/inventory"
	"github.com/aranya-atelier/checkout-core/internal/infrastructure/audit"
	httptransport "github.com/aranya-atelier/checkout-core/internal/infrastructure/http"
	"github.com/aranya-atelier/checkout-core/internal/infrastructure/id"
	"github.com/aranya-atelier/checkout-core/internal/infrastructure/memory"
	"github.com/aranya-atelier/checkout-core/internal/infrastructure/observability/oteltrace"
	"github.com/aranya-atelier/checkout-core/internal/infrastructure/observability/prometrics"
	"github.com/aranya-atelier/checkout-core/internal/infrastructure/observability/telemetry"
	"github.com/aranya-atelier/checkout-core/internal/infrastructure/observability/zaplogger"
	"github.com/aranya-atelier/checkout-core/internal/infrastructure/outbox"
	"github.com/aranya-atelier/checkout-core/internal/infrastructure/razorpay"
	"github.com/aranya-atelier/checkout-core/internal/infrastructure/redisinv"
	"github.com/aranya-atelier/checkout-core/internal/observability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type config struct {
	HTTPAddr    string
	ServiceName string
	Env         string
	Currency    string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	RazorpayBaseURL       string

	InventoryBackend string // "memory" or "redis"
	RedisAddr        string
}

func loadConfig() config {
	return config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		ServiceName: getEnv("SERVICE_NAME", "checkout"),
		Env:         getEnv("ENV", "dev"),
		Currency:    getEnv("CURRENCY", "INR"),

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		RazorpayBaseURL:       os.Getenv("RAZORPAY_BASE_URL"),

		InventoryBackend: getEnv("INVENTORY_BACKEND", "memory"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	cfg := loadConfig()

	logger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)
	defer func() {
		if s, ok := logger.(interface{ Sync() error }); ok {
			_ = s.Sync()
		}
	}()

	tel := buildTelemetry(cfg.ServiceName, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stock, err := buildInventoryStore(ctx, cfg)
	if err != nil {
		logger.Error("inventory_store_init_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}
	orders := memory.NewOrderRepository()
	processed := memory.NewProcessedEventStore()

	bus := outbox.NewBus(logger)
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	auditWorker := audit.New(bus, tel)
	auditWorker.Start()

	gateway := razorpay.NewClient(razorpay.Config{
		KeyID:     cfg.RazorpayKeyID,
		KeySecret: cfg.RazorpayKeySecret,
		BaseURL:   cfg.RazorpayBaseURL,
	}, logger)
	webhookCodec := razorpay.NewWebhookVerifier(cfg.RazorpayWebhookSecret)

	placeUC := appOrder.NewPlaceOrderUseCase(orders, stock, gateway, id.NewUUIDGenerator(), bus, cfg.Currency, tel)
	confirmUC := appOrder.NewConfirmPaymentUseCase(orders, stock, gateway, bus, tel)
	webhookUC := appOrder.NewProcessWebhookUseCase(orders, stock, webhookCodec, processed, bus, tel)
	orderSvc := appOrder.NewService(orders)
	inventorySvc := appInventory.NewService(stock, tel)

	handler := httptransport.NewHandler(placeUC, confirmUC, webhookUC, orderSvc, inventorySvc, logger)

	router := chi.NewRouter()
	router.Use(httptransport.ObservabilityMiddleware(tel))
	handler.Routes(router)
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listening", observability.F("addr", cfg.HTTPAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal_received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_failed", observability.F("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", observability.F("error", err.Error()))
	}
	logger.Info("server_stopped")
}

func buildInventoryStore(ctx context.Context, cfg config) (dominv.Store, error) {
	switch cfg.InventoryBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		return redisinv.New(client), nil
	default:
		return memory.NewInventoryStore(), nil
	}
}

func buildTelemetry(service string, logger observability.Logger) observability.Observability {
	registry := prometrics.New(service, "")
	latencyBuckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			string(observability.MUsecaseRequests), "Use case executions by outcome.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: registry.Counter(
			string(observability.MHTTPRequests), "HTTP requests by route and status.",
			"method", "route", "status",
		),
		observability.MExternalRequests: registry.Counter(
			string(observability.MExternalRequests), "Outbound calls to external peers.",
			"peer", "endpoint", "outcome",
		),
		observability.MWebhookEvents: registry.Counter(
			string(observability.MWebhookEvents), "Webhook deliveries by outcome.",
			"outcome",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			string(observability.MUsecaseDuration), "Use case latency.",
			latencyBuckets, "use_case",
		),
		observability.MHTTPRequestDuration: registry.Histogram(
			string(observability.MHTTPRequestDuration), "HTTP request latency.",
			latencyBuckets, "method", "route",
		),
		observability.MExternalRequestDuration: registry.Histogram(
			string(observability.MExternalRequestDuration), "Outbound call latency.",
			latencyBuckets, "peer", "endpoint",
		),
	}

	return telemetry.New(oteltrace.New("checkout"), logger, counters, histograms)
}
