package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/sokoplace/sokoplace-backend/api/routes"
	"github.com/sokoplace/sokoplace-backend/internal/auth"
	"github.com/sokoplace/sokoplace-backend/internal/deliveries"
	"github.com/sokoplace/sokoplace-backend/internal/inventory"
	"github.com/sokoplace/sokoplace-backend/internal/notifications"
	"github.com/sokoplace/sokoplace-backend/internal/orders"
	"github.com/sokoplace/sokoplace-backend/internal/payments"
	"github.com/sokoplace/sokoplace-backend/internal/refunds"
	"github.com/sokoplace/sokoplace-backend/internal/stream"
	paystackwebhook "github.com/sokoplace/sokoplace-backend/internal/webhooks/paystack"
	"github.com/sokoplace/sokoplace-backend/pkg/config"
	"github.com/sokoplace/sokoplace-backend/pkg/db"
	"github.com/sokoplace/sokoplace-backend/pkg/email"
	"github.com/sokoplace/sokoplace-backend/pkg/geo"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/metrics"
	"github.com/sokoplace/sokoplace-backend/pkg/migrate"
	"github.com/sokoplace/sokoplace-backend/pkg/paystack"
	"github.com/sokoplace/sokoplace-backend/pkg/redis"
)

const webhookDedupeTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	pricing := pricingFromConfig(cfg.Delivery)

	var mail email.Mailer
	if cfg.Email.APIKey != "" {
		httpMailer, err := email.NewHTTPMailer(cfg.Email)
		if err != nil {
			logg.Error(context.Background(), "failed to create mailer", err)
			os.Exit(1)
		}
		mail = httpMailer
	} else {
		mail = email.NewLogMailer(logg)
	}

	notifRepo := notifications.NewRepository(gormDB)
	dispatcher, err := notifications.NewDispatcher(notifRepo, mail, logg)
	exitOn(logg, "notifications dispatcher", err)

	notifSvc, err := notifications.NewService(notifRepo)
	exitOn(logg, "notifications service", err)

	invSvc, err := inventory.NewService(inventory.NewRepository(gormDB), redisClient, dispatcher, logg)
	exitOn(logg, "inventory service", err)

	ordersSvc, err := orders.NewService(
		orders.NewRepository(gormDB), dbClient, invSvc, pricing, cfg.Platform.FeePercent, dispatcher, logg)
	exitOn(logg, "orders service", err)

	gateway, err := paystack.NewClient(cfg.Paystack.SecretKey,
		paystack.WithBaseURL(cfg.Paystack.BaseURL),
		paystack.WithHTTPClient(&http.Client{Timeout: cfg.Paystack.Timeout}))
	exitOn(logg, "paystack client", err)

	deliveriesSvc, err := deliveries.NewService(
		deliveries.NewRepository(gormDB), dispatcher, paymentMetrics, logg)
	exitOn(logg, "deliveries service", err)

	paymentsSvc, err := payments.NewService(
		payments.NewRepository(gormDB), dbClient, gateway, deliveriesSvc, dispatcher, pricing, paymentMetrics, logg)
	exitOn(logg, "payments service", err)

	refundsSvc, err := refunds.NewService(
		refunds.NewRepository(gormDB), dbClient, gateway, invSvc, dispatcher, paymentMetrics,
		cfg.FeatureFlags.CancelBlocksOnRefund, logg)
	exitOn(logg, "refunds service", err)

	streamSvc, err := stream.NewService(stream.NewRepository(gormDB), stream.DefaultPollInterval, logg)
	exitOn(logg, "stream service", err)

	authSvc, err := auth.NewService(auth.NewRepository(gormDB), dbClient, cfg.JWT, cfg.Password, logg)
	exitOn(logg, "auth service", err)

	webhookSvc, err := paystackwebhook.NewService(paymentsSvc, refundsSvc, logg)
	exitOn(logg, "webhook service", err)

	webhookGuard, err := paystackwebhook.NewIdempotencyGuard(redisClient, webhookDedupeTTL)
	exitOn(logg, "webhook guard", err)

	router := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Auth:          authSvc,
		Orders:        ordersSvc,
		Payments:      paymentsSvc,
		Deliveries:    deliveriesSvc,
		Refunds:       refundsSvc,
		Notifications: notifSvc,
		Stream:        streamSvc,
		Webhook:       webhookSvc,
		WebhookGuard:  webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stop:
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func pricingFromConfig(cfg config.DeliveryConfig) geo.PricingModel {
	return geo.PricingModel{
		BaseFee:      decimal.NewFromFloat(cfg.BaseFee),
		PerKMFee:     decimal.NewFromFloat(cfg.PerKMFee),
		MinFee:       decimal.NewFromFloat(cfg.MinFee),
		MaxFee:       decimal.NewFromFloat(cfg.MaxFee),
		BaseMinutes:  cfg.BaseMins,
		MinutesPerKM: cfg.MinsPerKM,
	}
}

func exitOn(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+resource, err)
	os.Exit(1)
}
