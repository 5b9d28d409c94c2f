package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/arar-storefront/internal/auth"
	"github.com/ariefcatur/arar-storefront/internal/catalog"
	"github.com/ariefcatur/arar-storefront/internal/checkout"
	"github.com/ariefcatur/arar-storefront/internal/config"
	"github.com/ariefcatur/arar-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/arar-storefront/internal/kafka"
	"github.com/ariefcatur/arar-storefront/internal/logx"
	"github.com/ariefcatur/arar-storefront/internal/orders"
	"github.com/ariefcatur/arar-storefront/internal/payment"
	"github.com/ariefcatur/arar-storefront/internal/postgres"
	"github.com/ariefcatur/arar-storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logx.New(cfg.Environment, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	warnings, err := cfg.Validate()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	for _, w := range warnings {
		logger.Warn(w)
	}
	logger.Info("configuration loaded",
		zap.String("environment", cfg.Environment), zap.String("stripe_mode", cfg.StripeMode()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, status cache and webhook dedup degraded", zap.Error(err))
	}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger)
	prod.Start(ctx)

	products := &catalog.Repo{DB: db}
	txs := &orders.Repo{DB: db}

	authSvc := &auth.Service{Store: &auth.Repo{DB: db}, Secret: []byte(cfg.JWTSecret), Log: logger}
	if err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}

	orch := &checkout.Orchestrator{
		Products:     products,
		Transactions: txs,
		Gateway: payment.NewStripe(payment.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Timeout:       cfg.PaymentTimeout,
		}),
		Events:         prod,
		Redis:          rdb,
		Log:            logger,
		Service:        cfg.ServiceName,
		GatewayTimeout: cfg.PaymentTimeout,
	}

	router := httpx.NewRouter(logger, cfg.CORSOrigin)
	(&httpx.CheckoutHandler{Checkout: orch, Log: logger, Timeout: cfg.PaymentTimeout + 2*time.Second}).Register(router)
	(&httpx.CatalogHandler{Products: products, Log: logger}).Register(router)
	(&httpx.AdminHandler{
		Auth:          authSvc,
		Products:      products,
		Orders:        txs,
		Discrepancies: &orders.DiscrepancyRepo{DB: db},
		Log:           logger,
	}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()
	prod.WaitClosed()
	cancel()
}
