package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/arar-storefront/internal/audit"
	"github.com/ariefcatur/arar-storefront/internal/config"
	kafkax "github.com/ariefcatur/arar-storefront/internal/kafka"
	"github.com/ariefcatur/arar-storefront/internal/logx"
	"github.com/ariefcatur/arar-storefront/internal/orders"
	"github.com/ariefcatur/arar-storefront/internal/postgres"
	"github.com/ariefcatur/arar-storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger, err := logx.New(cfg.Environment, cfg.ServiceName+"-auditor")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &audit.Service{
		Repo:  &orders.DiscrepancyRepo{DB: db},
		Redis: rdb,
		Log:   logger,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditorGroup, orders.TopicStockDiscrepancy, cfg.AuditorWorkers, logger)
	logger.Info("auditor consumer started",
		zap.String("group", cfg.AuditorGroup),
		zap.String("topic", orders.TopicStockDiscrepancy),
		zap.Int("workers", cfg.AuditorWorkers))

	if err := cons.Start(ctx, svc.HandleDiscrepancy); err != nil {
		logger.Error("consumer exit", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("auditor stopped")
}
