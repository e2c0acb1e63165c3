package main

import (
	"context"
	"github.com/ariefcatur/go-workshop-orders/internal/alerts"
	"github.com/ariefcatur/go-workshop-orders/internal/config"
	kafkax "github.com/ariefcatur/go-workshop-orders/internal/kafka"
	"github.com/ariefcatur/go-workshop-orders/internal/logging"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/ariefcatur/go-workshop-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if len(cfg.KafkaBrokers) == 0 || cfg.RedisAddr == "" {
		logger.Fatal("alerts worker needs KAFKA_BROKERS and REDIS_ADDR")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &alerts.Service{
		Store:       redisx.Alerts{R: rdb},
		Log:         logger.Named("alerts"),
		ServiceName: cfg.ServiceName + "-alerts",
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AlertsGroup, orders.TopicStockChanged, cfg.AlertsWorkers, logger.Named("kafka"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("stock alerts consumer started",
			zap.String("group", cfg.AlertsGroup), zap.String("topic", orders.TopicStockChanged), zap.Int("workers", cfg.AlertsWorkers))
		if err := cons.Start(ctx, svc.HandleStockChanged); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer")
	cancel()
	<-done
}
