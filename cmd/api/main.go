package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-workshop-orders/internal/config"
	"github.com/ariefcatur/go-workshop-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-workshop-orders/internal/kafka"
	"github.com/ariefcatur/go-workshop-orders/internal/logging"
	"github.com/ariefcatur/go-workshop-orders/internal/memstore"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/ariefcatur/go-workshop-orders/internal/postgres"
	"github.com/ariefcatur/go-workshop-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var store orders.Store
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory demo store; data is lost on exit")
		store = memstore.NewDemo()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PGMaxConns)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		store = &postgres.Store{DB: db}
	}

	// Kafka producer (optional)
	var (
		events orders.EventSink
		prod   *kafkax.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger.Named("kafka"))
		prod.Start(ctx)
		events = kafkax.Sink{P: prod}
	} else {
		logger.Warn("KAFKA_BROKERS empty; events are discarded")
	}

	deps := orders.Deps{
		Store:    store,
		Events:   events,
		Logger:   logger.Named("orders"),
		Producer: cfg.ServiceName,
	}
	h := &httpx.Handlers{
		Builder:  orders.NewBuilder(deps),
		States:   orders.NewStateMachine(deps),
		Invoices: orders.NewInvoicer(deps),
		Ledger:   orders.NewLedger(deps),
		Log:      logger.Named("http"),
	}

	// Redis (optional)
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		h.Cache = redisx.Cache{R: rdb}
		h.Alerts = redisx.Alerts{R: rdb}
	} else {
		logger.Warn("REDIS_ADDR empty; idempotency keys and state cache disabled")
	}

	router := httpx.NewRouter(logger.Named("access"))
	h.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close()      // tutup inbox -> flush & close writer
		prod.WaitClosed() // drain
	}
	cancel()
}
