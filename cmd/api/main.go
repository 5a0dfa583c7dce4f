package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/order-intake-bot/internal/config"
	"github.com/ariefcatur/order-intake-bot/internal/httpx"
	kafkax "github.com/ariefcatur/order-intake-bot/internal/kafka"
	"github.com/ariefcatur/order-intake-bot/internal/logger"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/ariefcatur/order-intake-bot/internal/postgres"
	"github.com/ariefcatur/order-intake-bot/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogFilePath, cfg.IsProduction())
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Kafka producer: inbound updates
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicUpdates, 1024, log)
	prod.Start(ctx)

	router := httpx.NewRouter()
	(&httpx.UpdatesHandler{Producer: prod, Log: log.Named("ingress")}).Register(router)

	// Order read API needs the shared store
	if cfg.StoreBackend == "memory" {
		log.Warn("order read API disabled with the in-memory store")
	} else {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		(&httpx.OrdersHandler{Store: &orders.PGStore{DB: db}, Redis: rdb, Log: log.Named("orders")}).Register(router)
	}

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}
