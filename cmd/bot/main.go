package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/order-intake-bot/internal/bot"
	"github.com/ariefcatur/order-intake-bot/internal/config"
	"github.com/ariefcatur/order-intake-bot/internal/conversation"
	kafkax "github.com/ariefcatur/order-intake-bot/internal/kafka"
	"github.com/ariefcatur/order-intake-bot/internal/logger"
	"github.com/ariefcatur/order-intake-bot/internal/messenger"
	"github.com/ariefcatur/order-intake-bot/internal/operator"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/ariefcatur/order-intake-bot/internal/postgres"
	"github.com/ariefcatur/order-intake-bot/internal/redisx"
	"github.com/ariefcatur/order-intake-bot/internal/session"
	"github.com/ariefcatur/order-intake-bot/internal/settings"
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

	// Redis: dedup, sessions, status cache
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Order Store + bot_config
	var (
		store orders.Store
		src   settings.Source
	)
	switch cfg.StoreBackend {
	case "memory":
		log.Warn("using in-memory order store; orders are lost on restart")
		store = orders.NewMemoryStore()
		src = settings.NewStatic(nil)
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		store = &redisx.StatusCacheStore{Store: &orders.PGStore{DB: db}, Redis: rdb}
		src = settings.NewCached(&settings.PGSource{DB: db}, cfg.SettingsCacheTTL)
	}

	var sessions session.Store
	switch cfg.SessionBackend {
	case "memory":
		sessions = session.NewMemoryStore(cfg.SessionTTL)
	default:
		sessions = session.NewRedisStore(rdb, cfg.SessionTTL)
	}

	// Producers: outbound chat commands & lifecycle events. They outlive the
	// consumer so in-flight handlers can still publish during shutdown.
	prodCtx, prodCancel := context.WithCancel(context.Background())
	defer prodCancel()
	outbound := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOutbound, 1024, log)
	outbound.Start(prodCtx)
	events := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, log)
	events.Start(prodCtx)

	out := &messenger.Gateway{P: outbound}
	sink := &kafkax.EventSink{P: events, Service: cfg.ServiceName}

	router, err := operator.NewRouter(operator.Deps{
		Orders:   store,
		Sessions: sessions,
		Settings: src,
		Out:      out,
		Events:   sink,
		Log:      log,
	}, operator.Options{
		StaticOperators:   cfg.OperatorChatIDs,
		AdminPassword:     cfg.AdminPassword,
		LegacyCorrelation: cfg.LegacyReplyCorrelation,
	})
	if err != nil {
		log.Fatal("operator router", zap.Error(err))
	}
	machine, err := conversation.New(conversation.Deps{
		Orders:   store,
		Sessions: sessions,
		Settings: src,
		Out:      out,
		Notifier: router,
		Events:   sink,
		Log:      log,
	})
	if err != nil {
		log.Fatal("conversation machine", zap.Error(err))
	}

	svc := &bot.Service{
		Dispatcher: &bot.Dispatcher{Conversation: machine, Operators: router},
		Dedup:      &bot.RedisDeduper{Redis: rdb, Scope: cfg.BotGroup},
		Log:        log.Named("bot"),
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.BotGroup, orders.TopicUpdates, cfg.BotWorkers, log)
	consDone := make(chan struct{})
	go func() {
		defer close(consDone)
		log.Info("bot consumer started",
			zap.String("group", cfg.BotGroup), zap.String("topic", orders.TopicUpdates), zap.Int("workers", cfg.BotWorkers))
		if err := cons.Start(ctx, svc.HandleUpdate); err != nil {
			log.Error("consumer exit", zap.Error(err))
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
	log.Info("shutting down consumer...")
	cancel()
	select {
	case <-consDone:
	case <-time.After(10 * time.Second):
		log.Warn("consumer did not stop in time")
	}
	outbound.Close()
	events.Close()
	outbound.WaitClosed()
	events.WaitClosed()
}
