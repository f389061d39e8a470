package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-hyperlocal-orders/internal/broadcast"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/config"
	kafkax "github.com/ariefcatur/go-hyperlocal-orders/internal/kafka"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/logging"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/redisx"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// stockwatch consumes the stock topic and keeps a per-store view of the
// latest product state in Redis for clients that reconnect.

var tracer = otel.Tracer("github.com/ariefcatur/go-hyperlocal-orders/cmd/stockwatch")

type watcher struct {
	rdb     *redis.Client
	proj    *broadcast.RedisProjection
	service string
	log     *zap.Logger
}

func (w *watcher) handle(ctx context.Context, m kafka.Message) error {
	ctx, span := tracer.Start(ctx, "stockwatch.handle")
	defer span.End()

	ev, err := kafkax.Decode[broadcast.Event](m.Value)
	if err != nil {
		// pesan rusak tidak akan pernah sukses; commit saja
		w.log.Warn("undecodable stock event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if err := ev.Validate(); err != nil {
		w.log.Warn("invalid stock event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	span.SetAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", kafkax.Header(m.Headers, broadcast.HeaderEventType)),
		attribute.String("store.id", ev.StoreID),
	)

	first, err := redisx.FirstSeen(ctx, w.rdb, w.service, ev.ID)
	if err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	if !first {
		return nil
	}
	applied, err := w.proj.Apply(ctx, ev)
	if err != nil {
		if ferr := redisx.Forget(context.WithoutCancel(ctx), w.rdb, w.service, ev.ID); ferr != nil {
			w.log.Warn("forget dedup key", zap.String("event_id", ev.ID), zap.Error(ferr))
		}
		return fmt.Errorf("project %s: %w", ev.Key(), err)
	}
	w.log.Debug("stock event",
		zap.String("event_id", ev.ID),
		zap.String("store_id", ev.StoreID),
		zap.String("product_id", ev.Key()),
		zap.Bool("applied", applied))
	return nil
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-stockwatch"

	logger, err := logging.New(cfg.LogLevel, service)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, service, cfg.OtelEndpoint)
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required")
	}
	rdb, err := redisx.New(ctx, cfg.RedisAddr)
	if err != nil || rdb == nil {
		logger.Fatal("redis is required", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	defer rdb.Close()

	w := &watcher{
		rdb:     rdb,
		proj:    broadcast.NewRedisProjection(rdb, broadcast.NewMirror()),
		service: service,
		log:     logger,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.StockwatchGroup, cfg.StockTopic, cfg.StockwatchWorkers, logger)

	logger.Info("stockwatch started",
		zap.String("group", cfg.StockwatchGroup),
		zap.String("topic", cfg.StockTopic),
		zap.Int("workers", cfg.StockwatchWorkers))
	if err := cons.Start(ctx, w.handle); err != nil {
		logger.Error("consumer exit", zap.Error(err))
	}
	logger.Info("stockwatch stopped")
}
