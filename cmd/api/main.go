package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-hyperlocal-orders/internal/broadcast"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/config"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/httpx"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-hyperlocal-orders/internal/kafka"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/logging"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/orders"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/postgres"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/redisx"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/stores"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/telemetry"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

// storage is whichever backend STORAGE selected.
type storage struct {
	products inventory.Store
	orders   orders.Repository
	dir      stores.Directory
	close    func()
}

func openStorage(ctx context.Context, cfg config.Config, logger *zap.Logger) (*storage, error) {
	switch cfg.Storage {
	case "memory":
		// satu toko demo supaya bisa langsung dicoba tanpa database
		demo := stores.Store{ID: "demo", SellerID: "seller-demo", Name: "Demo Store", IsActive: true}
		logger.Warn("using in-memory storage; data is lost on restart", zap.String("demo_store", demo.ID))
		return &storage{
			products: inventory.NewMemoryStore(),
			orders:   orders.NewMemoryRepo(),
			dir:      stores.NewMemoryDirectory(demo),
			close:    func() {},
		}, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &storage{
			products: inventory.NewPGStore(db),
			orders:   &orders.Repo{DB: db},
			dir:      stores.NewPGDirectory(db, cfg.StoreCacheTTL),
			close:    db.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown STORAGE %q", cfg.Storage)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	rdb, err := redisx.New(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Sinks. With Redis every instance publishes to the channel and its own
	// hub is fed back by the relay, so the hub is not a direct sink there.
	hub := broadcast.NewHub(64, logger)
	var sinks []broadcast.Sink
	var relay *broadcast.RedisRelay
	if rdb != nil {
		sinks = append(sinks, broadcast.NewRedisSink(rdb))
		relay = broadcast.NewRedisRelay(rdb, hub, logger)
	} else {
		sinks = append(sinks, hub)
	}

	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, cfg.StockTopic, cfg.BroadcastBuffer, logger)
		// closed explicitly after the broadcaster drains
		prod.Start(context.WithoutCancel(ctx))
		sinks = append(sinks, broadcast.NewKafkaSink(prod))
	}

	var amqpSink *broadcast.AMQPSink
	if cfg.AMQPURL != "" {
		amqpSink, err = broadcast.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
		sinks = append(sinks, amqpSink)
	}

	bc := broadcast.New(cfg.BroadcastBuffer, logger, sinks...)
	// lifetime ends at bc.Close below, after the server has drained, not at
	// the signal; events from in-flight requests still go out
	bc.Start(context.WithoutCancel(ctx))

	ledger := inventory.NewLedger(st.products, cfg.MaxPurchaseQty, logger)
	catalog := inventory.NewCatalog(ledger, st.products, st.dir, bc, logger)
	svc := orders.NewService(ledger, st.orders, st.dir, bc, logger, cfg.PersistTimeout)

	router := httpx.NewRouter(cfg.CORSOrigins)
	(&httpx.StreamHandler{Hub: hub, Log: logger}).Register(router)
	api := httpx.WithTimeout(router)
	(&httpx.OrdersHandler{Orders: svc, Catalog: catalog, Idem: redisx.NewIdempotency(rdb), Log: logger}).Register(api)
	(&httpx.ProductsHandler{Catalog: catalog, Log: logger}).Register(api)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	// streams never finish on their own; end them so Shutdown can drain
	srv.RegisterOnShutdown(hub.Close)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("storage", cfg.Storage),
			zap.Int("sinks", len(sinks)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	err = g.Wait()

	// broadcaster dulu, baru transport di bawahnya
	bc.Close()
	bc.WaitClosed()
	if dropped := bc.Dropped(); dropped > 0 {
		logger.Warn("stock events dropped during run", zap.Uint64("dropped", dropped))
	}
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
	if amqpSink != nil {
		amqpSink.Close()
	}
	return err
}
