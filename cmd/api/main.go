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
	_ "time/tzdata"

	"github.com/ariefcatur/order-inventory/internal/catalog"
	"github.com/ariefcatur/order-inventory/internal/config"
	"github.com/ariefcatur/order-inventory/internal/httpx"
	kafkax "github.com/ariefcatur/order-inventory/internal/kafka"
	"github.com/ariefcatur/order-inventory/internal/orders"
	"github.com/ariefcatur/order-inventory/internal/postgres"
	"github.com/ariefcatur/order-inventory/internal/redisx"
	"github.com/ariefcatur/order-inventory/internal/scheduler"
	"github.com/ariefcatur/order-inventory/internal/sqlite"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type productStore interface {
	orders.ProductReader
	catalog.Store
}

type inventoryStore interface {
	orders.InventoryStore
	catalog.Seeder
}

type stores struct {
	tx        orders.TxRunner
	products  productStore
	inventory inventoryStore
	ledger    orders.OrderLedger
	db        httpx.Pinger
	close     func()
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return stores{}, fmt.Errorf("sqlite open: %w", err)
		}
		return stores{
			tx:        db,
			products:  sqlite.NewProductRepository(db),
			inventory: sqlite.NewInventoryRepository(db),
			ledger:    sqlite.NewOrderRepository(db),
			db:        db,
			close:     func() { _ = db.Close() },
		}, nil
	default:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
		if err != nil {
			return stores{}, fmt.Errorf("db connect: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return stores{}, fmt.Errorf("migrate: %w", err)
		}
		return stores{
			tx:        postgres.NewTransactor(pool),
			products:  postgres.NewProductRepository(pool),
			inventory: postgres.NewInventoryRepository(pool),
			ledger:    postgres.NewOrderRepository(pool),
			db:        pool,
			close:     pool.Close,
		}, nil
	}
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	// DB
	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer st.close()
	log.Printf("store driver: %s", cfg.StoreDriver)

	// Redis
	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
	}

	coordOpts := []orders.Option{
		orders.WithLogger(logger),
		orders.WithTxTimeout(cfg.TxTimeout),
	}

	// Kafka producer
	var prod *kafkax.Producer
	if cfg.EventsEnabled() {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 1024, logger)
		prod.Start()
		coordOpts = append(coordOpts, orders.WithEvents(prod, cfg.ServiceName))
	}

	coord := orders.NewCoordinator(st.tx, st.products, st.inventory, st.ledger, coordOpts...)
	var catalogOpts []catalog.Option
	if prod != nil {
		catalogOpts = append(catalogOpts, catalog.WithEvents(prod, cfg.ServiceName))
	}
	products := catalog.NewService(st.tx, st.products, st.inventory, logger, catalogOpts...)

	// Handler
	router := httpx.NewRouter(st.db)
	oh := &httpx.OrdersHandler{
		Orders:     coord,
		Catalog:    products,
		AdminToken: cfg.AdminToken,
		Logger:     logger,
	}
	if rdb != nil {
		oh.Cache = redisx.NewOrderCache(rdb)
		oh.Snapshots = redisx.NewStockSnapshots(rdb)
		if cfg.OrderRateLimit > 0 {
			oh.Limiter = redisx.NewRateLimiter(rdb, "order_create", cfg.OrderRateLimit, cfg.OrderRateWindow)
		}
	}
	oh.Register(router)

	// Daily reset
	schedOpts := []scheduler.Option{scheduler.WithLogger(logger)}
	if rdb != nil {
		schedOpts = append(schedOpts, scheduler.WithLocker(redisx.NewJobLocker(rdb)))
	}
	reset, err := scheduler.NewDaily("inventory-reset", cfg.ResetAt, cfg.ResetLocation, func(ctx context.Context) error {
		n, err := coord.ResetAllInventory(ctx)
		if err != nil {
			return err
		}
		logger.Printf("inventory reset: %d row(s) back to %d", n, orders.BaselineStock)
		return nil
	}, schedOpts...)
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return reset.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("exit: %v", err)
	}

	// flush queued events after the last request finished
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
}
