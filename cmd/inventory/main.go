package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/order-inventory/internal/config"
	"github.com/ariefcatur/order-inventory/internal/inventory"
	kafkax "github.com/ariefcatur/order-inventory/internal/kafka"
	"github.com/ariefcatur/order-inventory/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.RedisEnabled() || !cfg.EventsEnabled() {
		log.Fatalf("inventory projector needs REDIS_ADDR and KAFKA_BROKERS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	proj := inventory.NewProjector(
		redisx.NewStockSnapshots(rdb),
		redisx.NewDedup(rdb, cfg.InventoryGroup),
		logger,
	)

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, cfg.KafkaTopic, cfg.InventoryWorkers, logger)
	log.Printf("inventory consumer started: group=%s topic=%s workers=%d", cfg.InventoryGroup, cfg.KafkaTopic, cfg.InventoryWorkers)
	if err := cons.Start(ctx, proj.HandleMessage); err != nil {
		log.Printf("consumer exit: %v", err)
	}
	log.Println("inventory consumer stopped")
}
