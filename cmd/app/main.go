package main

import (
	"flag"
	"log"
	"os"
	"time"

	"Wonderland/internal/di"
	"Wonderland/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	readyTimeout := flag.Duration("ready-timeout", 10*time.Second, "storage readiness check timeout")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s tokens=%d pairs=%d swap_live=%t", cfg.Environment, len(cfg.Portfolio.Tokens), len(cfg.Market.Pairs), cfg.Swap.Live)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Ready(*readyTimeout); err != nil {
		log.Fatalf("storage not ready: %v", err)
	}
	log.Printf("clickhouse: schema ready db=%s; kafka brokers=%v", cfg.ClickHouse.Database, cfg.Kafka.Brokers)

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
