package main

import (
	"flag"
	"log"
	"os"

	"SigCast/internal/di"
	"SigCast/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s min_favorable=%d max_concurrency=%d",
		cfg.Environment, cfg.Engine.MinFavorableConditions, cfg.Engine.MaxConcurrency)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("clickhouse: connected and audit schema ready - db: %s", cfg.ClickHouse.Database)
	log.Printf("kafka: brokers=%v signals_topic=%s", cfg.Kafka.Brokers, cfg.Kafka.SignalsTopic)

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
