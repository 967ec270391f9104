package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/EasterCompany/dex-voice-service/cache"
	"github.com/EasterCompany/dex-voice-service/config"
)

func main() {
	logCount := flag.Int64("logs", 20, "number of recent log entries to print")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Fatal error loading config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	if db == nil {
		log.Fatalf("No cache configured; set REDIS_ADDR")
	}
	defer func() { _ = db.Close() }()

	keys, err := db.Keys(ctx)
	if err != nil {
		log.Fatalf("Failed to get keys: %v", err)
	}

	for _, key := range keys {
		fmt.Printf("\n--- Key: %s ---\n", key)
		info, err := db.Inspect(ctx, key)
		if err != nil {
			log.Printf("Failed to inspect key %s: %v", key, err)
			continue
		}
		fmt.Println(info)
	}

	if *logCount <= 0 {
		return
	}
	entries, err := db.Logs(ctx, *logCount)
	if err != nil {
		log.Fatalf("Failed to read logs: %v", err)
	}
	fmt.Printf("\n--- Recent logs (%d) ---\n", len(entries))
	for _, entry := range entries {
		fmt.Printf("  - %s\n", entry)
	}
}
