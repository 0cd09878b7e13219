package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"mediguide/internal/app"
	"mediguide/internal/config"
	"mediguide/internal/ingest"
	"mediguide/internal/logger"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to secrets TOML (defaults to $MEDIGUIDE_CONFIG or .streamlit/secrets.toml)")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: mediguide-ingest [--config=secrets.toml] records.jsonl [more.jsonl ...]")
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	lg, err := logger.New(cfg.BasicConfig.LogMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	ctx := context.Background()
	stores, rdb := app.NewStores(cfg, lg)
	defer stores.Close(ctx)
	defer func() {
		if client, ok := rdb.Peek(); ok && client != nil {
			client.Close()
		}
	}()

	store, release, err := stores.Acquire(ctx)
	if err != nil {
		lg.Fatal("open vector store", "error", err)
	}
	defer release()

	in, err := ingest.New(ctx, store, cfg.Embedding.BatchSize, lg)
	if err != nil {
		lg.Fatal("init ingester", "error", err)
	}
	total := 0
	for _, path := range inputs {
		n, err := in.Ingest(ctx, path)
		if err != nil {
			lg.Fatal("ingest failed", "path", path, "error", err)
		}
		total += n
	}
	fmt.Printf("ingested %d records from %d file(s)\n", total, len(inputs))
}
