package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/odyssey-erp/obligations/internal/app"
	"github.com/odyssey-erp/obligations/internal/clients"
	"github.com/odyssey-erp/obligations/internal/platform/db"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	file := flag.String("file", cfg.SeedFile, "YAML portfolio to load")
	flag.Parse()
	if *file == "" {
		fmt.Fprintln(os.Stderr, "seed: -file or SEED_FILE is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	list, err := clients.LoadSeed(*file)
	if err != nil {
		log.Fatalf("read seed: %v", err)
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Ensuring schema...")
	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	declarations := 0
	for _, c := range list {
		declarations += len(c.Declarations)
	}
	fmt.Printf("→ Seeding %d clients, %d declarations...\n", len(list), declarations)
	if err := clients.NewPostgresStore(pool).Replace(ctx, list); err != nil {
		log.Fatalf("seed clients: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}
