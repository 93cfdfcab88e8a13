package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"gorevsig/adapters/postgres"
	"gorevsig/internal/config"
	"gorevsig/internal/migration"
)

// migrate [database_url] applies the run schema. Without an argument the
// URL and driver come from REVSIG_DATABASE_*.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	databaseURL := cfg.Database.URL
	if len(os.Args) > 1 {
		databaseURL = os.Args[1]
	}
	if databaseURL == "" {
		log.Fatal("Usage: migrate <database_url> (or set REVSIG_DATABASE_URL)")
	}

	ctx := context.Background()
	db, err := postgres.Connect(ctx, cfg.Database.Driver, databaseURL, cfg.Database.MaxOpenConns)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	defer db.Close()

	log.Printf("Schema at version %s (%s)", migration.NewRunner().Version(), cfg.Database.Driver)
}
