package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"cardcircle/config"
	"cardcircle/internal/repository"
	"cardcircle/internal/repository/mongostore"
	"cardcircle/pkg/database"
)

const usage = `
Card Circle - Schema CLI Tool

Usage:
  migrate [command]

Commands:
  up          Create chat tables and constraints (postgres) or indexes (mongo)
  status      Show database connection status

The store is chosen by STORE_DRIVER (postgres or mongo).

Examples:
  go run cmd/migrate/main.go up
  STORE_DRIVER=mongo go run cmd/migrate/main.go up
`

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.LoadConfig()
	ctx := context.Background()

	switch flag.Arg(0) {
	case "up":
		runUp(ctx, cfg)
	case "status":
		showStatus(ctx, cfg)
	default:
		fmt.Printf("Unknown command: %s\n", flag.Arg(0))
		flag.Usage()
		os.Exit(1)
	}
}

func runUp(ctx context.Context, cfg *config.Config) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := database.Connect(cfg)
		if err != nil {
			log.Fatalf("Connection failed: %v", err)
		}
		defer database.Close(db)
		if err := repository.InitSchema(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	case config.StoreDriverMongo:
		client, db, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			log.Fatalf("Connection failed: %v", err)
		}
		defer client.Disconnect(context.Background())
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
	default:
		log.Fatalf("Nothing to migrate for store driver %q", cfg.StoreDriver)
	}
	log.Println("Migrations completed successfully")
}

func showStatus(ctx context.Context, cfg *config.Config) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := database.Connect(cfg)
		if err != nil {
			log.Fatalf("Connection failed: %v", err)
		}
		defer database.Close(db)
		if err := database.HealthCheck(ctx, db); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		for _, table := range []string{"chat_groups", "chat_group_members", "direct_conversations", "chat_messages", "users"} {
			log.Printf("Table %-22s exists: %v", table, db.Migrator().HasTable(table))
		}
	case config.StoreDriverMongo:
		client, _, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			log.Fatalf("Connection failed: %v", err)
		}
		defer client.Disconnect(context.Background())
	default:
		log.Fatalf("No database for store driver %q", cfg.StoreDriver)
	}
	log.Println("Database connection: OK")
}
