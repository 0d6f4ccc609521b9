// Package main is a diagnostic tool for database connectivity. It loads the
// same configuration as the server, connects, prints the schema version and
// row counts for the tables the authorization layer reads, and exits non-zero
// on any failure so it can gate a deployment step.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/client-portal/portal/internal/config"
	"github.com/client-portal/portal/internal/db"
)

var tables = []string{"users", "organizations", "organization_members", "user_preferences", "projects"}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), 2, 1)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	fmt.Printf("Connected to %s@%s:%d/%s\n", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to read schema version: %v", err)
	}
	fmt.Printf("Schema version: %d (dirty: %v)\n", version, dirty)
	if dirty {
		log.Fatal("Schema is dirty; run `server migrate up` after fixing the failed migration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Println("\n=== TABLES ===")
	for _, table := range tables {
		var count int
		// #nosec G202 -- table names come from the fixed list above
		if err := database.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			log.Fatalf("Query on %s failed: %v", table, err)
		}
		fmt.Printf("%-22s %d rows\n", table, count)
	}

	var inactive int
	if err := database.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE is_active = FALSE").Scan(&inactive); err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	if inactive > 0 {
		fmt.Printf("\n%d inactive account(s): their tokens are rejected\n", inactive)
	}
}
