// Package main is a repair tool for dirty migration state in the castline
// database. Dirty state occurs when the golang-migrate runner marks a migration
// version as in-progress (dirty=true) but the process was interrupted before it
// completed. This tool loads the server configuration, checks the
// schema_migrations table, and clears the dirty flag so the migration runner can
// retry cleanly on the next startup.
package main

import (
	"log"
	"os"

	"github.com/castline/castline/internal/config"
	"github.com/castline/castline/internal/db"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), 1, 1, 0)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	version, dirty, err := db.GetMigrationVersion(database.DB)
	if err != nil {
		log.Fatalf("Failed to check migration state: %v", err)
	}
	log.Printf("Current migration state: version=%d, dirty=%v", version, dirty)

	if !dirty {
		log.Println("Migration state is already clean")
		return
	}

	log.Println("Fixing dirty migration state...")
	if _, err := database.Exec("UPDATE schema_migrations SET dirty = false"); err != nil {
		log.Fatalf("Failed to fix dirty state: %v", err)
	}

	version, dirty, err = db.GetMigrationVersion(database.DB)
	if err != nil {
		log.Fatalf("Failed to check final migration state: %v", err)
	}
	log.Printf("Final migration state: version=%d, dirty=%v", version, dirty)
}
