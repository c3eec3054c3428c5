package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/darlynton/ev-assistant-bot/internal/config"
)

var DB *gorm.DB

// Connect opens the PostgreSQL connection described by cfg and stores the
// handle in DB.
func Connect(cfg config.DatabaseConfig) error {
	if cfg.InstanceConnectionName != "" {
		log.Printf("Connecting to Cloud SQL via socket: %s", cfg.InstanceConnectionName)
	} else {
		log.Println("Connecting to local PostgreSQL")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	DB = db
	log.Println("✅ Database connected successfully!")
	return nil
}
