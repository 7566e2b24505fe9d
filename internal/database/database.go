package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/targetspro/adwatch/internal/models"
)

// Open connects to the sqlite database at dbPath and migrates the schema.
func Open(dbPath string) (*gorm.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates all tables the alert engine reads and writes.
// The account, spend and snapshot tables are populated by the upstream
// pipeline; they are migrated here so a fresh install can accept its writes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.AdAccount{},
		&models.SpendRecord{},
		&models.BalanceSnapshot{},
		&models.AlertRule{},
		&models.Alert{},
		&models.NotificationChannel{},
		&models.AlertDelivery{},
		&models.User{},
	); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}
