// Package sqlite is the embedded store: the same repository contracts as the
// Postgres store, on gorm and SQLite. Used for single-node deployments and
// as the test backend.
package sqlite

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to dsn and migrates the schema. SQLite allows one writer, so
// the pool is pinned to a single connection and transactions serialize.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&giveawayRecord{}, &participantRecord{}, &winnerRecord{}, &userRecord{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}
