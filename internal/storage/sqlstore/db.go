// Package sqlstore is the ORM-backed implementation of storage.Storage.
package sqlstore

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to postgres and migrates the schema
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the store uses
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&PlayerRow{}, &RegisteredPlayerRow{}, &StatsRow{}, &TableRow{}, &SeatRow{}, &ChatRow{})
}
