package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/charlesng35/crmwarm/internal/models"
)

// AutoMigrate creates or updates the tables owned by the warmer: the client projection
// (for local sqlite setups and tests) and the database cache fallback.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	return db.AutoMigrate(
		&models.Client{},
		&models.CacheEntry{},
	)
}

// MigrateCache creates only the cache table, for a dedicated cache database.
func MigrateCache(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	return db.AutoMigrate(&models.CacheEntry{})
}
