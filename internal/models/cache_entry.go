package models

import (
	"time"

	"gorm.io/datatypes"
)

// CacheEntry represents a cached snapshot stored in the database fallback.
type CacheEntry struct {
	Key       string         `gorm:"primaryKey;size:256"`
	Value     datatypes.JSON `gorm:"not null"`
	ExpiresAt time.Time      `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
