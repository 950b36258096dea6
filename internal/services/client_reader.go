package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/crmwarm/internal/models"
)

// clientColumns is the fixed projection read for every snapshot.
var clientColumns = []string{"id", "document", "name", "email", "status", "next_follow_up_at"}

// ClientFilter narrows a Fetch. A nil ID selects every client.
type ClientFilter struct {
	ID *int64
}

// ClientReader reads client rows from the CRM database. It never writes.
type ClientReader struct {
	db *gorm.DB
}

// NewClientReader constructs a ClientReader using the provided database handle.
func NewClientReader(db *gorm.DB) (*ClientReader, error) {
	if db == nil {
		return nil, errors.New("client reader: db is required")
	}
	return &ClientReader{db: db}, nil
}

// Fetch returns the client projection ordered by id, or at most the single row matching
// filter.ID. An empty result is not an error.
func (r *ClientReader) Fetch(ctx context.Context, filter ClientFilter) ([]models.Client, error) {
	ctx = ensureContext(ctx)

	query := r.db.WithContext(ctx).
		Model(&models.Client{}).
		Select(clientColumns)

	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID).Limit(1)
	} else {
		query = query.Order("id ASC")
	}

	var clients []models.Client
	if err := query.Find(&clients).Error; err != nil {
		if IsUnavailable(err) {
			return nil, fmt.Errorf("client reader: %w: %w", ErrSourceUnavailable, err)
		}
		return nil, fmt.Errorf("client reader: fetch clients: %w", err)
	}
	return clients, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
