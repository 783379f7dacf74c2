package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pitabwire/frame/datastore/pool"
)

// Repository stores transcription records.
type Repository struct {
	pool pool.Pool
}

// NewRepository creates a new transcription repository.
func NewRepository(pool pool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) db(ctx context.Context, readOnly bool) *gorm.DB {
	return r.pool.DB(ctx, readOnly)
}

// Migrate creates or updates the transcriptions table.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db(ctx, false).AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("migrate transcriptions: %w", err)
	}
	return nil
}

// Save persists a record.
func (r *Repository) Save(ctx context.Context, rec *Record) error {
	return r.db(ctx, false).Create(rec).Error
}

// GetByRequestID returns the record for a request.
func (r *Repository) GetByRequestID(ctx context.Context, requestID string) (*Record, error) {
	var rec Record
	if err := r.db(ctx, true).Where("request_id = ?", requestID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
