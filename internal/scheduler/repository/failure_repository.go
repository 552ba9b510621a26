package repository

import (
	"context"

	"golang-market-news/internal/entity"

	"gorm.io/gorm"
)

// FailureRepository is the scheduler's read access to dead-letter records.
type FailureRepository interface {
	FindUnresolved(ctx context.Context, limit int) ([]entity.ProcessingFailure, error)
}

type failureRepository struct {
	db *gorm.DB
}

// NewFailureRepository creates a new FailureRepository.
func NewFailureRepository(db *gorm.DB) FailureRepository {
	return &failureRepository{db: db}
}

func (r *failureRepository) FindUnresolved(ctx context.Context, limit int) ([]entity.ProcessingFailure, error) {
	var failures []entity.ProcessingFailure
	err := r.db.WithContext(ctx).
		Where("resolved = ?", false).
		Order("last_failure_at DESC").
		Limit(limit).
		Find(&failures).Error
	if err != nil {
		return nil, err
	}
	return failures, nil
}
