package repository

import (
	"context"
	"errors"
	"time"

	"golang-market-news/internal/entity"

	"gorm.io/gorm"
)

// FailureRepository records dead-letter bookkeeping for exhausted units.
type FailureRepository interface {
	RecordFailure(ctx context.Context, articleID *uint, errorMessage string, attemptCount int) error
}

// NewFailureRepository creates a new instance of FailureRepository.
func NewFailureRepository(db *gorm.DB) FailureRepository {
	return &failureRepository{
		db: db,
	}
}

type failureRepository struct {
	db *gorm.DB
}

// RecordFailure creates a ProcessingFailure for the article, or bumps the
// attempt count on the existing unresolved record.
func (r *failureRepository) RecordFailure(ctx context.Context, articleID *uint, errorMessage string, attemptCount int) error {
	now := time.Now()

	if articleID != nil {
		var existing entity.ProcessingFailure
		err := r.db.WithContext(ctx).
			Where("article_id = ? AND resolved = false", *articleID).
			First(&existing).Error
		if err == nil {
			return r.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
				"error_message":   errorMessage,
				"attempt_count":   attemptCount,
				"last_failure_at": now,
			}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	failure := entity.ProcessingFailure{
		ArticleID:      articleID,
		ErrorMessage:   errorMessage,
		AttemptCount:   attemptCount,
		FirstFailureAt: now,
		LastFailureAt:  now,
	}
	return r.db.WithContext(ctx).Create(&failure).Error
}
