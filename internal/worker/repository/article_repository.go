package repository

import (
	"context"
	"time"

	"golang-market-news/internal/entity"

	"gorm.io/gorm"
)

// ArticleRepository defines the worker's view of article storage.
type ArticleRepository interface {
	FindByID(ctx context.Context, id uint) (*entity.Article, error)
	UpdateScrapeResult(ctx context.Context, id uint, content string, failed bool, at time.Time) error
	MarkAlertSent(ctx context.Context, id uint, at time.Time) error
}

// NewArticleRepository creates a new instance of ArticleRepository.
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{
		db: db,
	}
}

type articleRepository struct {
	db *gorm.DB
}

// FindByID loads an article with its analyses.
func (r *articleRepository) FindByID(ctx context.Context, id uint) (*entity.Article, error) {
	var article entity.Article
	if err := r.db.WithContext(ctx).Preload("Analyses").First(&article, id).Error; err != nil {
		return nil, err
	}
	return &article, nil
}

// UpdateScrapeResult persists the scrape outcome for an article.
func (r *articleRepository) UpdateScrapeResult(ctx context.Context, id uint, content string, failed bool, at time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.Article{}).Where("id = ?", id).Updates(map[string]interface{}{
		"scraped_content": content,
		"scraped_at":      at,
		"scrape_failed":   failed,
	}).Error
}

// MarkAlertSent stamps alert_sent_at, first writer wins.
func (r *articleRepository) MarkAlertSent(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.Article{}).
		Where("id = ? AND alert_sent_at IS NULL", id).
		Update("alert_sent_at", at).Error
}
