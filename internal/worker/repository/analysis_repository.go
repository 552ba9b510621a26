package repository

import (
	"context"

	"golang-market-news/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalysisRepository defines the interface for persisting provider judgments.
type AnalysisRepository interface {
	Upsert(ctx context.Context, analysis *entity.ArticleAnalysis) error
	FindByArticleID(ctx context.Context, articleID uint) ([]entity.ArticleAnalysis, error)
}

// NewAnalysisRepository creates a new instance of AnalysisRepository.
func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{
		db: db,
	}
}

type analysisRepository struct {
	db *gorm.DB
}

// Upsert writes one provider judgment, replacing any prior row for the same
// (article, provider) pair. The storage constraint, not application logic, is
// the arbiter under concurrent delivery.
func (r *analysisRepository) Upsert(ctx context.Context, analysis *entity.ArticleAnalysis) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "article_id"}, {Name: "model_provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"model_name", "summary", "sentiment", "sentiment_score",
			"confidence", "impact_score", "key_topics", "raw_response", "analyzed_at",
		}),
	}).Create(analysis).Error
}

// FindByArticleID returns all judgments stored for an article.
func (r *analysisRepository) FindByArticleID(ctx context.Context, articleID uint) ([]entity.ArticleAnalysis, error) {
	var analyses []entity.ArticleAnalysis
	if err := r.db.WithContext(ctx).Where("article_id = ?", articleID).Find(&analyses).Error; err != nil {
		return nil, err
	}
	return analyses, nil
}
