package repository

import (
	"context"
	"time"

	"golang-market-news/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArticleRepository is the scheduler's storage access for articles.
type ArticleRepository interface {
	FindExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error)
	Create(ctx context.Context, article *entity.Article) (bool, error)
	FindEligibleForDigest(ctx context.Context, since, until time.Time) ([]entity.Article, error)
	FindRecent(ctx context.Context, limit int) ([]entity.Article, error)
	FindByID(ctx context.Context, id uint) (*entity.Article, error)
}

type articleRepository struct {
	db *gorm.DB
}

// NewArticleRepository creates a new ArticleRepository.
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

// FindExistingURLs returns the subset of the given URLs that already exist.
func (r *articleRepository) FindExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	if len(urls) == 0 {
		return map[string]struct{}{}, nil
	}

	var existing []string
	if err := r.db.WithContext(ctx).
		Model(&entity.Article{}).
		Where("news_url IN ?", urls).
		Pluck("news_url", &existing).Error; err != nil {
		return nil, err
	}

	out := make(map[string]struct{}, len(existing))
	for _, u := range existing {
		out[u] = struct{}{}
	}
	return out, nil
}

// Create inserts a new article. A URL conflict is benign: the storage
// constraint is the final dedup arbiter, so the insert is skipped and the
// returned bool reports whether a row was actually created.
func (r *articleRepository) Create(ctx context.Context, article *entity.Article) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "news_url"}},
			DoNothing: true,
		}).
		Create(article)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindEligibleForDigest returns articles published inside the window that have
// a scrape outcome, at least one analysis, and have never been included in a
// digest. Articles still waiting on the worker stay out until their analyses
// land. Analyses are preloaded for ranking.
func (r *articleRepository) FindEligibleForDigest(ctx context.Context, since, until time.Time) ([]entity.Article, error) {
	var articles []entity.Article
	err := r.db.WithContext(ctx).
		Preload("Analyses").
		Where("included_in_digest_at IS NULL").
		Where("scraped_at IS NOT NULL").
		Where("published_at >= ? AND published_at < ?", since, until).
		Where("EXISTS (SELECT 1 FROM article_analyses WHERE article_analyses.article_id = articles.id)").
		Find(&articles).Error
	if err != nil {
		return nil, err
	}
	return articles, nil
}

// FindRecent returns the most recently discovered articles with their
// analyses, newest first.
func (r *articleRepository) FindRecent(ctx context.Context, limit int) ([]entity.Article, error) {
	var articles []entity.Article
	err := r.db.WithContext(ctx).
		Preload("Analyses").
		Order("created_at DESC").
		Limit(limit).
		Find(&articles).Error
	if err != nil {
		return nil, err
	}
	return articles, nil
}

// FindByID returns one article with its analyses.
func (r *articleRepository) FindByID(ctx context.Context, id uint) (*entity.Article, error) {
	var article entity.Article
	if err := r.db.WithContext(ctx).Preload("Analyses").First(&article, id).Error; err != nil {
		return nil, err
	}
	return &article, nil
}
