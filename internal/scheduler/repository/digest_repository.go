package repository

import (
	"context"
	"time"

	"golang-market-news/internal/entity"

	"gorm.io/gorm"
)

// DigestRepository is the scheduler's storage access for digests.
type DigestRepository interface {
	FindLastByType(ctx context.Context, digestType entity.DigestType) (*entity.Digest, error)
	CreateWithArticles(ctx context.Context, digest *entity.Digest, rankedArticleIDs []uint) error
	UpdateMessageID(ctx context.Context, id uint, messageID string) error
	FindRecent(ctx context.Context, limit int) ([]entity.Digest, error)
}

type digestRepository struct {
	db *gorm.DB
}

// NewDigestRepository creates a new DigestRepository.
func NewDigestRepository(db *gorm.DB) DigestRepository {
	return &digestRepository{db: db}
}

// FindLastByType returns the most recent digest of the given kind, or nil if
// none has ever been emitted.
func (r *digestRepository) FindLastByType(ctx context.Context, digestType entity.DigestType) (*entity.Digest, error) {
	var digest entity.Digest
	err := r.db.WithContext(ctx).
		Where("digest_type = ?", digestType).
		Order("sent_at DESC").
		First(&digest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &digest, nil
}

// CreateWithArticles persists the digest, its ordered membership rows, and the
// digest-inclusion marks in one transaction, so overlapping runs cannot both
// claim the same article.
func (r *digestRepository) CreateWithArticles(ctx context.Context, digest *entity.Digest, rankedArticleIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(digest).Error; err != nil {
			return err
		}

		for i, articleID := range rankedArticleIDs {
			digestArticle := entity.DigestArticle{
				DigestID:  digest.ID,
				ArticleID: articleID,
				Rank:      i + 1,
			}
			if err := tx.Create(&digestArticle).Error; err != nil {
				return err
			}
		}

		if len(rankedArticleIDs) > 0 {
			now := time.Now()
			if err := tx.Model(&entity.Article{}).
				Where("id IN ?", rankedArticleIDs).
				Where("included_in_digest_at IS NULL").
				Update("included_in_digest_at", now).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// UpdateMessageID records the external message identifier after a successful
// dispatch.
func (r *digestRepository) UpdateMessageID(ctx context.Context, id uint, messageID string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Digest{}).
		Where("id = ?", id).
		Update("telegram_message_id", messageID).Error
}

// FindRecent returns the most recent digests with their membership, newest
// first.
func (r *digestRepository) FindRecent(ctx context.Context, limit int) ([]entity.Digest, error) {
	var digests []entity.Digest
	err := r.db.WithContext(ctx).
		Preload("DigestArticles").
		Order("sent_at DESC").
		Limit(limit).
		Find(&digests).Error
	if err != nil {
		return nil, err
	}
	return digests, nil
}
