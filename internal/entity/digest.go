package entity

import (
	"time"
)

// DigestType is the fixed enumeration of digest windows.
type DigestType string

const (
	DigestTypePremarket  DigestType = "premarket"
	DigestTypeLunch      DigestType = "lunch"
	DigestTypePostmarket DigestType = "postmarket"
	DigestTypeWeekly     DigestType = "weekly"
)

// Digest is one scheduled aggregation event.
type Digest struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	DigestType        DigestType      `gorm:"not null" json:"digest_type"`
	SentAt            time.Time       `gorm:"not null" json:"sent_at"`
	ArticleCount      int             `gorm:"not null;default:0" json:"article_count"`
	TelegramMessageID string          `json:"telegram_message_id,omitempty"`
	DigestArticles    []DigestArticle `gorm:"foreignKey:DigestID" json:"digest_articles,omitempty"`
}

// TableName specifies the table name for the Digest model.
func (Digest) TableName() string {
	return "digests"
}

// DigestArticle is the ordered membership of an Article in a Digest. Rank is
// 1-based and dense, frozen at digest-creation time.
type DigestArticle struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	DigestID  uint    `gorm:"not null;uniqueIndex:uq_digest_article" json:"digest_id"`
	ArticleID uint    `gorm:"not null;uniqueIndex:uq_digest_article" json:"article_id"`
	Rank      int     `gorm:"not null" json:"rank"`
	Article   Article `gorm:"foreignKey:ArticleID" json:"article,omitempty"`
}

// TableName specifies the table name for the DigestArticle model.
func (DigestArticle) TableName() string {
	return "digest_articles"
}
