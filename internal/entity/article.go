package entity

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Article represents a discovered news item. The source URL is the natural
// key; the storage-level unique constraint on it is the sole dedup mechanism.
type Article struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	NewsURL            string            `gorm:"unique;not null" json:"news_url"`
	Title              string            `gorm:"not null" json:"title"`
	Source             string            `json:"source"`
	PublishedAt        *time.Time        `json:"published_at,omitempty"`
	Topics             pq.StringArray    `gorm:"type:text[]" json:"topics"`
	APISentiment       string            `json:"api_sentiment,omitempty"`
	RawAPIResponse     datatypes.JSON    `json:"raw_api_response,omitempty"`
	ScrapedContent     string            `json:"scraped_content,omitempty"`
	ScrapedAt          *time.Time        `json:"scraped_at,omitempty"`
	ScrapeFailed       bool              `gorm:"not null;default:false" json:"scrape_failed"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
	IncludedInDigestAt *time.Time        `json:"included_in_digest_at,omitempty"`
	AlertSentAt        *time.Time        `json:"alert_sent_at,omitempty"`
	Analyses           []ArticleAnalysis `gorm:"foreignKey:ArticleID" json:"analyses,omitempty"`
}

// TableName specifies the table name for the Article model.
func (Article) TableName() string {
	return "articles"
}
