package entity

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Sentiment labels a provider judgment may carry.
const (
	SentimentBullish = "Bullish"
	SentimentBearish = "Bearish"
	SentimentNeutral = "Neutral"
)

// ArticleAnalysis is one provider's judgment on one article. The unique
// (article_id, model_provider) pair guarantees a re-analysis replaces rather
// than duplicates.
type ArticleAnalysis struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ArticleID      uint           `gorm:"not null;uniqueIndex:uq_article_analysis_provider" json:"article_id"`
	ModelProvider  string         `gorm:"not null;uniqueIndex:uq_article_analysis_provider" json:"model_provider"`
	ModelName      string         `gorm:"not null" json:"model_name"`
	Summary        string         `json:"summary,omitempty"`
	Sentiment      string         `json:"sentiment"`
	SentimentScore float64        `json:"sentiment_score"`
	Confidence     *float64       `json:"confidence,omitempty"`
	ImpactScore    float64        `json:"impact_score"`
	KeyTopics      pq.StringArray `gorm:"type:text[]" json:"key_topics"`
	RawResponse    datatypes.JSON `json:"raw_response,omitempty"`
	AnalyzedAt     time.Time      `gorm:"autoCreateTime" json:"analyzed_at"`
}

// TableName specifies the table name for the ArticleAnalysis model.
func (ArticleAnalysis) TableName() string {
	return "article_analyses"
}
