package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ArticleQueueMessage is the payload carried by one queue message. It holds
// enough to proceed even when the article row is momentarily inconsistent.
type ArticleQueueMessage struct {
	ArticleID   uint       `json:"article_id"`
	NewsURL     string     `json:"news_url"`
	Source      string     `json:"source,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// AnalyzeInput is the article material handed to every analysis provider.
type AnalyzeInput struct {
	Title       string
	Source      string
	PublishedAt *time.Time
	Content     string
}

// NewsJudgment is the strict schema every provider response must satisfy.
// Any violation is a provider failure, not a partial success.
type NewsJudgment struct {
	Summary        string   `json:"summary,omitempty"`
	Sentiment      string   `json:"sentiment"`
	SentimentScore float64  `json:"sentiment_score"`
	Confidence     *float64 `json:"confidence,omitempty"`
	ImpactScore    float64  `json:"impact_score"`
	KeyTopics      []string `json:"key_topics"`
}

// ParseNewsJudgment parses a raw provider response into a validated judgment.
// Markdown code fences around the JSON object are tolerated.
func ParseNewsJudgment(raw string) (*NewsJudgment, error) {
	cleaned := StripCodeFences(raw)

	var judgment NewsJudgment
	if err := json.Unmarshal([]byte(cleaned), &judgment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider response: %w", err)
	}
	if err := judgment.Validate(); err != nil {
		return nil, err
	}
	return &judgment, nil
}

// Validate checks the judgment against the fixed schema: sentiment must be
// one of Bullish/Bearish/Neutral, scores must be in range.
func (j *NewsJudgment) Validate() error {
	switch strings.ToLower(j.Sentiment) {
	case "bullish", "bearish", "neutral":
	default:
		return fmt.Errorf("invalid sentiment label: %q", j.Sentiment)
	}
	if j.SentimentScore < -1.0 || j.SentimentScore > 1.0 {
		return fmt.Errorf("sentiment_score out of range: %f", j.SentimentScore)
	}
	if j.ImpactScore < 0.0 || j.ImpactScore > 1.0 {
		return fmt.Errorf("impact_score out of range: %f", j.ImpactScore)
	}
	if j.Confidence != nil && (*j.Confidence < 0.0 || *j.Confidence > 1.0) {
		return fmt.Errorf("confidence out of range: %f", *j.Confidence)
	}
	return nil
}

// StripCodeFences removes a surrounding markdown code fence (```json ... ```)
// from a provider response.
func StripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.Index(text, "\n"); idx != -1 {
		text = text[idx+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
