package dto

import (
	"encoding/json"
	"time"
)

// NewsCandidate is one candidate article from a discovery source, normalized
// across source kinds.
type NewsCandidate struct {
	NewsURL       string
	Title         string
	Source        string
	PublishedAt   *time.Time
	Topics        []string
	SentimentHint string
	RawPayload    json.RawMessage
}

// NewsAPIItem is one raw item from the news API category endpoint.
type NewsAPIItem struct {
	NewsURL    string   `json:"news_url"`
	Title      string   `json:"title"`
	Text       string   `json:"text,omitempty"`
	SourceName string   `json:"source_name,omitempty"`
	Date       string   `json:"date,omitempty"`
	Topics     []string `json:"topics,omitempty"`
	Sentiment  string   `json:"sentiment,omitempty"`
}

// NewsAPIResponse is the envelope of the news API category endpoint.
type NewsAPIResponse struct {
	Data       []NewsAPIItem `json:"data"`
	Message    string        `json:"message,omitempty"`
	TotalPages int           `json:"total_pages,omitempty"`
	Page       int           `json:"page,omitempty"`
}

// PublishedAt parses the item date. The API returns ISO 8601 for some items
// and RFC 2822 for others.
func (i NewsAPIItem) PublishedAt() *time.Time {
	if i.Date == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, i.Date); err == nil {
			return &t
		}
	}
	return nil
}
