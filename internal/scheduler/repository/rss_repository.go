package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"golang-market-news/internal/scheduler/dto"
	"golang-market-news/pkg/logger"

	"github.com/mmcdole/gofeed"
)

// RSSRepository fetches candidate articles from one RSS/Atom feed.
type RSSRepository struct {
	feedURL string
	logger  *logger.Logger
	parser  *gofeed.Parser
}

// NewRSSRepository creates a new RSSRepository for the given feed URL.
func NewRSSRepository(feedURL string, log *logger.Logger) *RSSRepository {
	return &RSSRepository{
		feedURL: feedURL,
		logger:  log,
		parser:  gofeed.NewParser(),
	}
}

// Name returns the source identifier.
func (r *RSSRepository) Name() string {
	return "rss:" + r.feedURL
}

// FetchLatest parses the feed and normalizes its items into candidates.
func (r *RSSRepository) FetchLatest(ctx context.Context) ([]dto.NewsCandidate, error) {
	feed, err := r.parser.ParseURLWithContext(r.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", r.feedURL, err)
	}

	source := feed.Title
	candidates := make([]dto.NewsCandidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" || item.Title == "" {
			continue
		}
		raw, err := json.Marshal(map[string]string{
			"title":       item.Title,
			"link":        item.Link,
			"description": item.Description,
		})
		if err != nil {
			raw = nil
		}
		candidates = append(candidates, dto.NewsCandidate{
			NewsURL:     item.Link,
			Title:       item.Title,
			Source:      source,
			PublishedAt: item.PublishedParsed,
			Topics:      item.Categories,
			RawPayload:  raw,
		})
	}

	return candidates, nil
}
