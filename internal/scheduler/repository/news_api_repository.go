package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang-market-news/internal/scheduler/config"
	"golang-market-news/internal/scheduler/dto"
	"golang-market-news/pkg/logger"
)

// NewsAPIRepository fetches candidate articles from the news API category
// endpoint.
type NewsAPIRepository struct {
	cfg    config.NewsAPI
	logger *logger.Logger
	client *http.Client
}

// NewNewsAPIRepository creates a new NewsAPIRepository.
func NewNewsAPIRepository(cfg config.NewsAPI, log *logger.Logger) *NewsAPIRepository {
	return &NewsAPIRepository{
		cfg:    cfg,
		logger: log,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the source identifier.
func (r *NewsAPIRepository) Name() string {
	return "news-api"
}

// FetchLatest retrieves the most recent candidate batch from the category
// endpoint. Paywalled sections are excluded server-side where the API supports
// it; the dedup gate filters again by topic tag regardless.
func (r *NewsAPIRepository) FetchLatest(ctx context.Context) ([]dto.NewsCandidate, error) {
	params := url.Values{}
	params.Set("token", r.cfg.APIKey)
	params.Set("section", r.cfg.Section)
	params.Set("items", strconv.Itoa(r.cfg.Items))
	params.Set("page", "1")
	params.Set("topicexclude", "paywall,paylimitwall,podcast")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create news API request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call news API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("news API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp dto.NewsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode news API response: %w", err)
	}

	candidates := make([]dto.NewsCandidate, 0, len(apiResp.Data))
	for _, item := range apiResp.Data {
		if item.NewsURL == "" || item.Title == "" {
			r.logger.Warn("Skipping news API item without url or title")
			continue
		}
		raw, err := json.Marshal(item)
		if err != nil {
			raw = nil
		}
		candidates = append(candidates, dto.NewsCandidate{
			NewsURL:       item.NewsURL,
			Title:         item.Title,
			Source:        item.SourceName,
			PublishedAt:   item.PublishedAt(),
			Topics:        item.Topics,
			SentimentHint: item.Sentiment,
			RawPayload:    raw,
		})
	}

	return candidates, nil
}
