package repository

import (
	"context"

	"golang-market-news/internal/worker/dto"
)

// Provider identifiers persisted on analysis rows.
const (
	ProviderGemini    = "google"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// AnalyzerRepository is the single capability every analysis provider
// implements. A provider either returns a validated judgment or fails; it
// never returns loosely-typed data.
type AnalyzerRepository interface {
	Provider() string
	ModelName() string
	Analyze(ctx context.Context, input dto.AnalyzeInput) (*dto.NewsJudgment, error)
}

// ScraperRepository extracts the readable text content of an article URL.
type ScraperRepository interface {
	Scrape(ctx context.Context, url string) (string, error)
}
