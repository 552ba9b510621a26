package repository

import (
	"context"

	"golang-market-news/internal/scheduler/dto"
)

// NewsSourceRepository is one discovery source of candidate articles. The news
// API and each RSS feed implement the same capability.
type NewsSourceRepository interface {
	Name() string
	FetchLatest(ctx context.Context) ([]dto.NewsCandidate, error)
}
