package repository

import (
	"context"
	"fmt"
	"time"

	"golang-market-news/internal/worker/config"
	"golang-market-news/internal/worker/dto"
	"golang-market-news/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const openaiMaxTokens = 1024

// openaiAIRepository implements AnalyzerRepository using the OpenAI chat
// completion API.
type openaiAIRepository struct {
	client         *openai.Client
	cfg            *config.Config
	logger         *logger.Logger
	requestLimiter *rate.Limiter
}

// NewOpenAIRepository creates a new instance of openaiAIRepository.
func NewOpenAIRepository(cfg *config.Config, log *logger.Logger) AnalyzerRepository {
	secondsPerRequest := time.Minute / time.Duration(cfg.OpenAI.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)

	return &openaiAIRepository{
		client:         openai.NewClient(cfg.OpenAI.APIKey),
		cfg:            cfg,
		logger:         log,
		requestLimiter: requestLimiter,
	}
}

func (r *openaiAIRepository) Provider() string {
	return ProviderOpenAI
}

func (r *openaiAIRepository) ModelName() string {
	return r.cfg.OpenAI.Model
}

// Analyze performs article analysis using the OpenAI API.
func (r *openaiAIRepository) Analyze(ctx context.Context, input dto.AnalyzeInput) (*dto.NewsJudgment, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	prompt := BuildAnalyzeArticlePrompt(input)

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.cfg.OpenAI.Model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: openaiMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("invalid response from OpenAI API: no choices found")
	}

	return dto.ParseNewsJudgment(resp.Choices[0].Message.Content)
}
