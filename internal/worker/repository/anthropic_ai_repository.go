package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang-market-news/internal/worker/config"
	"golang-market-news/internal/worker/dto"
	"golang-market-news/pkg/logger"

	"golang.org/x/time/rate"
)

const anthropicAPIVersion = "2023-06-01"

type anthropicMessagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicMessagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// anthropicAIRepository implements AnalyzerRepository using the Anthropic
// Messages API.
type anthropicAIRepository struct {
	client         *http.Client
	cfg            *config.Config
	logger         *logger.Logger
	requestLimiter *rate.Limiter
}

// NewAnthropicAIRepository creates a new instance of anthropicAIRepository.
func NewAnthropicAIRepository(cfg *config.Config, log *logger.Logger) AnalyzerRepository {
	secondsPerRequest := time.Minute / time.Duration(cfg.Anthropic.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)

	return &anthropicAIRepository{
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
		cfg:            cfg,
		logger:         log,
		requestLimiter: requestLimiter,
	}
}

func (r *anthropicAIRepository) Provider() string {
	return ProviderAnthropic
}

func (r *anthropicAIRepository) ModelName() string {
	return r.cfg.Anthropic.Model
}

// Analyze performs article analysis using the Anthropic API.
func (r *anthropicAIRepository) Analyze(ctx context.Context, input dto.AnalyzeInput) (*dto.NewsJudgment, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	payload := anthropicMessagesRequest{
		Model:     r.cfg.Anthropic.Model,
		MaxTokens: 1024,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildAnalyzeArticlePrompt(input)},
		},
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	apiURL := fmt.Sprintf("%s/v1/messages", r.cfg.Anthropic.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create new http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", r.cfg.Anthropic.APIKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to Anthropic API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("received non-OK response from Anthropic API: %d - %s", resp.StatusCode, string(body))
	}

	var messagesResp anthropicMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&messagesResp); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(messagesResp.Content) == 0 {
		return nil, fmt.Errorf("invalid response from Anthropic API: no content found")
	}

	return dto.ParseNewsJudgment(messagesResp.Content[0].Text)
}
