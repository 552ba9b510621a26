package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang-market-news/internal/worker/config"
	"golang-market-news/pkg/logger"
	"golang-market-news/pkg/utils"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/mauidude/go-readability"
)

const firecrawlScrapePath = "/v1/scrape"

type firecrawlRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	WaitFor         int      `json:"waitFor"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type firecrawlResponse struct {
	Data struct {
		Markdown string `json:"markdown"`
		Content  string `json:"content"`
	} `json:"data"`
}

// scraperRepository extracts article text, preferring the Firecrawl API and
// falling back to a direct fetch with readability extraction when no API key
// is configured.
type scraperRepository struct {
	client *http.Client
	cfg    *config.Config
	logger *logger.Logger
}

// NewScraperRepository creates a new instance of scraperRepository.
func NewScraperRepository(cfg *config.Config, log *logger.Logger) ScraperRepository {
	return &scraperRepository{
		client: &http.Client{
			Timeout: cfg.Scraper.Timeout,
		},
		cfg:    cfg,
		logger: log,
	}
}

// Scrape returns the readable text content of the given URL, or an error for
// a structurally unscrapable page.
func (r *scraperRepository) Scrape(ctx context.Context, url string) (string, error) {
	if r.cfg.Scraper.FirecrawlAPIKey != "" {
		return r.scrapeFirecrawl(ctx, url)
	}
	return r.scrapeDirect(ctx, url)
}

func (r *scraperRepository) scrapeFirecrawl(ctx context.Context, url string) (string, error) {
	payload := firecrawlRequest{
		URL:             url,
		Formats:         []string{"markdown"},
		WaitFor:         1000,
		OnlyMainContent: true,
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	endpoint := strings.TrimRight(r.cfg.Scraper.FirecrawlBaseURL, "/") + firecrawlScrapePath
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return "", fmt.Errorf("failed to create new http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.Scraper.FirecrawlAPIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request to Firecrawl API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-OK response from Firecrawl API: %d - %s", resp.StatusCode, string(body))
	}

	var firecrawlResp firecrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&firecrawlResp); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	content := firecrawlResp.Data.Markdown
	if content == "" {
		content = firecrawlResp.Data.Content
	}
	if content == "" {
		return "", fmt.Errorf("firecrawl returned no content for %s", url)
	}
	return content, nil
}

func (r *scraperRepository) scrapeDirect(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create new http request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; market-news-bot/1.0)")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received non-OK response fetching article: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read article body: %w", err)
	}

	doc, err := readability.NewDocument(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse article content: %w", err)
	}
	content := doc.Content()

	docHTML, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(content)))
	if err != nil {
		return "", fmt.Errorf("failed to parse extracted content: %w", err)
	}

	text := utils.SafeText(strings.TrimSpace(docHTML.Text()))
	if text == "" {
		return "", fmt.Errorf("no readable content extracted from %s", url)
	}
	return text, nil
}
