package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang-market-news/internal/worker/config"
	"golang-market-news/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scraperTestConfig(baseURL string) *config.Config {
	return &config.Config{
		Scraper: config.Scraper{
			FirecrawlBaseURL: baseURL,
			FirecrawlAPIKey:  "test-key",
			Timeout:          5 * time.Second,
		},
	}
}

func TestScrapeFirecrawl_PostsToScrapeEndpoint(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq firecrawlRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"markdown": "Futures slid after the CPI print."}})
	}))
	defer server.Close()

	log, err := logger.New("error", "console")
	require.NoError(t, err)

	for _, baseURL := range []string{server.URL, server.URL + "/"} {
		scraper := NewScraperRepository(scraperTestConfig(baseURL), log)

		content, err := scraper.Scrape(context.Background(), "https://example.com/article")
		require.NoError(t, err)

		assert.Equal(t, "/v1/scrape", gotPath, "the scrape path is appended to the configured base URL")
		assert.Equal(t, "Bearer test-key", gotAuth)
		assert.Equal(t, "https://example.com/article", gotReq.URL)
		assert.Equal(t, "Futures slid after the CPI print.", content)
	}
}

func TestScrapeFirecrawl_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	log, err := logger.New("error", "console")
	require.NoError(t, err)
	scraper := NewScraperRepository(scraperTestConfig(server.URL), log)

	_, err = scraper.Scrape(context.Background(), "https://example.com/article")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-OK response from Firecrawl API")
}
