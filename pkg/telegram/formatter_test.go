package telegram

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatArticleAlert(t *testing.T) {
	published := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)
	text := FormatArticleAlert(AlertMessage{
		Title:          "Fed Cuts Rates by 50bps",
		Source:         "Reuters",
		PublishedAt:    &published,
		NewsURL:        "https://example.com/fed-cuts",
		Sentiment:      "Bullish",
		SentimentScore: 0.82,
		ImpactScore:    0.9,
		KeyTopics:      []string{"Fed", "rates"},
		Summary:        "Surprise 50bps cut.",
		ProviderCount:  3,
	})

	assert.Contains(t, text, "Fed Cuts Rates by 50bps")
	assert.Contains(t, text, "Reuters")
	assert.Contains(t, text, "Bullish")
	assert.Contains(t, text, "+0.82")
	assert.Contains(t, text, "https://example.com/fed-cuts")
	assert.Contains(t, text, "Surprise 50bps cut.")
}

func TestFormatDigest_Empty(t *testing.T) {
	now := time.Now()
	messages := FormatDigest("premarket", nil, now.Add(-24*time.Hour), now)

	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "Premarket Market Digest")
	assert.Contains(t, messages[0], "Nothing notable this window.")
}

func TestFormatDigest_SplitsLongDigests(t *testing.T) {
	now := time.Now()
	var entries []DigestEntry
	for i := 1; i <= 60; i++ {
		entries = append(entries, DigestEntry{
			Rank:      i,
			Title:     fmt.Sprintf("Article %d with a fairly descriptive headline %s", i, strings.Repeat("x", 80)),
			Source:    "Bloomberg",
			NewsURL:   fmt.Sprintf("https://example.com/articles/%d", i),
			Sentiment: "Neutral",
		})
	}

	messages := FormatDigest("weekly", entries, now.Add(-7*24*time.Hour), now)

	require.Greater(t, len(messages), 1, "an oversized digest is split into parts")
	for _, m := range messages {
		assert.LessOrEqual(t, len(m), 4096, "every part fits the channel limit")
	}
	assert.Contains(t, messages[1], "part 2")
	assert.Contains(t, messages[0], "*1.*")
	assert.Contains(t, messages[len(messages)-1], "*60.*")
}
