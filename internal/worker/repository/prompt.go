package repository

import (
	"fmt"

	"golang-market-news/internal/worker/dto"
)

const analyzeArticlePromptTemplate = `You are a financial news analyst specializing in market sentiment analysis for futures traders.

Analyze the following news article and provide a structured assessment.

ARTICLE:
Title: %s
Source: %s
Published: %s
Content:
%s

Provide your analysis in the following JSON format:
{
  "summary": "A 2-3 sentence summary of the article's key points and market implications",
  "sentiment": "Bullish" | "Bearish" | "Neutral",
  "sentiment_score": <float from -1.0 (most bearish) to 1.0 (most bullish)>,
  "confidence": <float from 0.0 (lowest confidence) to 1.0 (highest confidence)>,
  "impact_score": <float from 0.0 (minimal impact) to 1.0 (major market-moving)>,
  "key_topics": ["list", "of", "relevant", "entities", "and", "topics"]
}

SCORING GUIDELINES:
- Sentiment: Consider implications for S&P 500, Nasdaq, and Gold futures
- Impact Score:
  - 0.0-0.3: Routine news, minor market relevance
  - 0.4-0.6: Notable news, moderate market relevance
  - 0.7-0.9: Significant news, high market relevance
  - 0.9-1.0: Major market-moving event (Fed decisions, major economic data, geopolitical events)

Focus on implications for:
- ES (S&P 500 E-mini futures)
- NQ (Nasdaq E-mini futures)
- GC (Gold futures)
- Federal Reserve / FOMC policy
- Major economic indicators

Return ONLY the JSON object, no additional text.`

// BuildAnalyzeArticlePrompt renders the shared analysis prompt for one
// article. All providers receive the same prompt.
func BuildAnalyzeArticlePrompt(input dto.AnalyzeInput) string {
	source := input.Source
	if source == "" {
		source = "Unknown"
	}
	published := "Unknown"
	if input.PublishedAt != nil {
		published = input.PublishedAt.Format("2006-01-02 15:04 MST")
	}
	return fmt.Sprintf(analyzeArticlePromptTemplate, input.Title, source, published, input.Content)
}
