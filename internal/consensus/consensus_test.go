package consensus

import (
	"testing"

	"golang-market-news/internal/entity"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func analysis(sentiment string, sentimentScore, impactScore float64, topics ...string) entity.ArticleAnalysis {
	return entity.ArticleAnalysis{
		Sentiment:      sentiment,
		SentimentScore: sentimentScore,
		ImpactScore:    impactScore,
		KeyTopics:      pq.StringArray(topics),
	}
}

func TestEvaluateConsensusUnanimity(t *testing.T) {
	tests := []struct {
		name      string
		analyses  []entity.ArticleAnalysis
		consensus bool
	}{
		{
			name: "two bullish agree",
			analyses: []entity.ArticleAnalysis{
				analysis("Bullish", 0.5, 0.5),
				analysis("Bullish", 0.7, 0.6),
			},
			consensus: true,
		},
		{
			name: "bullish vs bearish",
			analyses: []entity.ArticleAnalysis{
				analysis("Bullish", 0.5, 0.5),
				analysis("Bearish", -0.5, 0.5),
			},
			consensus: false,
		},
		{
			name: "single result never consensus",
			analyses: []entity.ArticleAnalysis{
				analysis("Bullish", 0.9, 0.9),
			},
			consensus: false,
		},
		{
			name: "majority is not unanimity",
			analyses: []entity.ArticleAnalysis{
				analysis("Bullish", 0.5, 0.5),
				analysis("Bullish", 0.6, 0.5),
				analysis("Neutral", 0.0, 0.5),
			},
			consensus: false,
		},
		{
			name: "case-insensitive labels still agree",
			analyses: []entity.ArticleAnalysis{
				analysis("bullish", 0.5, 0.5),
				analysis("Bullish", 0.6, 0.5),
			},
			consensus: true,
		},
		{
			name:      "empty set",
			analyses:  nil,
			consensus: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tt.analyses, nil)
			assert.Equal(t, tt.consensus, res.Consensus)
		})
	}
}

func TestEvaluateAggregates(t *testing.T) {
	analyses := []entity.ArticleAnalysis{
		analysis("Bullish", 0.8, 0.8, "Federal Reserve"),
		analysis("Bullish", 0.6, 0.75, "inflation"),
		analysis("Bullish", 0.7, 0.9, "federal reserve", "S&P 500"),
	}

	res := Evaluate(analyses, []string{"Federal Reserve"})

	assert.True(t, res.Consensus)
	assert.Equal(t, entity.SentimentBullish, res.Sentiment)
	assert.InDelta(t, 0.7, res.AvgSentimentScore, 1e-9)
	assert.InDelta(t, 0.8167, res.AvgImpactScore, 1e-4)
	assert.True(t, res.Relevant)
	// union is deduplicated case-insensitively, order preserved
	assert.Equal(t, []string{"Federal Reserve", "inflation", "S&P 500"}, res.KeyTopics)
}

func TestShouldAlert(t *testing.T) {
	analyses := []entity.ArticleAnalysis{
		analysis("Bullish", 0.8, 0.8, "FOMC"),
		analysis("Bullish", 0.6, 0.75, "earnings"),
		analysis("Bullish", 0.7, 0.9, "fomc"),
	}

	relevant := Evaluate(analyses, []string{"FOMC"})
	assert.True(t, ShouldAlert(relevant, 0.7))
	assert.False(t, ShouldAlert(relevant, 0.85), "threshold above aggregate impact")

	irrelevant := Evaluate(analyses, []string{"gold"})
	assert.False(t, ShouldAlert(irrelevant, 0.7), "no topic overlap with relevance set")

	split := Evaluate([]entity.ArticleAnalysis{
		analysis("Bullish", 0.8, 0.95, "FOMC"),
		analysis("Bearish", -0.8, 0.95, "FOMC"),
	}, []string{"FOMC"})
	assert.False(t, ShouldAlert(split, 0.7), "no consensus")
}

func TestNormalizeSentiment(t *testing.T) {
	assert.Equal(t, entity.SentimentBullish, NormalizeSentiment(" BULLISH "))
	assert.Equal(t, entity.SentimentBearish, NormalizeSentiment("bearish"))
	assert.Equal(t, entity.SentimentNeutral, NormalizeSentiment("Neutral"))
	assert.Equal(t, entity.SentimentNeutral, NormalizeSentiment("sideways"))
}
