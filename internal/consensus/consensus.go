package consensus

import (
	"strings"

	"golang-market-news/internal/entity"
)

// Result is the aggregate judgment over all provider analyses stored for one
// article.
type Result struct {
	// Consensus holds iff at least two providers responded and every
	// responding provider agrees on the sentiment label.
	Consensus bool
	// Sentiment is the unanimous label under consensus, otherwise the most
	// common label among responders.
	Sentiment         string
	AvgSentimentScore float64
	AvgImpactScore    float64
	// KeyTopics is the deduplicated union of all providers' topic lists,
	// original order preserved.
	KeyTopics []string
	// Relevant holds iff the topic union intersects the configured
	// relevance set.
	Relevant bool
}

// Evaluate computes the aggregate signal for one article from whatever
// analyses exist. It is a pure function: no storage, no side effects.
func Evaluate(analyses []entity.ArticleAnalysis, relevanceTopics []string) Result {
	if len(analyses) == 0 {
		return Result{}
	}

	var (
		sentimentSum float64
		impactSum    float64
		counts       = make(map[string]int)
		order        []string
	)
	for _, a := range analyses {
		label := NormalizeSentiment(a.Sentiment)
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		counts[label]++
		sentimentSum += a.SentimentScore
		impactSum += a.ImpactScore
	}

	leader := order[0]
	for _, label := range order {
		if counts[label] > counts[leader] {
			leader = label
		}
	}

	topics := unionTopics(analyses)

	return Result{
		Consensus:         len(analyses) >= 2 && len(counts) == 1,
		Sentiment:         leader,
		AvgSentimentScore: sentimentSum / float64(len(analyses)),
		AvgImpactScore:    impactSum / float64(len(analyses)),
		KeyTopics:         topics,
		Relevant:          intersects(topics, relevanceTopics),
	}
}

// ShouldAlert decides whether a notification fires: unanimous sentiment,
// aggregate impact at or above the threshold, and topic relevance.
func ShouldAlert(res Result, impactThreshold float64) bool {
	return res.Consensus && res.AvgImpactScore >= impactThreshold && res.Relevant
}

// NormalizeSentiment maps a provider label onto the canonical
// Bullish/Bearish/Neutral set. Unknown labels normalize to Neutral.
func NormalizeSentiment(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "bullish":
		return entity.SentimentBullish
	case "bearish":
		return entity.SentimentBearish
	default:
		return entity.SentimentNeutral
	}
}

func unionTopics(analyses []entity.ArticleAnalysis) []string {
	var topics []string
	seen := make(map[string]struct{})
	for _, a := range analyses {
		for _, t := range a.KeyTopics {
			key := strings.ToLower(strings.TrimSpace(t))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			topics = append(topics, t)
		}
	}
	return topics
}

func intersects(topics, relevance []string) bool {
	if len(relevance) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(relevance))
	for _, r := range relevance {
		set[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	for _, t := range topics {
		if _, ok := set[strings.ToLower(strings.TrimSpace(t))]; ok {
			return true
		}
	}
	return false
}
