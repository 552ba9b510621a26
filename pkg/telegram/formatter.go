package telegram

import (
	"fmt"
	"strings"
	"time"
)

// AlertMessage carries everything a high-impact alert displays.
type AlertMessage struct {
	Title          string
	Source         string
	PublishedAt    *time.Time
	NewsURL        string
	Sentiment      string
	SentimentScore float64
	ImpactScore    float64
	KeyTopics      []string
	Summary        string
	ProviderCount  int
}

// DigestEntry is one ranked article inside a digest message.
type DigestEntry struct {
	Rank           int
	Title          string
	Source         string
	NewsURL        string
	Sentiment      string
	SentimentScore float64
	ImpactScore    float64
	Consensus      bool
}

// FormatArticleAlert renders a high-impact alert for the alerts channel.
func FormatArticleAlert(msg AlertMessage) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🚨 *High-Impact Alert: %s*\n\n", msg.Title))
	b.WriteString(fmt.Sprintf("📰 *Source:* %s\n", msg.Source))
	if msg.PublishedAt != nil {
		b.WriteString(fmt.Sprintf("🕒 *Published:* %s\n", msg.PublishedAt.Format("Jan 2, 2006 15:04 MST")))
	}
	b.WriteString(fmt.Sprintf("%s *Consensus Sentiment:* %s (%+.2f)\n", sentimentIcon(msg.Sentiment), msg.Sentiment, msg.SentimentScore))
	b.WriteString(fmt.Sprintf("⚡ *Impact Score:* %s `%.2f/1.0`\n", impactBar(msg.ImpactScore), msg.ImpactScore))
	b.WriteString(fmt.Sprintf("🤖 *Models in agreement:* %d\n", msg.ProviderCount))

	if len(msg.KeyTopics) > 0 {
		topics := msg.KeyTopics
		if len(topics) > 8 {
			topics = topics[:8]
		}
		b.WriteString(fmt.Sprintf("🔍 *Key Topics:* %s\n", strings.Join(topics, ", ")))
	}

	if msg.Summary != "" {
		b.WriteString(fmt.Sprintf("\n💬 %s\n", msg.Summary))
	}

	b.WriteString(fmt.Sprintf("\n🔗 [Read Original Article](%s)", msg.NewsURL))
	return b.String()
}

// FormatDigest renders a ranked digest for the digests channel. Messages are
// split so no part exceeds Telegram's length limit.
func FormatDigest(digestType string, entries []DigestEntry, periodStart, periodEnd time.Time) []string {
	header := fmt.Sprintf("📋 *%s Market Digest*\n_%s — %s_\n\n",
		titleCase(digestType),
		periodStart.Format("Jan 2 15:04"),
		periodEnd.Format("Jan 2 15:04 MST"),
	)

	if len(entries) == 0 {
		return []string{header + "Nothing notable this window."}
	}

	const maxLen = 4090
	var messages []string
	var current strings.Builder
	current.WriteString(header)
	part := 1

	for _, e := range entries {
		var entry strings.Builder
		consensusMark := ""
		if e.Consensus {
			consensusMark = " ✅"
		}
		entry.WriteString(fmt.Sprintf("*%d.* [%s](%s)%s\n", e.Rank, e.Title, e.NewsURL, consensusMark))
		entry.WriteString(fmt.Sprintf("    %s %s (%+.2f) · ⚡ %.2f · %s\n\n",
			sentimentIcon(e.Sentiment), e.Sentiment, e.SentimentScore, e.ImpactScore, e.Source))

		if current.Len()+entry.Len() > maxLen {
			messages = append(messages, current.String())
			part++
			current.Reset()
			current.WriteString(fmt.Sprintf("📋 *%s Market Digest (part %d)*\n\n", titleCase(digestType), part))
		}
		current.WriteString(entry.String())
	}

	messages = append(messages, current.String())
	return messages
}

func sentimentIcon(sentiment string) string {
	switch strings.ToLower(sentiment) {
	case "bullish":
		return "🟢"
	case "bearish":
		return "🔴"
	default:
		return "⚪"
	}
}

func impactBar(score float64) string {
	filled := int(score * 10)
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
