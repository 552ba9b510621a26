package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang-market-news/internal/consensus"
	"golang-market-news/internal/entity"
	"golang-market-news/internal/scheduler/config"
	"golang-market-news/internal/scheduler/repository"
	"golang-market-news/pkg/logger"
	"golang-market-news/pkg/telegram"
	"golang-market-news/pkg/utils"
)

// DigestService aggregates unsummarized articles into ranked digests.
type DigestService interface {
	Run(ctx context.Context, digestType entity.DigestType) error
}

// NewDigestService creates a new DigestService.
func NewDigestService(
	cfg *config.Config,
	log *logger.Logger,
	articleRepo repository.ArticleRepository,
	digestRepo repository.DigestRepository,
	notifier telegram.Notifier,
) DigestService {
	return &digestService{
		cfg:         cfg,
		log:         log,
		articleRepo: articleRepo,
		digestRepo:  digestRepo,
		notifier:    notifier,
	}
}

type digestService struct {
	cfg         *config.Config
	log         *logger.Logger
	articleRepo repository.ArticleRepository
	digestRepo  repository.DigestRepository
	notifier    telegram.Notifier
}

// RankedArticle pairs an article with its aggregate signal for ranking.
type RankedArticle struct {
	Article entity.Article
	Signal  consensus.Result
}

// Run executes one digest aggregation for the given kind.
func (s *digestService) Run(ctx context.Context, digestType entity.DigestType) error {
	now := utils.TimeNowET()

	last, err := s.digestRepo.FindLastByType(ctx, digestType)
	if err != nil {
		return fmt.Errorf("failed to load last %s digest: %w", digestType, err)
	}

	if last != nil && now.Sub(last.SentAt) < s.cfg.Digest.Tolerance {
		s.log.Info("Digest recently emitted, skipping run", logger.StringField("digest_type", string(digestType)))
		return nil
	}

	since := lookbackStart(digestType, last, now)

	eligible, err := s.articleRepo.FindEligibleForDigest(ctx, since, now)
	if err != nil {
		return fmt.Errorf("failed to load eligible articles: %w", err)
	}

	ranked := RankArticles(eligible)
	if s.cfg.Digest.MaxArticles > 0 && len(ranked) > s.cfg.Digest.MaxArticles {
		ranked = ranked[:s.cfg.Digest.MaxArticles]
	}

	digest := &entity.Digest{
		DigestType:   digestType,
		SentAt:       now,
		ArticleCount: len(ranked),
	}
	articleIDs := make([]uint, 0, len(ranked))
	for _, r := range ranked {
		articleIDs = append(articleIDs, r.Article.ID)
	}

	// The digest row is persisted even for an empty window, so the next run's
	// lookback starts here regardless of dispatch behavior.
	if err := s.digestRepo.CreateWithArticles(ctx, digest, articleIDs); err != nil {
		return fmt.Errorf("failed to persist %s digest: %w", digestType, err)
	}

	s.log.Info("Digest persisted",
		logger.StringField("digest_type", string(digestType)),
		logger.IntField("article_count", len(ranked)))

	if len(ranked) == 0 && !s.cfg.Digest.SendEmpty {
		return nil
	}

	s.dispatch(digest, ranked, since, now)
	return nil
}

// dispatch formats and sends the digest. Failure is logged and leaves the
// digest persisted without a message identifier; there is no automatic retry.
func (s *digestService) dispatch(digest *entity.Digest, ranked []RankedArticle, periodStart, periodEnd time.Time) {
	entries := make([]telegram.DigestEntry, 0, len(ranked))
	for i, r := range ranked {
		entries = append(entries, telegram.DigestEntry{
			Rank:           i + 1,
			Title:          r.Article.Title,
			Source:         r.Article.Source,
			NewsURL:        r.Article.NewsURL,
			Sentiment:      r.Signal.Sentiment,
			SentimentScore: r.Signal.AvgSentimentScore,
			ImpactScore:    r.Signal.AvgImpactScore,
			Consensus:      r.Signal.Consensus,
		})
	}

	var firstMessageID string
	for _, text := range telegram.FormatDigest(string(digest.DigestType), entries, periodStart, periodEnd) {
		messageID, err := s.notifier.SendDigest(text)
		if err != nil {
			s.log.Error("Failed to send digest message", logger.ErrorField(err), logger.Field("digest_id", digest.ID))
			return
		}
		if firstMessageID == "" {
			firstMessageID = messageID
		}
	}

	if firstMessageID != "" {
		if err := s.digestRepo.UpdateMessageID(context.Background(), digest.ID, firstMessageID); err != nil {
			s.log.Error("Failed to record digest message id", logger.ErrorField(err), logger.Field("digest_id", digest.ID))
		}
	}
}

// lookbackStart computes the window start: the last digest of the same kind
// when one exists inside the default lookback, otherwise the default.
func lookbackStart(digestType entity.DigestType, last *entity.Digest, now time.Time) time.Time {
	since := now.Add(-defaultLookback(digestType))
	if last != nil && last.SentAt.After(since) {
		return last.SentAt
	}
	return since
}

func defaultLookback(digestType entity.DigestType) time.Duration {
	switch digestType {
	case entity.DigestTypePremarket:
		return 24 * time.Hour
	case entity.DigestTypeWeekly:
		return 7 * 24 * time.Hour
	default:
		return 6 * time.Hour
	}
}

// RankArticles orders articles by the digest priority function, highest
// first: consensus, then absolute aggregate sentiment, then aggregate impact,
// then recency, then identifier for full determinism. Articles without any
// analysis carry no signal and are dropped, not ranked, so they remain
// available for a later digest once the worker has processed them.
func RankArticles(articles []entity.Article) []RankedArticle {
	ranked := make([]RankedArticle, 0, len(articles))
	for _, article := range articles {
		if len(article.Analyses) == 0 {
			continue
		}
		ranked = append(ranked, RankedArticle{
			Article: article,
			Signal:  consensus.Evaluate(article.Analyses, nil),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Signal.Consensus != b.Signal.Consensus {
			return a.Signal.Consensus
		}
		absA, absB := math.Abs(a.Signal.AvgSentimentScore), math.Abs(b.Signal.AvgSentimentScore)
		if absA != absB {
			return absA > absB
		}
		if a.Signal.AvgImpactScore != b.Signal.AvgImpactScore {
			return a.Signal.AvgImpactScore > b.Signal.AvgImpactScore
		}
		aPub, bPub := publishedOrZero(a.Article), publishedOrZero(b.Article)
		if !aPub.Equal(bPub) {
			return aPub.After(bPub)
		}
		return a.Article.ID < b.Article.ID
	})

	return ranked
}

func publishedOrZero(article entity.Article) time.Time {
	if article.PublishedAt != nil {
		return *article.PublishedAt
	}
	return time.Time{}
}
