package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang-market-news/internal/entity"
	"golang-market-news/internal/scheduler/config"
	"golang-market-news/internal/scheduler/dto"
	"golang-market-news/internal/scheduler/repository"
	"golang-market-news/pkg/common"
	"golang-market-news/pkg/logger"
	"golang-market-news/pkg/utils"

	"github.com/lib/pq"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
)

// DiscoveryService polls the news sources, filters and deduplicates
// candidates, persists new articles, and enqueues one analysis message per
// accepted article.
type DiscoveryService interface {
	Poll(ctx context.Context)
}

// StreamPublisher is the single redis stream command discovery uses.
// *redis.Client satisfies it.
type StreamPublisher interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// NewDiscoveryService creates a new DiscoveryService.
func NewDiscoveryService(
	cfg *config.Config,
	log *logger.Logger,
	redisClient StreamPublisher,
	articleRepo repository.ArticleRepository,
	sources []repository.NewsSourceRepository,
) DiscoveryService {
	return &discoveryService{
		cfg:         cfg,
		log:         log,
		redisClient: redisClient,
		articleRepo: articleRepo,
		sources:     sources,
		seenCache:   cache.New(cfg.Discovery.SeenCacheTTL, 10*time.Minute),
		now:         utils.TimeNowET,
	}
}

type discoveryService struct {
	cfg         *config.Config
	log         *logger.Logger
	redisClient StreamPublisher
	articleRepo repository.ArticleRepository
	sources     []repository.NewsSourceRepository
	seenCache   *cache.Cache
	now         func() time.Time
}

// Poll runs one discovery pass over all configured sources.
func (s *discoveryService) Poll(ctx context.Context) {
	if !shouldRunNow(s.now()) {
		s.log.Debug("Weekend invocation outside top-of-hour, skipping poll")
		return
	}

	var candidates []dto.NewsCandidate
	for _, source := range s.sources {
		batch, err := source.FetchLatest(ctx)
		if err != nil {
			s.log.Error("Failed to fetch from news source", logger.ErrorField(err), logger.StringField("source", source.Name()))
			continue
		}
		candidates = append(candidates, batch...)
	}
	if len(candidates) == 0 {
		return
	}

	filtered, skippedPaywall := filterCandidates(candidates, s.cfg.Discovery.PaywallTags)

	urls := make([]string, 0, len(filtered))
	for _, c := range filtered {
		urls = append(urls, c.NewsURL)
	}

	existing, err := s.articleRepo.FindExistingURLs(ctx, urls)
	if err != nil {
		s.log.Error("Failed to query existing article URLs", logger.ErrorField(err))
		return
	}

	var inserted, duplicates int
	for _, candidate := range filtered {
		if _, known := existing[candidate.NewsURL]; known {
			duplicates++
			continue
		}
		if _, seen := s.seenCache.Get(candidate.NewsURL); seen {
			duplicates++
			continue
		}
		created, durable := s.ingest(ctx, candidate)
		if created {
			inserted++
		}
		// A transient storage failure must not mark the URL seen, or the
		// candidate would be silently dropped for the whole cache TTL.
		if durable {
			s.seenCache.SetDefault(candidate.NewsURL, struct{}{})
		}
	}

	s.log.Info("Poll complete",
		logger.IntField("fetched", len(candidates)),
		logger.IntField("inserted", inserted),
		logger.IntField("paywalled", skippedPaywall),
		logger.IntField("duplicates", duplicates))
}

// ingest persists one candidate and, only after the row is durably committed,
// emits its queue message. A single candidate's failure never aborts the
// batch. The second return reports whether the URL reached a durable state
// (inserted, or confirmed already stored) and may be cached as seen.
func (s *discoveryService) ingest(ctx context.Context, candidate dto.NewsCandidate) (bool, bool) {
	article := &entity.Article{
		NewsURL:        candidate.NewsURL,
		Title:          candidate.Title,
		Source:         candidate.Source,
		PublishedAt:    candidate.PublishedAt,
		Topics:         pq.StringArray(candidate.Topics),
		APISentiment:   candidate.SentimentHint,
		RawAPIResponse: datatypes.JSON(candidate.RawPayload),
	}

	created, err := s.articleRepo.Create(ctx, article)
	if err != nil {
		s.log.Error("Failed to persist article", logger.ErrorField(err), logger.StringField("url", candidate.NewsURL))
		return false, false
	}
	if !created {
		// Lost the race to a concurrent poller. Already known, not an error.
		return false, true
	}

	payload, err := json.Marshal(map[string]interface{}{
		"article_id":   article.ID,
		"news_url":     article.NewsURL,
		"source":       article.Source,
		"published_at": article.PublishedAt,
	})
	if err != nil {
		s.log.Error("Failed to marshal queue payload", logger.ErrorField(err), logger.Field("article_id", article.ID))
		return true, true
	}

	if err := s.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: common.RedisStreamArticleAnalyze,
		Values: map[string]interface{}{"payload": payload},
		MaxLen: s.cfg.Redis.StreamMaxLen, // Limit the stream size
		Approx: true,
	}).Err(); err != nil {
		// The article row stays; the retry sweep cannot see it, but the next
		// digest still can. Enqueue failure is logged, not fatal.
		s.log.Error("Failed to enqueue article", logger.ErrorField(err), logger.Field("article_id", article.ID))
	}

	return true, true
}

// shouldRunNow throttles weekend polling to the top of the hour. Weekday
// invocations always run.
func shouldRunNow(nowET time.Time) bool {
	if wd := nowET.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return nowET.Minute() == 0
	}
	return true
}

// filterCandidates drops paywalled items and in-batch URL duplicates. Returns
// the surviving candidates and the paywalled count.
func filterCandidates(candidates []dto.NewsCandidate, paywallTags []string) ([]dto.NewsCandidate, int) {
	paywalled := make(map[string]struct{}, len(paywallTags))
	for _, tag := range paywallTags {
		paywalled[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}

	var skippedPaywall int
	seen := make(map[string]struct{})
	out := make([]dto.NewsCandidate, 0, len(candidates))

	for _, c := range candidates {
		if c.NewsURL == "" {
			continue
		}
		if hasPaywallTag(c.Topics, paywalled) {
			skippedPaywall++
			continue
		}
		if _, dup := seen[c.NewsURL]; dup {
			continue
		}
		seen[c.NewsURL] = struct{}{}
		out = append(out, c)
	}

	return out, skippedPaywall
}

func hasPaywallTag(topics []string, paywalled map[string]struct{}) bool {
	for _, t := range topics {
		if _, ok := paywalled[strings.ToLower(strings.TrimSpace(t))]; ok {
			return true
		}
	}
	return false
}
