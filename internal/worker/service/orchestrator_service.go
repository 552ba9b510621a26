package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang-market-news/internal/consensus"
	"golang-market-news/internal/entity"
	"golang-market-news/internal/worker/config"
	"golang-market-news/internal/worker/dto"
	"golang-market-news/internal/worker/repository"
	"golang-market-news/pkg/common"
	"golang-market-news/pkg/logger"
	"golang-market-news/pkg/telegram"
	"golang-market-news/pkg/utils"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrchestratorService consumes article messages, orchestrates scraping and
// multi-provider analysis, and triggers alerting.
type OrchestratorService interface {
	ProcessTask(ctx context.Context)
	ProcessRetries(ctx context.Context)
	ProcessArticle(ctx context.Context, msg dto.ArticleQueueMessage) error
}

// StreamClient is the subset of redis stream commands the orchestrator uses.
// *redis.Client satisfies it.
type StreamClient interface {
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd
	XClaim(ctx context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd
	XRangeN(ctx context.Context, stream, start, stop string, count int64) *redis.XMessageSliceCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XDel(ctx context.Context, stream string, ids ...string) *redis.IntCmd
}

// NewOrchestratorService creates a new OrchestratorService.
func NewOrchestratorService(
	cfg *config.Config,
	log *logger.Logger,
	redisClient StreamClient,
	articleRepo repository.ArticleRepository,
	analysisRepo repository.AnalysisRepository,
	failureRepo repository.FailureRepository,
	scraperRepo repository.ScraperRepository,
	analyzers []repository.AnalyzerRepository,
	notifier telegram.Notifier,
) OrchestratorService {
	return &orchestratorService{
		cfg:          cfg,
		log:          log,
		redisClient:  redisClient,
		articleRepo:  articleRepo,
		analysisRepo: analysisRepo,
		failureRepo:  failureRepo,
		scraperRepo:  scraperRepo,
		analyzers:    analyzers,
		notifier:     notifier,
	}
}

type orchestratorService struct {
	cfg          *config.Config
	log          *logger.Logger
	redisClient  StreamClient
	articleRepo  repository.ArticleRepository
	analysisRepo repository.AnalysisRepository
	failureRepo  repository.FailureRepository
	scraperRepo  repository.ScraperRepository
	analyzers    []repository.AnalyzerRepository
	notifier     telegram.Notifier
}

// providerOutcome is one provider's result slot in the fan-out join. Exactly
// one of judgment/err is set.
type providerOutcome struct {
	analyzer repository.AnalyzerRepository
	judgment *dto.NewsJudgment
	err      error
}

// ProcessTask dequeues and processes a single article message.
func (s *orchestratorService) ProcessTask(ctx context.Context) {
	streams, err := s.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{common.RedisStreamArticleAnalyze, ">"}, // ">" means only new messages
		Count:    1,
		Block:    2 * time.Second, // Block for 2 seconds to allow graceful shutdown
	}).Result()
	if err != nil {
		// Ignore context cancellation and timeout errors, as they are expected during shutdown or idle periods.
		if err == context.Canceled || err == redis.Nil {
			return
		}
		s.log.Error("Failed to read from stream", logger.ErrorField(err))
		return
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return
	}

	message := streams[0].Messages[0]

	msg, ok := s.decodeMessage(ctx, message)
	if !ok {
		return
	}

	processCtx, cancel := context.WithTimeout(ctx, s.cfg.Worker.ProcessTimeout)
	defer cancel()

	if err := s.ProcessArticle(processCtx, msg); err != nil {
		// Leave the message unacknowledged so the transport retries the whole unit.
		s.log.Error("Failed to process article", logger.ErrorField(err),
			logger.Field("message_id", message.ID), logger.Field("article_id", msg.ArticleID))
		return
	}

	if err := s.AckNDel(ctx, message.ID); err != nil {
		s.log.Error("Failed to acknowledge article message", logger.ErrorField(err), logger.Field("message_id", message.ID))
		return
	}

	s.log.Info("Processed article", logger.Field("article_id", msg.ArticleID))
}

// decodeMessage parses a stream message. Malformed payloads are dead-lettered
// immediately: a ProcessingFailure without an article reference is written
// and the message is acknowledged to prevent reprocessing.
func (s *orchestratorService) decodeMessage(ctx context.Context, message redis.XMessage) (dto.ArticleQueueMessage, bool) {
	var msg dto.ArticleQueueMessage

	payload, ok := message.Values["payload"].(string)
	if !ok {
		s.log.Error("field 'payload' not found or not a string in stream message", logger.Field("message_id", message.ID))
		s.quarantineMalformed(ctx, message.ID, "missing payload field")
		return msg, false
	}

	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		s.log.Error("Failed to unmarshal article message", logger.ErrorField(err), logger.Field("message_id", message.ID))
		s.quarantineMalformed(ctx, message.ID, fmt.Sprintf("malformed payload: %v", err))
		return msg, false
	}

	return msg, true
}

func (s *orchestratorService) quarantineMalformed(ctx context.Context, messageID, reason string) {
	if err := s.failureRepo.RecordFailure(ctx, nil, reason, 1); err != nil {
		s.log.Error("Failed to record processing failure", logger.ErrorField(err), logger.Field("message_id", messageID))
	}
	if err := s.AckNDel(ctx, messageID); err != nil {
		s.log.Error("Failed to acknowledge malformed message", logger.ErrorField(err), logger.Field("message_id", messageID))
	}
}

// ProcessArticle runs the full pipeline for one message: resolve, scrape,
// fan out to providers, persist judgments, evaluate consensus, alert.
// A returned error means the unit must stay on the queue for retry; permanent
// content failures return nil so the message is acknowledged.
func (s *orchestratorService) ProcessArticle(ctx context.Context, msg dto.ArticleQueueMessage) error {
	article, err := s.articleRepo.FindByID(ctx, msg.ArticleID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			s.log.Warn("Article not found, skipping", logger.Field("article_id", msg.ArticleID))
			return nil
		}
		return fmt.Errorf("failed to load article %d: %w", msg.ArticleID, err)
	}

	if article.ScrapedAt == nil {
		if err := s.scrapeArticle(ctx, article); err != nil {
			return err
		}
	}

	// A structurally unscrapable page is a permanent content failure: the
	// outcome is recorded on the article and the unit completes successfully.
	if article.ScrapeFailed || article.ScrapedContent == "" {
		s.log.Info("Article has no scrapable content, skipping analysis", logger.Field("article_id", article.ID))
		return nil
	}

	pending := s.pendingAnalyzers(article)
	if len(s.analyzers) == 0 {
		s.log.Warn("No analysis providers configured, skipping analysis", logger.Field("article_id", article.ID))
		return nil
	}

	if len(pending) > 0 {
		outcomes := s.fanOut(ctx, pending, dto.AnalyzeInput{
			Title:       article.Title,
			Source:      article.Source,
			PublishedAt: article.PublishedAt,
			Content:     article.ScrapedContent,
		})
		if err := s.persistOutcomes(ctx, article.ID, outcomes); err != nil {
			return err
		}
	} else {
		s.log.Debug("All providers already analyzed article, short-circuiting", logger.Field("article_id", article.ID))
	}

	return s.evaluateAndAlert(ctx, article)
}

// scrapeArticle invokes the scraping collaborator and durably records the
// outcome before analysis proceeds.
func (s *orchestratorService) scrapeArticle(ctx context.Context, article *entity.Article) error {
	now := time.Now()

	content, err := s.scraperRepo.Scrape(ctx, article.NewsURL)
	if err != nil {
		s.log.Warn("Scrape failed", logger.ErrorField(err),
			logger.Field("article_id", article.ID), logger.StringField("url", article.NewsURL))
		if perr := s.articleRepo.UpdateScrapeResult(ctx, article.ID, "", true, now); perr != nil {
			return fmt.Errorf("failed to persist scrape failure for article %d: %w", article.ID, perr)
		}
		article.ScrapeFailed = true
		article.ScrapedAt = &now
		return nil
	}

	if perr := s.articleRepo.UpdateScrapeResult(ctx, article.ID, content, false, now); perr != nil {
		return fmt.Errorf("failed to persist scraped content for article %d: %w", article.ID, perr)
	}
	article.ScrapedContent = content
	article.ScrapeFailed = false
	article.ScrapedAt = &now
	return nil
}

// pendingAnalyzers returns the configured providers that do not yet have a
// judgment for the article, so a redelivered message never redoes finished
// work.
func (s *orchestratorService) pendingAnalyzers(article *entity.Article) []repository.AnalyzerRepository {
	done := make(map[string]struct{}, len(article.Analyses))
	for _, a := range article.Analyses {
		done[a.ModelProvider] = struct{}{}
	}

	var pending []repository.AnalyzerRepository
	for _, analyzer := range s.analyzers {
		if _, ok := done[analyzer.Provider()]; !ok {
			pending = append(pending, analyzer)
		}
	}
	return pending
}

// fanOut invokes every provider concurrently and joins on all of them. Each
// provider writes its own outcome slot; a timeout or failure in one provider
// never cancels its siblings.
func (s *orchestratorService) fanOut(ctx context.Context, analyzers []repository.AnalyzerRepository, input dto.AnalyzeInput) []providerOutcome {
	outcomes := make([]providerOutcome, len(analyzers))
	var wg sync.WaitGroup

	for i, analyzer := range analyzers {
		wg.Add(1)
		idx, a := i, analyzer
		utils.GoSafe(func() {
			defer wg.Done()

			providerCtx, cancel := context.WithTimeout(ctx, s.cfg.Worker.ProviderTimeout)
			defer cancel()

			judgment, err := a.Analyze(providerCtx, input)
			outcomes[idx] = providerOutcome{analyzer: a, judgment: judgment, err: err}
		})
	}
	wg.Wait()

	return outcomes
}

// persistOutcomes upserts each successful judgment. Provider failures are
// logged and produce no row; a storage error fails the whole unit.
func (s *orchestratorService) persistOutcomes(ctx context.Context, articleID uint, outcomes []providerOutcome) error {
	for _, outcome := range outcomes {
		if outcome.err != nil {
			s.log.Warn("Provider analysis failed",
				logger.ErrorField(outcome.err),
				logger.Field("article_id", articleID),
				logger.StringField("provider", outcome.analyzer.Provider()))
			continue
		}

		rawResponse, err := json.Marshal(outcome.judgment)
		if err != nil {
			return fmt.Errorf("failed to marshal judgment: %w", err)
		}

		analysis := entity.ArticleAnalysis{
			ArticleID:      articleID,
			ModelProvider:  outcome.analyzer.Provider(),
			ModelName:      outcome.analyzer.ModelName(),
			Summary:        outcome.judgment.Summary,
			Sentiment:      consensus.NormalizeSentiment(outcome.judgment.Sentiment),
			SentimentScore: outcome.judgment.SentimentScore,
			Confidence:     outcome.judgment.Confidence,
			ImpactScore:    outcome.judgment.ImpactScore,
			KeyTopics:      pq.StringArray(outcome.judgment.KeyTopics),
			RawResponse:    datatypes.JSON(rawResponse),
			AnalyzedAt:     time.Now(),
		}

		if err := s.analysisRepo.Upsert(ctx, &analysis); err != nil {
			return fmt.Errorf("failed to persist analysis for article %d provider %s: %w",
				articleID, outcome.analyzer.Provider(), err)
		}
	}
	return nil
}

// evaluateAndAlert runs the consensus engine over whatever judgments now
// exist and dispatches at most one alert. Dispatch failure is logged, never
// retried, and never re-enqueues the article.
func (s *orchestratorService) evaluateAndAlert(ctx context.Context, article *entity.Article) error {
	analyses, err := s.analysisRepo.FindByArticleID(ctx, article.ID)
	if err != nil {
		return fmt.Errorf("failed to load analyses for article %d: %w", article.ID, err)
	}

	result := consensus.Evaluate(analyses, s.cfg.Alert.RelevanceTopics)
	if !consensus.ShouldAlert(result, s.cfg.Alert.ImpactThreshold) {
		s.log.Debug("Article does not meet alert criteria",
			logger.Field("article_id", article.ID),
			logger.StringField("sentiment", result.Sentiment),
			logger.Float64Field("impact", result.AvgImpactScore))
		return nil
	}

	if article.AlertSentAt != nil && !s.cfg.Alert.AllowRealert {
		s.log.Info("Alert already sent for article, suppressing", logger.Field("article_id", article.ID))
		return nil
	}

	text := telegram.FormatArticleAlert(telegram.AlertMessage{
		Title:          article.Title,
		Source:         article.Source,
		PublishedAt:    article.PublishedAt,
		NewsURL:        article.NewsURL,
		Sentiment:      result.Sentiment,
		SentimentScore: result.AvgSentimentScore,
		ImpactScore:    result.AvgImpactScore,
		KeyTopics:      result.KeyTopics,
		Summary:        selectSummary(analyses),
		ProviderCount:  len(analyses),
	})

	if _, err := s.notifier.SendAlert(text); err != nil {
		s.log.Error("Failed to send alert notification", logger.ErrorField(err), logger.Field("article_id", article.ID))
		return nil
	}

	if err := s.articleRepo.MarkAlertSent(ctx, article.ID, time.Now()); err != nil {
		s.log.Error("Failed to mark alert sent", logger.ErrorField(err), logger.Field("article_id", article.ID))
	}

	s.log.Info("Sent high-impact alert",
		logger.Field("article_id", article.ID),
		logger.StringField("sentiment", result.Sentiment),
		logger.Float64Field("impact", result.AvgImpactScore))
	return nil
}

// selectSummary picks the first non-empty provider summary, preferring
// Anthropic which consistently produces the fullest write-up.
func selectSummary(analyses []entity.ArticleAnalysis) string {
	for _, a := range analyses {
		if a.ModelProvider == repository.ProviderAnthropic && a.Summary != "" {
			return a.Summary
		}
	}
	for _, a := range analyses {
		if a.Summary != "" {
			return a.Summary
		}
	}
	return ""
}

// AckNDel acknowledges and removes a message from the live stream.
func (s *orchestratorService) AckNDel(ctx context.Context, messageID string) error {
	if err := s.redisClient.XAck(ctx, common.RedisStreamArticleAnalyze, common.RedisStreamGroup, messageID).Err(); err != nil {
		return err
	}
	if err := s.redisClient.XDel(ctx, common.RedisStreamArticleAnalyze, messageID).Err(); err != nil {
		return err
	}
	return nil
}

// ProcessRetries redelivers pending messages whose idle time has reached the
// exponential backoff for their delivery count, and dead-letters messages
// that exhausted the retry budget.
func (s *orchestratorService) ProcessRetries(ctx context.Context) {
	pending, err := s.redisClient.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: common.RedisStreamArticleAnalyze,
		Group:  common.RedisStreamGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
	}).Result()
	if err != nil {
		if err == context.Canceled || err == redis.Nil {
			return
		}
		s.log.Error("Failed to list pending messages", logger.ErrorField(err))
		return
	}

	for _, p := range pending {
		if int(p.RetryCount) >= s.cfg.Worker.MaxRetry {
			s.deadLetter(ctx, p)
			continue
		}

		if p.Idle < s.backoffFor(p.RetryCount) {
			continue
		}

		s.retryMessage(ctx, p)
	}
}

// backoffFor doubles the base idle requirement per prior delivery, capped at
// the configured maximum.
func (s *orchestratorService) backoffFor(retryCount int64) time.Duration {
	backoff := s.cfg.Worker.RetryMinIdle
	for i := int64(1); i < retryCount; i++ {
		backoff *= 2
		if backoff >= s.cfg.Worker.RetryMaxBackoff {
			return s.cfg.Worker.RetryMaxBackoff
		}
	}
	return backoff
}

func (s *orchestratorService) retryMessage(ctx context.Context, p redis.XPendingExt) {
	msgs, err := s.redisClient.XClaim(ctx, &redis.XClaimArgs{
		Stream:   common.RedisStreamArticleAnalyze,
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer + "-retry",
		MinIdle:  s.backoffFor(p.RetryCount),
		Messages: []string{p.ID},
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return
		}
		s.log.Error("Failed to claim pending message", logger.ErrorField(err), logger.Field("message_id", p.ID))
		return
	}
	if len(msgs) == 0 {
		return
	}

	message := msgs[0]
	msg, ok := s.decodeMessage(ctx, message)
	if !ok {
		return
	}

	s.log.Info("Retrying article message",
		logger.Field("message_id", message.ID),
		logger.Field("article_id", msg.ArticleID),
		logger.IntField("retry_count", int(p.RetryCount)))

	processCtx, cancel := context.WithTimeout(ctx, s.cfg.Worker.ProcessTimeout)
	defer cancel()

	if err := s.ProcessArticle(processCtx, msg); err != nil {
		s.log.Error("Retry failed", logger.ErrorField(err),
			logger.Field("message_id", message.ID), logger.Field("article_id", msg.ArticleID))
		return
	}

	if err := s.AckNDel(ctx, message.ID); err != nil {
		s.log.Error("Failed to acknowledge retried message", logger.ErrorField(err), logger.Field("message_id", message.ID))
		return
	}

	s.log.Info("Retry succeeded", logger.Field("article_id", msg.ArticleID))
}

// deadLetter moves an exhausted message to the poison stream and records a
// ProcessingFailure. This is the only condition requiring operator attention.
func (s *orchestratorService) deadLetter(ctx context.Context, p redis.XPendingExt) {
	msgs, err := s.redisClient.XRangeN(ctx, common.RedisStreamArticleAnalyze, p.ID, p.ID, 1).Result()
	if err != nil || len(msgs) == 0 {
		s.log.Error("Failed to fetch exhausted message", logger.ErrorField(err), logger.Field("message_id", p.ID))
		return
	}
	message := msgs[0]

	var articleID *uint
	if payload, ok := message.Values["payload"].(string); ok {
		var msg dto.ArticleQueueMessage
		if err := json.Unmarshal([]byte(payload), &msg); err == nil {
			articleID = &msg.ArticleID
		}
	}

	errorMessage := fmt.Sprintf("processing retries exhausted after %d attempts", p.RetryCount)
	if err := s.failureRepo.RecordFailure(ctx, articleID, errorMessage, int(p.RetryCount)); err != nil {
		s.log.Error("Failed to record processing failure", logger.ErrorField(err), logger.Field("message_id", p.ID))
		return
	}

	if err := s.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: common.RedisStreamArticleAnalyzeDLQ,
		Values: message.Values,
	}).Err(); err != nil {
		s.log.Error("Failed to move message to poison stream", logger.ErrorField(err), logger.Field("message_id", p.ID))
		return
	}

	if err := s.AckNDel(ctx, message.ID); err != nil {
		s.log.Error("Failed to remove exhausted message from live stream", logger.ErrorField(err), logger.Field("message_id", p.ID))
		return
	}

	s.log.Error("Message dead-lettered",
		logger.Field("message_id", p.ID),
		logger.Field("article_id", articleID),
		logger.IntField("attempts", int(p.RetryCount)))
}
