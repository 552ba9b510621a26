package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang-market-news/internal/entity"
	"golang-market-news/internal/worker/config"
	"golang-market-news/internal/worker/dto"
	"golang-market-news/internal/worker/repository"
	"golang-market-news/pkg/common"
	"golang-market-news/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeArticleRepo struct {
	mu            sync.Mutex
	articles      map[uint]*entity.Article
	scrapeUpdates []scrapeUpdate
	alertMarks    []uint
}

type scrapeUpdate struct {
	id      uint
	content string
	failed  bool
}

func (f *fakeArticleRepo) FindByID(ctx context.Context, id uint) (*entity.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	article, ok := f.articles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *article
	return &copied, nil
}

func (f *fakeArticleRepo) UpdateScrapeResult(ctx context.Context, id uint, content string, failed bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrapeUpdates = append(f.scrapeUpdates, scrapeUpdate{id: id, content: content, failed: failed})
	if article, ok := f.articles[id]; ok {
		article.ScrapedContent = content
		article.ScrapeFailed = failed
		article.ScrapedAt = &at
	}
	return nil
}

func (f *fakeArticleRepo) MarkAlertSent(ctx context.Context, id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alertMarks = append(f.alertMarks, id)
	if article, ok := f.articles[id]; ok {
		article.AlertSentAt = &at
	}
	return nil
}

type fakeAnalysisRepo struct {
	mu        sync.Mutex
	upserts   []entity.ArticleAnalysis
	upsertErr error
}

func (f *fakeAnalysisRepo) Upsert(ctx context.Context, analysis *entity.ArticleAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, *analysis)
	return nil
}

func (f *fakeAnalysisRepo) FindByArticleID(ctx context.Context, articleID uint) ([]entity.ArticleAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.ArticleAnalysis
	for _, a := range f.upserts {
		if a.ArticleID == articleID {
			out = append(out, a)
		}
	}
	return out, nil
}

type failureRecord struct {
	articleID *uint
	message   string
	attempts  int
}

type fakeFailureRepo struct {
	mu       sync.Mutex
	failures []failureRecord
}

func (f *fakeFailureRepo) RecordFailure(ctx context.Context, articleID *uint, errorMessage string, attemptCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failureRecord{articleID: articleID, message: errorMessage, attempts: attemptCount})
	return nil
}

type fakeScraper struct {
	content string
	err     error
	calls   int
}

func (f *fakeScraper) Scrape(ctx context.Context, url string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.content, nil
}

type fakeAnalyzer struct {
	provider string
	judgment *dto.NewsJudgment
	err      error
	mu       sync.Mutex
	calls    int
}

func (f *fakeAnalyzer) Provider() string  { return f.provider }
func (f *fakeAnalyzer) ModelName() string { return f.provider + "-test-model" }

func (f *fakeAnalyzer) Analyze(ctx context.Context, input dto.AnalyzeInput) (*dto.NewsJudgment, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.judgment, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	alerts  []string
	digests []string
	err     error
}

func (f *fakeNotifier) SendAlert(text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.alerts = append(f.alerts, text)
	return "1", nil
}

func (f *fakeNotifier) SendDigest(text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.digests = append(f.digests, text)
	return "1", nil
}

func testConfig() *config.Config {
	return &config.Config{
		Worker: config.Worker{
			ProcessTimeout:  30 * time.Second,
			ProviderTimeout: 10 * time.Second,
			RetryMinIdle:    time.Minute,
			RetryMaxBackoff: 30 * time.Minute,
			MaxRetry:        5,
		},
		Alert: config.Alert{
			ImpactThreshold: 0.7,
			RelevanceTopics: []string{"fed", "futures", "rates"},
		},
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, articles *fakeArticleRepo, analyses *fakeAnalysisRepo, failures *fakeFailureRepo, scraper *fakeScraper, analyzers []repository.AnalyzerRepository, notifier *fakeNotifier) *orchestratorService {
	t.Helper()
	log, err := logger.New("error", "console")
	require.NoError(t, err)
	return &orchestratorService{
		cfg:          cfg,
		log:          log,
		articleRepo:  articles,
		analysisRepo: analyses,
		failureRepo:  failures,
		scraperRepo:  scraper,
		analyzers:    analyzers,
		notifier:     notifier,
	}
}

func bullishJudgment(impact float64) *dto.NewsJudgment {
	return &dto.NewsJudgment{
		Summary:        "Fed surprise cut",
		Sentiment:      entity.SentimentBullish,
		SentimentScore: 0.8,
		ImpactScore:    impact,
		KeyTopics:      []string{"Fed", "rates"},
	}
}

func TestProcessArticle_ScrapeFailureCompletesUnit(t *testing.T) {
	articles := &fakeArticleRepo{articles: map[uint]*entity.Article{
		1: {ID: 1, NewsURL: "https://example.com/a", Title: "A"},
	}}
	analyses := &fakeAnalysisRepo{}
	scraper := &fakeScraper{err: errors.New("page blocked")}
	analyzer := &fakeAnalyzer{provider: repository.ProviderGemini, judgment: bullishJudgment(0.9)}
	notifier := &fakeNotifier{}

	svc := newTestOrchestrator(t, testConfig(), articles, analyses, &fakeFailureRepo{}, scraper, []repository.AnalyzerRepository{analyzer}, notifier)

	err := svc.ProcessArticle(context.Background(), dto.ArticleQueueMessage{ArticleID: 1})
	require.NoError(t, err, "permanent content failure must complete the unit, not retry it")

	require.Len(t, articles.scrapeUpdates, 1)
	assert.True(t, articles.scrapeUpdates[0].failed)
	assert.Equal(t, 0, analyzer.calls, "no provider should run for an unscrapable article")
	assert.Empty(t, notifier.alerts)
}

func TestProcessArticle_ProviderFailureIsIsolated(t *testing.T) {
	articles := &fakeArticleRepo{articles: map[uint]*entity.Article{
		1: {ID: 1, NewsURL: "https://example.com/a", Title: "A"},
	}}
	analyses := &fakeAnalysisRepo{}
	scraper := &fakeScraper{content: "Fed cuts rates by 50bps."}
	good := &fakeAnalyzer{provider: repository.ProviderGemini, judgment: bullishJudgment(0.9)}
	alsoGood := &fakeAnalyzer{provider: repository.ProviderOpenAI, judgment: bullishJudgment(0.8)}
	bad := &fakeAnalyzer{provider: repository.ProviderAnthropic, err: errors.New("provider timeout")}
	notifier := &fakeNotifier{}

	svc := newTestOrchestrator(t, testConfig(), articles, analyses, &fakeFailureRepo{}, scraper,
		[]repository.AnalyzerRepository{good, alsoGood, bad}, notifier)

	err := svc.ProcessArticle(context.Background(), dto.ArticleQueueMessage{ArticleID: 1})
	require.NoError(t, err)

	assert.Len(t, analyses.upserts, 2, "failing provider must not block the others")
	providers := []string{analyses.upserts[0].ModelProvider, analyses.upserts[1].ModelProvider}
	assert.ElementsMatch(t, []string{repository.ProviderGemini, repository.ProviderOpenAI}, providers)
}

func TestProcessArticle_RedeliveryOnlyRunsMissingProviders(t *testing.T) {
	existing := entity.ArticleAnalysis{
		ArticleID:      1,
		ModelProvider:  repository.ProviderGemini,
		ModelName:      "gemini-test",
		Sentiment:      entity.SentimentBullish,
		SentimentScore: 0.8,
		ImpactScore:    0.9,
	}
	now := time.Now()
	articles := &fakeArticleRepo{articles: map[uint]*entity.Article{
		1: {
			ID: 1, NewsURL: "https://example.com/a", Title: "A",
			ScrapedContent: "content", ScrapedAt: &now,
			Analyses: []entity.ArticleAnalysis{existing},
		},
	}}
	analyses := &fakeAnalysisRepo{upserts: []entity.ArticleAnalysis{existing}}
	scraper := &fakeScraper{content: "should not be called"}
	gemini := &fakeAnalyzer{provider: repository.ProviderGemini, judgment: bullishJudgment(0.9)}
	openai := &fakeAnalyzer{provider: repository.ProviderOpenAI, judgment: bullishJudgment(0.8)}

	svc := newTestOrchestrator(t, testConfig(), articles, analyses, &fakeFailureRepo{}, scraper,
		[]repository.AnalyzerRepository{gemini, openai}, &fakeNotifier{})

	err := svc.ProcessArticle(context.Background(), dto.ArticleQueueMessage{ArticleID: 1})
	require.NoError(t, err)

	assert.Equal(t, 0, scraper.calls, "already-scraped article must not be scraped again")
	assert.Equal(t, 0, gemini.calls, "provider with an existing judgment must not rerun")
	assert.Equal(t, 1, openai.calls)
	assert.Len(t, analyses.upserts, 2)
}

func TestProcessArticle_AlertOnConsensus(t *testing.T) {
	articles := &fakeArticleRepo{articles: map[uint]*entity.Article{
		1: {ID: 1, NewsURL: "https://example.com/a", Title: "Fed cuts"},
	}}
	analyses := &fakeAnalysisRepo{}
	scraper := &fakeScraper{content: "Fed cuts rates."}
	gemini := &fakeAnalyzer{provider: repository.ProviderGemini, judgment: bullishJudgment(0.9)}
	openai := &fakeAnalyzer{provider: repository.ProviderOpenAI, judgment: bullishJudgment(0.8)}
	notifier := &fakeNotifier{}

	svc := newTestOrchestrator(t, testConfig(), articles, analyses, &fakeFailureRepo{}, scraper,
		[]repository.AnalyzerRepository{gemini, openai}, notifier)

	err := svc.ProcessArticle(context.Background(), dto.ArticleQueueMessage{ArticleID: 1})
	require.NoError(t, err)

	require.Len(t, notifier.alerts, 1)
	assert.Contains(t, notifier.alerts[0], "Fed cuts")
	assert.Equal(t, []uint{1}, articles.alertMarks)
}

func TestProcessArticle_NoAlertBelowThreshold(t *testing.T) {
	articles := &fakeArticleRepo{articles: map[uint]*entity.Article{
		1: {ID: 1, NewsURL: "https://example.com/a", Title: "Minor news"},
	}}
	analyses := &fakeAnalysisRepo{}
	scraper := &fakeScraper{content: "Small supplier news."}
	gemini := &fakeAnalyzer{provider: repository.ProviderGemini, judgment: bullishJudgment(0.3)}
	openai := &fakeAnalyzer{provider: repository.ProviderOpenAI, judgment: bullishJudgment(0.2)}
	notifier := &fakeNotifier{}

	svc := newTestOrchestrator(t, testConfig(), articles, analyses, &fakeFailureRepo{}, scraper,
		[]repository.AnalyzerRepository{gemini, openai}, notifier)

	err := svc.ProcessArticle(context.Background(), dto.ArticleQueueMessage{ArticleID: 1})
	require.NoError(t, err)

	assert.Empty(t, notifier.alerts)
	assert.Empty(t, articles.alertMarks)
}

func TestProcessArticle_AlertSuppressedOnceSent(t *testing.T) {
	sentAt := time.Now().Add(-time.Hour)
	now := time.Now()
	articles := &fakeArticleRepo{articles: map[uint]*entity.Article{
		1: {
			ID: 1, NewsURL: "https://example.com/a", Title: "Fed cuts",
			ScrapedContent: "content", ScrapedAt: &now, AlertSentAt: &sentAt,
		},
	}}
	analyses := &fakeAnalysisRepo{}
	scraper := &fakeScraper{content: "content"}
	gemini := &fakeAnalyzer{provider: repository.ProviderGemini, judgment: bullishJudgment(0.9)}
	openai := &fakeAnalyzer{provider: repository.ProviderOpenAI, judgment: bullishJudgment(0.9)}
	notifier := &fakeNotifier{}

	svc := newTestOrchestrator(t, testConfig(), articles, analyses, &fakeFailureRepo{}, scraper,
		[]repository.AnalyzerRepository{gemini, openai}, notifier)

	err := svc.ProcessArticle(context.Background(), dto.ArticleQueueMessage{ArticleID: 1})
	require.NoError(t, err)

	assert.Empty(t, notifier.alerts, "an article alerts at most once")
}

func TestProcessArticle_NotifierFailureDoesNotRetryUnit(t *testing.T) {
	articles := &fakeArticleRepo{articles: map[uint]*entity.Article{
		1: {ID: 1, NewsURL: "https://example.com/a", Title: "Fed cuts"},
	}}
	analyses := &fakeAnalysisRepo{}
	scraper := &fakeScraper{content: "content"}
	gemini := &fakeAnalyzer{provider: repository.ProviderGemini, judgment: bullishJudgment(0.9)}
	openai := &fakeAnalyzer{provider: repository.ProviderOpenAI, judgment: bullishJudgment(0.9)}
	notifier := &fakeNotifier{err: errors.New("telegram unavailable")}

	svc := newTestOrchestrator(t, testConfig(), articles, analyses, &fakeFailureRepo{}, scraper,
		[]repository.AnalyzerRepository{gemini, openai}, notifier)

	err := svc.ProcessArticle(context.Background(), dto.ArticleQueueMessage{ArticleID: 1})
	require.NoError(t, err, "dispatch failure must not re-enqueue analysis work")
	assert.Empty(t, articles.alertMarks, "failed dispatch must not be marked sent")
}

func TestProcessArticle_StorageFailureRetriesUnit(t *testing.T) {
	articles := &fakeArticleRepo{articles: map[uint]*entity.Article{
		1: {ID: 1, NewsURL: "https://example.com/a", Title: "A"},
	}}
	analyses := &fakeAnalysisRepo{upsertErr: errors.New("connection reset")}
	scraper := &fakeScraper{content: "content"}
	gemini := &fakeAnalyzer{provider: repository.ProviderGemini, judgment: bullishJudgment(0.9)}

	svc := newTestOrchestrator(t, testConfig(), articles, analyses, &fakeFailureRepo{}, scraper,
		[]repository.AnalyzerRepository{gemini}, &fakeNotifier{})

	err := svc.ProcessArticle(context.Background(), dto.ArticleQueueMessage{ArticleID: 1})
	require.Error(t, err, "a storage error leaves the unit on the queue")
}

func TestProcessArticle_MissingArticleIsAcknowledged(t *testing.T) {
	articles := &fakeArticleRepo{articles: map[uint]*entity.Article{}}

	svc := newTestOrchestrator(t, testConfig(), articles, &fakeAnalysisRepo{}, &fakeFailureRepo{}, &fakeScraper{},
		nil, &fakeNotifier{})

	err := svc.ProcessArticle(context.Background(), dto.ArticleQueueMessage{ArticleID: 42})
	require.NoError(t, err, "a vanished article must not poison the queue")
}

type fakeStreamClient struct {
	mu       sync.Mutex
	read     []redis.XStream
	pending  []redis.XPendingExt
	messages map[string]redis.XMessage

	claimed []string
	added   []*redis.XAddArgs
	acked   []string
	deleted []string
}

func (f *fakeStreamClient) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	if len(f.read) == 0 {
		return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
	}
	return redis.NewXStreamSliceCmdResult(f.read, nil)
}

func (f *fakeStreamClient) XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd {
	cmd := redis.NewXPendingExtCmd(ctx)
	cmd.SetVal(f.pending)
	return cmd
}

func (f *fakeStreamClient) XClaim(ctx context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var msgs []redis.XMessage
	for _, id := range a.Messages {
		f.claimed = append(f.claimed, id)
		if msg, ok := f.messages[id]; ok {
			msgs = append(msgs, msg)
		}
	}
	return redis.NewXMessageSliceCmdResult(msgs, nil)
}

func (f *fakeStreamClient) XRangeN(ctx context.Context, stream, start, stop string, count int64) *redis.XMessageSliceCmd {
	if msg, ok := f.messages[start]; ok {
		return redis.NewXMessageSliceCmdResult([]redis.XMessage{msg}, nil)
	}
	return redis.NewXMessageSliceCmdResult(nil, nil)
}

func (f *fakeStreamClient) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, a)
	return redis.NewStringResult("0-1", nil)
}

func (f *fakeStreamClient) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeStreamClient) XDel(ctx context.Context, stream string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func TestProcessTask_QuarantinesMalformedPayload(t *testing.T) {
	stream := &fakeStreamClient{read: []redis.XStream{{
		Stream:   common.RedisStreamArticleAnalyze,
		Messages: []redis.XMessage{{ID: "1-1", Values: map[string]interface{}{"payload": "{not-json"}}},
	}}}
	failures := &fakeFailureRepo{}

	svc := newTestOrchestrator(t, testConfig(), &fakeArticleRepo{}, &fakeAnalysisRepo{}, failures, &fakeScraper{}, nil, &fakeNotifier{})
	svc.redisClient = stream

	svc.ProcessTask(context.Background())

	require.Len(t, failures.failures, 1, "a malformed payload records exactly one failure")
	assert.Nil(t, failures.failures[0].articleID)
	assert.Equal(t, 1, failures.failures[0].attempts)
	assert.Equal(t, []string{"1-1"}, stream.acked, "a malformed message must leave the live queue")
	assert.Equal(t, []string{"1-1"}, stream.deleted)
	assert.Empty(t, stream.added, "a malformed message is quarantined, not dead-lettered")
}

func TestProcessRetries_DeadLettersExhaustedMessage(t *testing.T) {
	values := map[string]interface{}{"payload": `{"article_id":42,"news_url":"https://example.com/a"}`}
	stream := &fakeStreamClient{
		pending:  []redis.XPendingExt{{ID: "5-1", RetryCount: 5, Idle: time.Hour}},
		messages: map[string]redis.XMessage{"5-1": {ID: "5-1", Values: values}},
	}
	failures := &fakeFailureRepo{}

	svc := newTestOrchestrator(t, testConfig(), &fakeArticleRepo{}, &fakeAnalysisRepo{}, failures, &fakeScraper{}, nil, &fakeNotifier{})
	svc.redisClient = stream

	svc.ProcessRetries(context.Background())

	require.Len(t, failures.failures, 1, "an exhausted message records exactly one failure")
	require.NotNil(t, failures.failures[0].articleID)
	assert.Equal(t, uint(42), *failures.failures[0].articleID)
	assert.Equal(t, 5, failures.failures[0].attempts)
	assert.Contains(t, failures.failures[0].message, "after 5 attempts")

	require.Len(t, stream.added, 1)
	assert.Equal(t, common.RedisStreamArticleAnalyzeDLQ, stream.added[0].Stream)
	assert.Equal(t, values, stream.added[0].Values, "the original payload follows the message to the poison stream")

	assert.Equal(t, []string{"5-1"}, stream.acked, "a dead-lettered message must leave the live queue")
	assert.Equal(t, []string{"5-1"}, stream.deleted)
	assert.Empty(t, stream.claimed, "an exhausted message is never redelivered")
}

func TestProcessRetries_RespectsIdleBackoff(t *testing.T) {
	ready := map[string]interface{}{"payload": `{"article_id":7,"news_url":"https://example.com/b"}`}
	stream := &fakeStreamClient{
		pending: []redis.XPendingExt{
			{ID: "2-1", RetryCount: 2, Idle: time.Minute},
			{ID: "3-1", RetryCount: 2, Idle: 3 * time.Minute},
		},
		messages: map[string]redis.XMessage{"3-1": {ID: "3-1", Values: ready}},
	}
	failures := &fakeFailureRepo{}

	svc := newTestOrchestrator(t, testConfig(), &fakeArticleRepo{}, &fakeAnalysisRepo{}, failures, &fakeScraper{}, nil, &fakeNotifier{})
	svc.redisClient = stream

	svc.ProcessRetries(context.Background())

	assert.Equal(t, []string{"3-1"}, stream.claimed, "only a message past its backoff is claimed")
	assert.Equal(t, []string{"3-1"}, stream.acked, "a vanished article acknowledges the retried message")
	assert.Empty(t, failures.failures)
}

func TestBackoffFor_DoublesAndCaps(t *testing.T) {
	svc := &orchestratorService{cfg: testConfig()}

	assert.Equal(t, time.Minute, svc.backoffFor(0))
	assert.Equal(t, time.Minute, svc.backoffFor(1))
	assert.Equal(t, 2*time.Minute, svc.backoffFor(2))
	assert.Equal(t, 4*time.Minute, svc.backoffFor(3))
	assert.Equal(t, 30*time.Minute, svc.backoffFor(20), "backoff is capped")
}

func TestSelectSummary_PrefersAnthropic(t *testing.T) {
	analyses := []entity.ArticleAnalysis{
		{ModelProvider: repository.ProviderGemini, Summary: "gemini summary"},
		{ModelProvider: repository.ProviderAnthropic, Summary: "anthropic summary"},
	}
	assert.Equal(t, "anthropic summary", selectSummary(analyses))

	assert.Equal(t, "gemini summary", selectSummary(analyses[:1]))
	assert.Equal(t, "", selectSummary(nil))
}
