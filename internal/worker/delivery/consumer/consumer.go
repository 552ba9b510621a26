package consumer

import (
	"context"
	"sync"
	"time"

	"golang-market-news/internal/worker/config"
	"golang-market-news/internal/worker/service"
	"golang-market-news/pkg/common"
	"golang-market-news/pkg/logger"
	"golang-market-news/pkg/utils"
)

// RedisConsumer manages the consumption of article messages from the Redis
// stream and the periodic retry sweep.
type RedisConsumer struct {
	cfg                 *config.Config
	orchestratorService service.OrchestratorService
	logger              *logger.Logger
	stopChan            chan struct{}
	wg                  sync.WaitGroup
}

// NewRedisConsumer creates a new RedisConsumer.
func NewRedisConsumer(
	cfg *config.Config,
	orchestratorService service.OrchestratorService,
	log *logger.Logger,
) *RedisConsumer {
	return &RedisConsumer{
		cfg:                 cfg,
		orchestratorService: orchestratorService,
		logger:              log,
		stopChan:            make(chan struct{}),
	}
}

// Start begins the consumer's processing loops.
func (c *RedisConsumer) Start(ctx context.Context) {
	c.logger.Info("Redis consumer started")
	c.RegisterStreamHandler(ctx, c.orchestratorService.ProcessTask, common.RedisStreamArticleAnalyze, c.cfg.Worker.ProcessTimeout)

	//handle retry
	c.RegisterTickerHandler(ctx, c.orchestratorService.ProcessRetries, c.cfg.Worker.RetryInterval, c.cfg.Worker.ProcessTimeout, common.RedisStreamArticleAnalyze+"-retry")
}

func (c *RedisConsumer) RegisterStreamHandler(ctx context.Context, fn func(ctx context.Context), streamName string, timeout time.Duration) {
	c.logger.Info("Registering stream handler", logger.Field("stream", streamName))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Redis consumer stopping due to context cancellation")
				return
			case <-c.stopChan:
				c.logger.Info("Redis consumer stopping")
				return
			default:
				fn(ctx)
			}
		}
	})
}

func (c *RedisConsumer) RegisterTickerHandler(ctx context.Context, fn func(ctx context.Context), interval time.Duration, timeout time.Duration, name string) {
	c.logger.Info("Registering ticker handler",
		logger.Field("name", name),
		logger.Field("interval", interval),
		logger.Field("timeout", timeout))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
				fn(ctxTimeout)
				cancel()
			case <-ctx.Done():
				c.logger.Info("Ticker handler stopping due to context cancellation", logger.Field("name", name))
				return
			case <-c.stopChan:
				c.logger.Info("Ticker handler stopping", logger.Field("name", name))
				return
			}
		}
	})
}

// Stop gracefully shuts down the consumer.
func (c *RedisConsumer) Stop() {
	close(c.stopChan)
	c.wg.Wait()
	c.logger.Info("Redis consumer stopped")
}
