package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang-market-news/internal/worker/config"
	"golang-market-news/internal/worker/delivery/consumer"
	"golang-market-news/internal/worker/repository"
	"golang-market-news/internal/worker/service"
	"golang-market-news/pkg/common"
	"golang-market-news/pkg/logger"
	"golang-market-news/pkg/postgres"
	"golang-market-news/pkg/redis"
	"golang-market-news/pkg/telegram"

	"google.golang.org/genai"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the worker service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Worker Service", zap.String("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", zap.Error(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Create the consumer group if it doesn't exist
	// MKSTREAM creates the stream if it doesn't exist
	if err := redisClient.XGroupCreateMkStream(context.Background(), common.RedisStreamArticleAnalyze, common.RedisStreamGroup, "0").Err(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
		}
	}
	if err := redisClient.XGroupCreateMkStream(context.Background(), common.RedisStreamArticleAnalyzeDLQ, common.RedisStreamGroup, "0").Err(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
		}
	}

	// Initialize repositories
	articleRepo := repository.NewArticleRepository(db.DB)
	analysisRepo := repository.NewAnalysisRepository(db.DB)
	failureRepo := repository.NewFailureRepository(db.DB)
	scraperRepo := repository.NewScraperRepository(cfg, appLogger)

	// Initialize analysis providers. Each provider is optional: only those
	// with credentials are configured.
	var analyzers []repository.AnalyzerRepository
	if cfg.Gemini.APIKey != "" {
		genAiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: cfg.Gemini.APIKey,
		})
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini AI client", zap.Error(err))
		}
		geminiRepo, err := repository.NewGeminiAIRepository(cfg, appLogger, genAiClient)
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini AI repository", zap.Error(err))
		}
		analyzers = append(analyzers, geminiRepo)
	}
	if cfg.OpenAI.APIKey != "" {
		analyzers = append(analyzers, repository.NewOpenAIRepository(cfg, appLogger))
	}
	if cfg.Anthropic.APIKey != "" {
		analyzers = append(analyzers, repository.NewAnthropicAIRepository(cfg, appLogger))
	}
	if len(analyzers) == 0 {
		appLogger.Warn("No analysis providers configured, articles will be scraped but not analyzed")
	}

	telegramNotifier, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.AlertsChatID, cfg.Telegram.DigestsChatID)
	if err != nil {
		appLogger.Fatal("Failed to initialize Telegram notifier", zap.Error(err))
	}

	// Initialize services
	orchestratorSvc := service.NewOrchestratorService(
		cfg,
		appLogger,
		redisClient.Client,
		articleRepo,
		analysisRepo,
		failureRepo,
		scraperRepo,
		analyzers,
		telegramNotifier,
	)

	// Start consumer
	redisConsumer := consumer.NewRedisConsumer(cfg, orchestratorSvc, appLogger)
	redisConsumer.Start(ctx)

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down worker service...")
	redisConsumer.Stop()
	appLogger.Info("Worker service exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "worker-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-worker.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing worker-service CLI: %s\n", err)
		os.Exit(1)
	}
}
