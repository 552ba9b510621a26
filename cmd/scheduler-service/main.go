package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-market-news/internal/entity"
	"golang-market-news/internal/scheduler/config"
	delivery "golang-market-news/internal/scheduler/delivery/http"
	"golang-market-news/internal/scheduler/repository"
	"golang-market-news/internal/scheduler/service"
	"golang-market-news/pkg/logger"
	"golang-market-news/pkg/postgres"
	"golang-market-news/pkg/redis"
	"golang-market-news/pkg/telegram"
	"golang-market-news/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Digest schedules in US Eastern Time, weekday windows plus one weekly run.
const (
	cronPremarket  = "30 6 * * 1-5"
	cronLunch      = "0 12 * * 1-5"
	cronPostmarket = "30 16 * * 1-5"
	cronWeekly     = "0 12 * * 6"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the scheduler service",
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

	appLogger.Info("Starting Scheduler Service", zap.String("name", cfg.App.Name))

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

	// Initialize repositories
	articleRepo := repository.NewArticleRepository(db.DB)
	digestRepo := repository.NewDigestRepository(db.DB)
	failureRepo := repository.NewFailureRepository(db.DB)

	var sources []repository.NewsSourceRepository
	if cfg.NewsAPI.APIKey != "" {
		sources = append(sources, repository.NewNewsAPIRepository(cfg.NewsAPI, appLogger))
	}
	for _, feedURL := range cfg.Discovery.RSSFeeds {
		sources = append(sources, repository.NewRSSRepository(feedURL, appLogger))
	}
	if len(sources) == 0 {
		appLogger.Warn("No news sources configured, discovery will be idle")
	}

	telegramNotifier, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.AlertsChatID, cfg.Telegram.DigestsChatID)
	if err != nil {
		appLogger.Fatal("Failed to initialize Telegram notifier", zap.Error(err))
	}

	// Initialize services
	discoverySvc := service.NewDiscoveryService(cfg, appLogger, redisClient.Client, articleRepo, sources)
	digestSvc := service.NewDigestService(cfg, appLogger, articleRepo, digestRepo, telegramNotifier)

	// Schedule discovery and digest runs in Eastern Time
	scheduler := cron.New(cron.WithLocation(utils.LocationET()))

	if _, err := scheduler.AddFunc(cfg.Discovery.PollCron, func() { discoverySvc.Poll(ctx) }); err != nil {
		appLogger.Fatal("Failed to schedule discovery poll", zap.Error(err))
	}

	digestRuns := map[string]entity.DigestType{
		cronPremarket:  entity.DigestTypePremarket,
		cronLunch:      entity.DigestTypeLunch,
		cronPostmarket: entity.DigestTypePostmarket,
		cronWeekly:     entity.DigestTypeWeekly,
	}
	for spec, digestType := range digestRuns {
		dt := digestType
		if _, err := scheduler.AddFunc(spec, func() {
			if err := digestSvc.Run(ctx, dt); err != nil {
				appLogger.Error("Digest run failed", logger.ErrorField(err), logger.StringField("digest_type", string(dt)))
			}
		}); err != nil {
			appLogger.Fatal("Failed to schedule digest run", zap.Error(err), zap.String("digest_type", string(digestType)))
		}
	}

	scheduler.Start()

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	apiV1 := e.Group("/api/v1")

	articleHandler := delivery.NewArticleHandler(articleRepo, appLogger)
	articleHandler.RegisterRoutes(apiV1.Group("/articles"))

	digestHandler := delivery.NewDigestHandler(digestRepo, appLogger)
	digestHandler.RegisterRoutes(apiV1.Group("/digests"))

	failureHandler := delivery.NewFailureHandler(failureRepo, appLogger)
	failureHandler.RegisterRoutes(apiV1.Group("/failures"))

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "scheduler-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-scheduler.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing scheduler-service CLI: %s\n", err)
		os.Exit(1)
	}
}
