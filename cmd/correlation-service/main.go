package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-stock-sentiment/internal/correlator/cache"
	"golang-stock-sentiment/internal/correlator/config"
	"golang-stock-sentiment/internal/correlator/delivery/cli"
	delivery "golang-stock-sentiment/internal/correlator/delivery/http"
	"golang-stock-sentiment/internal/correlator/dto"
	"golang-stock-sentiment/internal/correlator/pipeline"
	"golang-stock-sentiment/internal/correlator/repository"
	"golang-stock-sentiment/internal/correlator/service"
	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/common"
	"golang-stock-sentiment/pkg/logger"
	"golang-stock-sentiment/pkg/postgres"
	"golang-stock-sentiment/pkg/ratelimit"
	"golang-stock-sentiment/pkg/redis"
	"golang-stock-sentiment/pkg/telegram"
	"golang-stock-sentiment/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"google.golang.org/genai"
)

var (
	configPath string
	ticker     string
	startDate  string
	endDate    string
	asJSON     bool
)

// app holds everything built from configuration. close releases the connections it opened.
type app struct {
	cfg         *config.Config
	log         *logger.Logger
	correlation service.CorrelationService
	redis       *redis.Client
	closers     []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, log: appLogger}
	a.closers = append(a.closers, func() { _ = appLogger.Sync() })

	// Run log
	var runRepo repository.CorrelationRunRepository
	if cfg.RunLog.Enabled {
		db, err := postgres.NewDB(postgres.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			DBName:          cfg.Database.DBName,
			SSLMode:         cfg.Database.SSLMode,
			TimeZone:        cfg.Database.TimeZone,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			LogLevel:        cfg.Database.LogLevel,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if sqlDB, err := db.DB.DB(); err == nil {
			a.closers = append(a.closers, func() { _ = sqlDB.Close() })
		}
		runRepo = repository.NewCorrelationRunRepository(db.DB)
	}

	// Result cache
	var store cache.Store
	switch cfg.Cache.Driver {
	case "redis":
		redisClient, err := redis.NewClient(redis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.redis = redisClient
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		store = cache.NewRedisStore(redisClient.Client, cfg.Cache.KeyPrefix)
	default:
		store = cache.NewMemoryStore()
	}
	resultCache := cache.NewResultCache(store, cfg.Cache.TTL(), appLogger)

	// Sentiment model
	var model repository.SentimentRepository
	switch cfg.Sentiment.Provider {
	case "gemini":
		genAiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.Sentiment.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
		}
		model = repository.NewGeminiSentimentRepository(cfg.Sentiment, appLogger, genAiClient)
	case "http":
		model = repository.NewHTTPSentimentRepository(cfg.Sentiment, appLogger)
	}

	// Sources
	news := repository.NewGoogleNewsRepository(cfg.News, appLogger)
	if cfg.News.BackupEnabled {
		news = repository.NewFallbackNewsRepository(news, repository.NewYahooNewsRepository(cfg.News, appLogger), appLogger)
	}
	prices := repository.NewYahooPriceRepository(cfg.YahooFinance, cfg.News.UserAgent, appLogger)

	throttle := ratelimit.NewThrottle(cfg.Pipeline.MaxConcurrentRequests, cfg.Pipeline.RequestsPerMinute)
	scorer := pipeline.NewScorer(model, throttle, pipeline.ScorerConfig{
		MaxRetries:   cfg.Pipeline.MaxRetries,
		BaseDelay:    cfg.Pipeline.RetryBaseDelay,
		CallTimeout:  cfg.Pipeline.ScoreTimeout,
		ScoreBody:    cfg.Pipeline.ScoreBody,
		MaxBodyChars: cfg.Pipeline.MaxBodyChars,
	}, appLogger)

	correlation, err := service.NewCorrelationService(cfg.Pipeline, appLogger, news, prices, scorer, resultCache, runRepo)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize correlation service: %w", err)
	}
	a.correlation = correlation

	return a, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the correlation HTTP API and the scheduled warmup",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.close()
	cfg, appLogger := a.cfg, a.log

	appLogger.Info("Starting Correlation Service", logger.Field("name", cfg.App.Name))

	var notifier telegram.Notifier
	if cfg.Telegram.Enabled {
		n, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
		notifier = n
	}

	if cfg.Warmup.Enabled {
		var locker goredis.Cmdable
		if a.redis != nil {
			locker = a.redis.Client
		}
		warmup, err := service.NewWarmupService(cfg.Warmup, cfg.Pipeline.MarketTimezone, a.correlation, notifier, locker, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to initialize warmup", logger.ErrorField(err))
		}
		utils.GoSafe(func() {
			if err := warmup.Start(ctx); err != nil {
				appLogger.Error("Warmup scheduler stopped", logger.ErrorField(err))
			}
		})
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	handler := delivery.NewCorrelationHandler(a.correlation, appLogger)
	handler.RegisterRoutes(e.Group("/api/v1"))
	e.GET("/healthz", handler.HealthCheck)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop()
		}
	}()

	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs one correlation and prints the report",
	RunE:  runOnce,
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start, err := entity.ParseDate(startDate)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	end, err := entity.ParseDate(endDate)
	if err != nil {
		return fmt.Errorf("--end: %w", err)
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	out, err := a.correlation.Run(ctx, ticker, entity.DateRange{Start: start, End: end})
	warning := ""
	if entity.IsInsufficientData(err) {
		warning = err.Error()
	} else if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(dto.CorrelationResponse{Result: out.Result, Cached: out.Cached, Warning: warning})
	}

	fmt.Fprint(cmd.OutOrStdout(), cli.RenderReport(out.Result, out.Cached, warning))
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "correlation-service",
		Short: "Correlates news sentiment with daily stock returns",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config-correlator.yaml", "Path to the configuration file")

	runCmd.Flags().StringVarP(&ticker, "ticker", "t", "", "Ticker symbol")
	runCmd.Flags().StringVar(&startDate, "start", "", "First date, YYYY-MM-DD")
	runCmd.Flags().StringVar(&endDate, "end", "", "Last date, YYYY-MM-DD")
	runCmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	_ = runCmd.MarkFlagRequired("ticker")
	_ = runCmd.MarkFlagRequired("start")
	_ = runCmd.MarkFlagRequired("end")

	rootCmd.AddCommand(serveCmd, runCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing %s CLI: %s\n", common.AppName, err)
		os.Exit(1)
	}
}
