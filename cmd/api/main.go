package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recinto/internal/api"
	"recinto/internal/config"
	"recinto/internal/coordinator"
	"recinto/internal/database"
	"recinto/internal/domain"
	"recinto/internal/events"
	"recinto/internal/logging"
	"recinto/internal/metrics"
	"recinto/internal/models"
	"recinto/internal/notify"
	"recinto/internal/repository"
	"recinto/internal/service"
	"recinto/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	resources, err := loadResources(cfg, &logger)
	if err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := initIntervalCache(ctx, cfg, &logger)

	feed := events.NewFeed(cfg.Booking.FeedBuffer)
	defer feed.Close()

	coord := coordinator.New(&logger)
	sub, unsubscribe := feed.Subscribe()
	defer unsubscribe()
	go coord.Run(ctx, sub)

	notifier := initNotifier(cfg, &logger)

	catalog := service.NewCatalogService(db, resources, &logger)
	reservations := service.NewReservationService(db, cache, coord, feed, notifier, &logger)

	expiry := worker.NewExpiryWorker(
		reservations,
		time.Duration(cfg.Booking.PaymentWindowHours)*time.Hour,
		time.Duration(cfg.Booking.ExpirySweepMinutes)*time.Minute,
		&logger,
	)
	go expiry.Run(ctx)

	httpServer := api.NewHTTPServer(cfg.API, catalog, reservations, &logger)

	startMetrics(ctx, cfg, &logger)

	return serve(ctx, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// loadResources prefers a standalone catalog file when RESOURCES_PATH is set,
// falling back to the resources block of the main config.
func loadResources(cfg *config.Config, logger *zerolog.Logger) ([]models.Resource, error) {
	resources := cfg.Resources

	if resourcesPath := os.Getenv("RESOURCES_PATH"); resourcesPath != "" {
		data, err := os.ReadFile(resourcesPath)
		if err != nil {
			logger.Error().Err(err).Str("resources_path", resourcesPath).Msg("read resources")
			return nil, err
		}

		var catalog struct {
			Resources []models.Resource `yaml:"resources"`
		}
		if err := yaml.Unmarshal(data, &catalog); err != nil {
			logger.Error().Err(err).Str("resources_path", resourcesPath).Msg("parse resources")
			return nil, err
		}
		resources = catalog.Resources
	}

	if len(resources) == 0 {
		return nil, fmt.Errorf("no resources configured")
	}
	if err := config.ValidateResources(resources); err != nil {
		return nil, fmt.Errorf("validate resources: %w", err)
	}

	logger.Info().Int("count", len(resources)).Msg("resource catalog loaded")
	return resources, nil
}

func initIntervalCache(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.IntervalCache {
	ttl := time.Duration(cfg.Booking.IntervalCacheTTL) * time.Second
	memory := repository.NewMemoryIntervalCache(ttl)

	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with in-memory cache")
		_ = repository.Close(client)
		return memory
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	redisCache := repository.NewRedisIntervalCache(client, ttl)
	return repository.NewFailoverIntervalCache(redisCache, memory, logger)
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if !cfg.Telegram.Enabled || cfg.Telegram.BotToken == "" {
		return notify.NewLogNotifier(logger)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, falling back to log notifier")
		return notify.NewLogNotifier(logger)
	}

	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier connected")
	return notify.NewTelegramNotifier(bot, cfg.Telegram.AdminChatIDs, logger)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
