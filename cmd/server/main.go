package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/janmitra/backend/internal/ai"
	"github.com/janmitra/backend/internal/auth"
	"github.com/janmitra/backend/internal/config"
	"github.com/janmitra/backend/internal/db"
	"github.com/janmitra/backend/internal/geocode"
	httpapi "github.com/janmitra/backend/internal/http"
	"github.com/janmitra/backend/internal/memstore"
	"github.com/janmitra/backend/internal/notify"
	"github.com/janmitra/backend/internal/realtime"
	"github.com/janmitra/backend/internal/seed"
	"github.com/janmitra/backend/internal/service"
)

type storage interface {
	service.GrievanceStore
	service.DirectoryStore
	service.NotificationStore
	notify.Store
	Ping(ctx context.Context) error
	Close()
}

// @title Jan-Mitra Backend
// @version 1.0
// @description Grievance intake, tracking and resolution API
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "jan-mitra-backend").Logger()

	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	ctx := context.Background()
	store := openStorage(ctx, cfg, logger)
	defer store.Close()

	var (
		publisher  notify.Publisher = notify.NopPublisher{Logger: logger}
		feed       *realtime.Feed
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis not reachable; live notifications may fail")
		}
		publisher = notify.RedisPublisher{Client: redisClient}
		feed = realtime.NewFeed(realtime.RedisSubscriber{Client: redisClient}, logger, httpapi.AllowedOrigins(cfg))
	} else {
		logger.Info().Msg("REDIS_URL not set; live notifications disabled")
	}

	var mailer notify.Mailer = notify.LogMailer{Logger: logger}
	if cfg.MailWebhookURL != "" {
		mailer = notify.WebhookMailer{URL: cfg.MailWebhookURL, From: cfg.MailFrom, Client: &http.Client{Timeout: 10 * time.Second}}
	}

	dispatcher := &notify.Dispatcher{
		Store:     store,
		Publisher: publisher,
		Mailer:    mailer,
		Logger:    logger,
	}

	grievances := &service.GrievanceService{
		Grievances:           store,
		Directory:            store,
		Events:               dispatcher,
		Logger:               logger,
		AdminOverrideHistory: cfg.AdminOverrideHistory,
	}
	if cfg.GeocodeEnabled {
		grievances.Locator = &geocode.NominatimGeocoder{BaseURL: cfg.GeocodeURL, Country: cfg.GeocodeCountry}
	}

	adapter, err := intakeAdapter(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init AI adapter")
	}

	router := httpapi.Router(cfg, httpapi.Deps{
		Store:      store,
		Grievances: grievances,
		Directory: &service.DirectoryService{
			Directory:     store,
			Notifications: store,
			Broadcaster:   dispatcher,
		},
		Intake: adapter,
		Identities: &auth.Resolver{
			Verifier: auth.Verifier{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer},
			Profiles: store,
			Timeout:  cfg.IdentityTimeout,
			Retries:  cfg.IdentityRetries,
			Logger:   logger,
		},
		Feed:   feed,
		Logger: logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}

// openStorage connects to Postgres, or falls back to an in-memory store for
// local development when DATABASE_URL is empty.
func openStorage(ctx context.Context, cfg config.Config, logger zerolog.Logger) storage {
	if cfg.DatabaseURL != "" {
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect db")
		}
		return store
	}

	logger.Warn().Msg("DATABASE_URL not set; using in-memory store, data is lost on restart")
	store := memstore.New()
	if cfg.DepartmentsFile != "" {
		departments, err := seed.LoadDepartments(cfg.DepartmentsFile)
		if err != nil {
			logger.Warn().Err(err).Str("file", cfg.DepartmentsFile).Msg("departments not seeded")
			return store
		}
		n, _ := store.UpsertDepartments(ctx, departments)
		logger.Info().Int("departments", n).Msg("seeded in-memory departments")
	}
	return store
}

func intakeAdapter(ctx context.Context, cfg config.Config, logger zerolog.Logger) (ai.Adapter, error) {
	switch cfg.AIProvider {
	case "gemini":
		logger.Info().Str("model", cfg.AIModel).Str("url", cfg.AIURL).Msg("using gemini intake adapter")
		return ai.NewGeminiAdapter(ctx, cfg.AIAPIKey, cfg.AIModel, cfg.AIURL)
	case "openai":
		if cfg.AIURL == "" {
			return nil, errors.New("AI_URL is required for the openai provider")
		}
		logger.Info().Str("url", cfg.AIURL).Str("model", cfg.AIModel).Msg("using openai-compatible intake adapter")
		return ai.OpenAIAdapter{BaseURL: cfg.AIURL, Model: cfg.AIModel, APIKey: cfg.AIAPIKey}, nil
	default:
		logger.Info().Msg("using mock intake adapter")
		return ai.MockAdapter{}, nil
	}
}
