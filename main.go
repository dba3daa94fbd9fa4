package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/raushankrgupta/product-descriptions-ai/api"
	"github.com/raushankrgupta/product-descriptions-ai/auth"
	"github.com/raushankrgupta/product-descriptions-ai/bulk"
	"github.com/raushankrgupta/product-descriptions-ai/config"
	"github.com/raushankrgupta/product-descriptions-ai/gemini"
	"github.com/raushankrgupta/product-descriptions-ai/generation"
	"github.com/raushankrgupta/product-descriptions-ai/usage"
	"github.com/raushankrgupta/product-descriptions-ai/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// localArtifactDir holds bulk exports when no S3 bucket is configured
const localArtifactDir = "bulk_results"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize MongoDB
	mongoClient, err := utils.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		logger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.MongoDB)

	profiles, closeProfiles := openProfileStore(ctx, cfg, db, logger)
	defer closeProfiles()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatalf("Invalid REDIS_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}

	artifacts := openArtifactStore(ctx, cfg, logger)

	var events bulk.EventPublisher
	if cfg.NATSURL != "" {
		publisher, err := utils.ConnectNATS(cfg.NATSURL)
		if err != nil {
			logger.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer publisher.Close()
		events = publisher
	}

	if cfg.GeminiAPIKey == "" {
		logger.Fatal("GEMINI_API_KEY environment variable not set")
	}
	backend, err := gemini.NewBackend(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		logger.Fatalf("Failed to create Gemini client: %v", err)
	}
	defer backend.Close()

	var generator generation.Generator = backend
	if cfg.GenerationAPIURL != "" {
		generator = generation.NewClient(cfg.GenerationAPIURL, &http.Client{}, logger)
		logger.WithField("url", cfg.GenerationAPIURL).Info("Using remote generation API")
	}

	jobs := bulk.NewMongoJobStore(db)
	codes := auth.NewMongoCodeStore(db)
	for name, ensure := range map[string]func(context.Context) error{
		bulk.JobsCollection:  jobs.EnsureIndexes,
		auth.CodesCollection: codes.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			logger.WithError(err).WithField("collection", name).Warn("Failed to ensure indexes")
		}
	}

	mailer := utils.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFromName, cfg.MailFrom, logger)
	gate := usage.NewGate(profiles, cfg.UsageLimit, logger)
	bulkService := bulk.NewService(bulk.Deps{
		Gate:      gate,
		Generator: generator,
		Jobs:      jobs,
		Progress:  bulk.NewRedisProgressStore(redisClient),
		Artifacts: artifacts,
		Events:    events,
		Policy:    cfg.BulkUsagePolicy,
		Logger:    logger,
	})

	server := api.NewServer(api.Deps{
		Backend:        backend,
		Generator:      generator,
		Gate:           gate,
		Bulk:           bulkService,
		Auth:           auth.NewService(codes, profiles, utils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), mailer, cfg.OTPTTL, logger),
		Google:         auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL),
		Contacts:       api.NewMongoContactStore(db),
		Mailer:         mailer,
		ContactEmail:   cfg.ContactEmail,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s...", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	// running bulk jobs finish before their stores are closed
	done := make(chan struct{})
	go func() {
		bulkService.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("Bulk jobs still running at shutdown")
	}
	logger.Info("Server exited")
}

func openProfileStore(ctx context.Context, cfg *config.Config, db *mongo.Database, logger *logrus.Logger) (usage.SessionStore, func()) {
	if cfg.ProfileStore == "postgres" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("Failed to connect to Postgres: %v", err)
		}
		store := usage.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			logger.Fatalf("Failed to migrate profiles table: %v", err)
		}
		logger.Info("Using Postgres profile store")
		return store, pool.Close
	}

	store := usage.NewMongoStore(db)
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to ensure profile indexes")
	}
	return store, func() {}
}

func openArtifactStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) bulk.ArtifactStore {
	if cfg.AWSBucketName != "" {
		store, err := utils.NewS3Store(ctx, cfg.AWSRegion, cfg.AWSBucketName)
		if err != nil {
			logger.Fatalf("Failed to create S3 client: %v", err)
		}
		return store
	}

	logger.WithField("dir", localArtifactDir).Warn("AWS_BUCKET_NAME not set, storing bulk results on disk")
	store, err := utils.NewLocalStore(localArtifactDir)
	if err != nil {
		logger.Fatalf("Failed to prepare local storage: %v", err)
	}
	return store
}
