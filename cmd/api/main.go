package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/skillswap/backend/internal/api"
	"github.com/skillswap/backend/internal/auth"
	"github.com/skillswap/backend/internal/config"
	"github.com/skillswap/backend/internal/domain"
	"github.com/skillswap/backend/internal/fcm"
	"github.com/skillswap/backend/internal/ratelimit"
	"github.com/skillswap/backend/internal/realtime"
	"github.com/skillswap/backend/internal/repository"
	"github.com/skillswap/backend/internal/storage"
)

const version = "1.0.0"

// store is what the services and health checks need from either backend
type store interface {
	domain.UserRepository
	domain.RequestRepository
	Ping(ctx context.Context) error
}

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Initialize logger
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Starting SkillSwap API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Database.Store),
		zap.String("storage", cfg.Storage.Type),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store
	repo, closeStore, err := initStore(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer closeStore()

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)
	googleAuth := auth.NewGoogleAuthVerifier(cfg.Google.ClientIDs)
	if googleAuth.IsConfigured() {
		logger.Info("Google sign-in is configured")
	} else {
		logger.Warn("Google sign-in is NOT configured - set GOOGLE_CLIENT_ID to enable")
	}

	limiter, closeLimiter, err := initLimiter(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to initialize login limiter", zap.Error(err))
	}
	defer closeLimiter()

	// Push notifications are optional
	var push domain.PushSender
	if cfg.Firebase.Enabled {
		fcmClient, err := fcm.NewClient(ctx, logger, cfg.Firebase.CredentialsFile)
		if err != nil {
			logger.Warn("Failed to initialize Firebase client - push notifications will be disabled", zap.Error(err))
		} else {
			push = fcmClient
			logger.Info("Firebase client initialized")
		}
	}

	fileStorage, uploadDir, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize file storage", zap.Error(err))
	}

	// Realtime hub
	hub := realtime.NewHub(logger, cfg.CORS.AllowedOrigins)
	go hub.Run(ctx)

	// Initialize services
	notificationService := domain.NewNotificationService(repo, hub, push, logger)
	authService := domain.NewAuthService(repo, jwtManager, googleAuth, limiter, logger)
	userService := domain.NewUserService(repo, fileStorage)
	requestService := domain.NewRequestService(repo, repo, notificationService)

	var oauthHandler *api.GoogleOAuthHandler
	if cfg.Google.WebFlowEnabled() {
		oauthHandler = api.NewGoogleOAuthHandler(cfg.Google, authService, logger)
	}

	// Initialize router
	router := api.NewRouter(api.RouterConfig{
		AuthHandler:        api.NewAuthHandler(authService, logger),
		GoogleOAuthHandler: oauthHandler,
		UserHandler:        api.NewUserHandler(userService, logger),
		RequestHandler:     api.NewRequestHandler(requestService, logger),
		HealthHandler:      api.NewHealthHandler(repo, version, logger),
		WebSocketHandler:   api.NewWebSocketHandler(hub, logger),
		JWTManager:         jwtManager,
		Users:              repo,
		CORSOrigins:        cfg.CORS.AllowedOrigins,
		UploadDir:          uploadDir,
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Close websocket clients before draining HTTP
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func initLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if os.Getenv("ENV") == "production" {
		cfg = zap.NewProductionConfig()
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		level, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	return cfg.Build()
}

func initStore(ctx context.Context, cfg config.DatabaseConfig) (store, func(), error) {
	if cfg.Store == config.StoreTypeMemory {
		return repository.NewMemoryRepository(), func() {}, nil
	}

	db, err := initDatabase(ctx, cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	repo := repository.NewPostgresRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return repo, db.Close, nil
}

func initDatabase(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

func initLimiter(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (domain.LoginLimiter, func(), error) {
	if cfg.URL == "" {
		logger.Info("REDIS_URL not set - login attempts are tracked in memory")
		return ratelimit.NewMemoryLimiter(ratelimit.DefaultMaxAttempts, ratelimit.DefaultWindow), func() {}, nil
	}

	client, err := ratelimit.NewRedisClient(ctx, cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Connected to Redis")
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	return ratelimit.NewRedisLimiter(client, ratelimit.DefaultMaxAttempts, ratelimit.DefaultWindow), closeFn, nil
}

// initStorage returns the avatar store and, for local storage, the directory to serve under /uploads.
func initStorage(ctx context.Context, cfg config.StorageConfig) (storage.FileStorage, string, error) {
	if cfg.Type == config.StorageTypeS3 {
		s3Storage, err := storage.NewS3Storage(ctx, cfg)
		if err != nil {
			return nil, "", err
		}
		return s3Storage, "", nil
	}

	local, err := storage.NewLocalFileStorage(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, "", err
	}
	return local, local.Dir(), nil
}
