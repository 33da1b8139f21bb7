package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/jmallard/penpal/internal/config"
	"github.com/jmallard/penpal/internal/database"
	"github.com/jmallard/penpal/internal/handlers"
	"github.com/jmallard/penpal/internal/logging"
	"github.com/jmallard/penpal/internal/middleware"
	"github.com/jmallard/penpal/internal/services"
	"github.com/jmallard/penpal/internal/store"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	// Local overrides only; missing .env is the normal case.
	_ = godotenv.Load()

	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
		logging.SetDefaultLevel(logging.LevelDebug)
		logger.Debug("Debug logging enabled", map[string]interface{}{"env": cfg.Server.Environment})
	}

	logger.Info("Starting penpal server...")

	var (
		docStore     store.Store
		healthChecks []handlers.HealthCheck
		redisClient  *redis.Client
	)

	switch cfg.Store.Backend {
	case "postgres":
		logger.Info("Connecting to PostgreSQL", map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
		})
		db, err := database.NewPostgresDB(cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()

		logger.Info("Running database migrations...")
		migrator, err := database.NewMigrator(cfg.Database.DSN(), "migrations")
		if err != nil {
			return fmt.Errorf("creating migrator: %w", err)
		}
		if err := migrator.Up(); err != nil {
			_ = migrator.Close()
			return fmt.Errorf("running migrations: %w", err)
		}
		_ = migrator.Close()
		logger.Info("Migrations completed")

		docStore = store.NewPostgresStore(db.Pool)
		healthChecks = append(healthChecks, handlers.HealthCheck{Name: "postgres", Checker: db})

	case "redis":
		logger.Info("Connecting to Redis store", map[string]interface{}{"addr": cfg.Redis.Addr()})
		redisDB, err := database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = redisDB.Close() }()

		docStore = store.NewRedisStore(redisDB.Client)
		redisClient = redisDB.Client
		healthChecks = append(healthChecks, handlers.HealthCheck{Name: "redis", Checker: redisDB})
	}

	// Rate limiting rides on Redis even when the documents live in
	// Postgres. If Redis is unreachable the limiter is disabled rather than
	// blocking startup.
	if redisClient == nil {
		redisDB, err := database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis unavailable, auth rate limiting disabled", map[string]interface{}{"error": err.Error()})
		} else {
			defer func() { _ = redisDB.Close() }()
			redisClient = redisDB.Client
			healthChecks = append(healthChecks, handlers.HealthCheck{Name: "redis", Checker: redisDB})
		}
	}

	// Initialize services
	userService := services.NewUserService(docStore)
	identityIndex := services.NewIdentityIndex(docStore, logger)
	tokenService := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := services.NewAuthService(userService, identityIndex, tokenService, logger)
	friendService := services.NewFriendService(docStore, userService, logger)
	chatService := services.NewChatService(docStore, userService, logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(healthChecks...)
	authHandler := handlers.NewAuthHandler(authService)
	friendHandler := handlers.NewFriendHandler(friendService)
	chatHandler := handlers.NewChatHandler(chatService, friendService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService, userService)
	securityHeaders := middleware.NewSecurityHeaders(cfg.Server.Secure)
	requestLogger := middleware.NewRequestLogger(logger)

	authRateLimiter := middleware.NewRateLimiter(
		redisClient,
		cfg.Auth.AuthRateLimit,
		cfg.Auth.AuthRateWindow,
		"ratelimit:auth:",
		func(r *http.Request) string { return "" }, // per client IP
		true,
	)

	requireUser := authMiddleware.RequireUser

	// Set up router
	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)

	// Auth endpoints
	mux.Handle("POST /api/auth/register", authRateLimiter.Middleware(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", authRateLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.Handle("GET /api/auth/profile", requireUser(http.HandlerFunc(authHandler.Profile)))

	// Social endpoints
	mux.Handle("GET /api/social/users/search", requireUser(http.HandlerFunc(friendHandler.Search)))
	mux.Handle("POST /api/social/friends/request", requireUser(http.HandlerFunc(friendHandler.SendRequest)))
	mux.Handle("GET /api/social/friends/requests", requireUser(http.HandlerFunc(friendHandler.ListRequests)))
	mux.Handle("POST /api/social/friends/requests/{id}/accept", requireUser(http.HandlerFunc(friendHandler.Accept)))
	mux.Handle("POST /api/social/friends/requests/{id}/decline", requireUser(http.HandlerFunc(friendHandler.Decline)))
	mux.Handle("GET /api/social/friends", requireUser(http.HandlerFunc(friendHandler.ListFriends)))

	// Chat endpoints
	mux.Handle("POST /api/social/chats", requireUser(http.HandlerFunc(chatHandler.Open)))
	mux.Handle("GET /api/social/chats", requireUser(http.HandlerFunc(chatHandler.List)))
	mux.Handle("GET /api/social/chats/{id}/messages", requireUser(http.HandlerFunc(chatHandler.GetMessages)))
	mux.Handle("POST /api/social/chats/{id}/messages", requireUser(http.HandlerFunc(chatHandler.SendMessage)))

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	// Build middleware chain (order matters: outermost first)
	var handler http.Handler = mux
	handler = corsMiddleware.Handler(handler)
	handler = securityHeaders.Apply(handler)
	handler = requestLogger.Apply(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server is ready to handle requests", map[string]interface{}{"addr": addr})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}
