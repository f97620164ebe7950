package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"partygame/config"
	"partygame/handlers"
	"partygame/logger"
	"partygame/middleware"
	"partygame/models"
	"partygame/routes"
	"partygame/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.LogProduction); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	log := logger.L()

	if cfg.LogProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	// Auto-migrate database models
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis, optional
	redisClient := config.InitRedis(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize services
	gameService := services.NewGameService(db, services.NewGameCache(redisClient, cfg.CacheTTL))
	questionService := services.NewQuestionService(db)
	answerService := services.NewAnswerService(db)
	hostTokens := services.NewHostTokens(cfg.JWTSecret, 0)

	// Initialize WebSocket hub
	hub := services.NewHub(gameService)
	go hub.Run(ctx)

	// Initialize handlers
	gameHandler := handlers.NewGameHandler(gameService, hostTokens, hub)
	questionHandler := handlers.NewQuestionHandler(questionService, hub)
	answerHandler := handlers.NewAnswerHandler(answerService, hub)
	feedHandler := handlers.NewFeedHandler(gameService, hub, cfg.CORSOrigins)
	healthHandler := handlers.NewHealthHandler(db)

	// Setup Gin router
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.GinLogger(),
		middleware.GinRecovery(),
		middleware.CORS(cfg.CORSOrigins),
		middleware.RateLimit(middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)),
	)

	routes.SetupRoutes(router, gameHandler, questionHandler, answerHandler, feedHandler, healthHandler,
		middleware.HostAuth(hostTokens, cfg.HostAuthRequired))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("db_driver", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
