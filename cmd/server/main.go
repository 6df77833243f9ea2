package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/chat"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/config"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/database"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/handlers"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/middleware"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/migrations"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/realtime"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/routes"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/services"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/session"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/store"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/logger"
)

// changeFeed is what the store publishes to and the channels subscribe on
type changeFeed interface {
	realtime.Publisher
	chat.Feed
}

func main() {
	// 0. Load Config & Initialize Logger
	config.LoadConfig()
	cfg := config.AppConfig

	// Environment-based logger initialization (production = JSON, development = pretty)
	env := cfg.Env
	if env == "" {
		env = "development"
	}
	logger.Init(env)

	logger.Info().Str("environment", env).Msg("Starting Overboard messaging service...")

	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Connect Database & Redis
	database.Connect()
	database.InitRedis(ctx)

	logger.Info().Msg("🔄 Running Database Migrations...")
	if err := database.Migrate(database.DB); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}
	if err := migrations.NewMigrator(database.DB).Run(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to apply schema migrations")
	}
	logger.Info().Msg("✅ Database Migrations Complete")

	// 2. Change feed: in-process, shared across instances when Redis is up
	hub := realtime.NewHub()
	defer hub.Close()
	var feed changeFeed = hub
	if database.Redis != nil {
		bridge := realtime.NewRedisBridge(database.Redis, hub)
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("Redis change feed stopped")
			}
		}()
		feed = bridge
	}

	backend := store.New(database.DB, feed)

	h := &handlers.ChatHandler{
		Backend:        backend,
		Feed:           feed,
		Directory:      session.NewDirectory(backend, cfg.ProfileCacheTTL),
		TypingTimeout:  cfg.TypingTimeout,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	// 3. Optional integrations
	if cfg.StorageConfigured() {
		uploader, err := services.NewR2Uploader(ctx, cfg)
		if err != nil {
			logger.Error().Err(err).Msg("R2 unavailable, attachment uploads disabled")
		} else {
			h.Uploader = uploader
		}
	}
	h.Attachments = handlers.NewAttachmentPolicy(cfg.R2PublicURL)

	if cfg.AMQPURL != "" {
		events, err := services.NewEventPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error().Err(err).Msg("RabbitMQ unavailable, chat events disabled")
		} else {
			defer events.Close()
			h.Notifier = events
		}
	}

	// 4. Setup Router
	r := gin.New()

	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.SecurityHeaders())

	// Exempt /socket.io from rate limiting
	general := middleware.GeneralRateLimit()
	r.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/socket.io") {
			c.Next()
			return
		}
		general(c)
	})

	api := r.Group("/api")
	routes.RegisterChatRoutes(api, h)

	r.GET("/health", func(c *gin.Context) {
		dbStatus := "ok"
		redisStatus := "ok"

		sqlDB, err := database.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			dbStatus = "error"
		}

		if database.Redis != nil {
			if _, err := database.Redis.Ping(c.Request.Context()).Result(); err != nil {
				redisStatus = "error"
			}
		} else {
			redisStatus = "not configured"
		}

		status := "ok"
		if dbStatus != "ok" || (redisStatus != "ok" && redisStatus != "not configured") {
			status = "degraded"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  status,
			"message": "Overboard messaging is running",
			"checks": gin.H{
				"database":      dbStatus,
				"redis":         redisStatus,
				"subscriptions": hub.Active(),
			},
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Socket.io
	socketServer := h.NewSocketServer()
	go func() {
		if err := socketServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("Socket server stopped")
		}
	}()
	defer socketServer.Close()

	r.GET("/socket.io/*any", handlers.SocketHandler(socketServer))
	r.POST("/socket.io/*any", handlers.SocketHandler(socketServer))

	// 5. Start Server with graceful shutdown
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", port).Str("env", env).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("🛑 Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("✅ Server exited gracefully")
}
