// Package main runs the Fasticket HTTP server with the live availability feed and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fasticket/backend/config"
	"github.com/fasticket/backend/internal/analytics"
	"github.com/fasticket/backend/internal/auth"
	"github.com/fasticket/backend/internal/bookings"
	"github.com/fasticket/backend/internal/emaillogs"
	"github.com/fasticket/backend/internal/events"
	"github.com/fasticket/backend/internal/mailer"
	"github.com/fasticket/backend/internal/metrics"
	"github.com/fasticket/backend/internal/middleware"
	"github.com/fasticket/backend/internal/organizations"
	"github.com/fasticket/backend/internal/profiles"
	"github.com/fasticket/backend/internal/realtime"
	"github.com/fasticket/backend/internal/worker"
	"github.com/fasticket/backend/pkg/database"
	"github.com/fasticket/backend/pkg/queue"
	"github.com/fasticket/backend/pkg/ratelimit"
	"github.com/fasticket/backend/pkg/redis"
	"github.com/fasticket/backend/pkg/response"
	"github.com/fasticket/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AvatarsBucket:        cfg.AWS.AvatarsBucket,
			EventImagesBucket:    cfg.AWS.EventImagesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}
	// uploads answer 503 when S3 is not configured
	var coverUploader events.ImageUploader
	var avatarUploader profiles.AvatarUploader
	if s3Client != nil {
		coverUploader = s3Client
		avatarUploader = s3Client
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	limiter := ratelimit.New(rdb.Client, "ratelimit:")

	// Organizations and the single authorization layer
	orgRepo := organizations.NewRepository(pool)
	access := organizations.NewAccess(orgRepo, logger)
	orgHandler := organizations.NewHandler(orgRepo, access, logger)

	// Notifications
	emailLogRepo := emaillogs.NewRepository(pool)
	notifier := emaillogs.NewNotifier(emailLogRepo, jobQueue, logger)
	emailLogHandler := emaillogs.NewHandler(emailLogRepo, notifier, logger)

	// Events and bookings
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, access, notifier, hub, coverUploader, logger)
	requireEventOrganizer := events.RequireEventOrganizer(eventRepo, access, logger)

	bookingRepo := bookings.NewRepository(pool)
	bookingHandler := bookings.NewHandler(bookingRepo, access, notifier, hub, logger)

	profileRepo := profiles.NewRepository(pool)
	profileHandler := profiles.NewHandler(profileRepo, avatarUploader, logger)

	analyticsHandler := analytics.NewHandler(analytics.NewRepository(pool), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := database.Ping(ctx, pool); err != nil {
			logger.Warn("health: database", zap.Error(err))
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Healthy(ctx); err != nil {
			logger.Warn("health: redis", zap.Error(err))
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Public reads; a token, when present, widens event visibility to the caller's organizations
	public := router.Group("/api")
	public.Use(middleware.OptionalJWT(jwtService))
	{
		public.GET("/events", eventHandler.List)
		public.GET("/events/:id", eventHandler.GetByID)
	}

	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		// Profile
		api.GET("/profile", profileHandler.Get)
		api.PATCH("/profile", profileHandler.Update)
		api.POST("/profile/avatar", profileHandler.UploadAvatar)

		// Organizations
		organizations.RegisterRoutes(api, orgHandler, access)
		api.GET("/organizations/:id/events", eventHandler.ListForOrganization)
		api.POST("/organizations/:id/events", access.RequireOrganizer("id"), eventHandler.Create)

		// Events (organizer)
		api.PATCH("/events/:id", requireEventOrganizer, eventHandler.Update)
		api.PATCH("/events/:id/status", requireEventOrganizer, eventHandler.UpdateStatus)
		api.DELETE("/events/:id", requireEventOrganizer, eventHandler.Delete)
		api.POST("/events/:id/cover", requireEventOrganizer, eventHandler.UploadCover)
		api.GET("/events/:id/bookings", requireEventOrganizer, bookingHandler.ListForEvent)
		api.GET("/events/:id/stats", requireEventOrganizer, analyticsHandler.GetByEvent)
		api.GET("/events/:id/emails", requireEventOrganizer, emailLogHandler.ListByEvent)
		api.POST("/events/:id/emails/resend", requireEventOrganizer, emailLogHandler.Resend)

		// Bookings
		api.POST("/bookings/create",
			middleware.RateLimit(limiter, "bookings", cfg.RateLimit.BookingsPerWindow, cfg.RateLimit.Window, logger),
			bookingHandler.Create)
		api.GET("/bookings", bookingHandler.ListMine)
		api.GET("/bookings/code/:code", bookingHandler.GetByCode)
		api.GET("/bookings/:id", bookingHandler.GetByID)
		api.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	}

	// Live availability (public, published events only)
	router.GET("/ws/events/:id", realtime.ServeWs(hub, eventRepo, cfg.Server.CORSAllowedOrigins, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (booking emails over SMTP)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	if cfg.Worker.Embedded && cfg.Email.Enabled() {
		sender := mailer.NewSMTPSender(mailer.FromConfig(cfg.Email), logger)
		processor := worker.NewEmailProcessor(emailLogRepo, sender, jobQueue, cfg.Server.PublicBaseURL, logger)
		go func() {
			defer close(workerDone)
			processor.Run(workerCtx)
		}()
	} else {
		close(workerDone)
		logger.Info("email worker not started in this process", zap.Bool("smtp_configured", cfg.Email.Enabled()))
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("email worker did not stop in time")
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
