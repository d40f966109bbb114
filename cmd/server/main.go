// Package main runs the Gather HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/whtouche/gather-sub002/config"
	"github.com/whtouche/gather-sub002/internal/analytics"
	"github.com/whtouche/gather-sub002/internal/auth"
	"github.com/whtouche/gather-sub002/internal/connections"
	"github.com/whtouche/gather-sub002/internal/events"
	"github.com/whtouche/gather-sub002/internal/invites"
	"github.com/whtouche/gather-sub002/internal/messaging"
	"github.com/whtouche/gather-sub002/internal/middleware"
	"github.com/whtouche/gather-sub002/internal/notify"
	"github.com/whtouche/gather-sub002/internal/questionnaire"
	"github.com/whtouche/gather-sub002/internal/rsvp"
	"github.com/whtouche/gather-sub002/internal/waitlist"
	"github.com/whtouche/gather-sub002/internal/wall"
	"github.com/whtouche/gather-sub002/pkg/database"
	"github.com/whtouche/gather-sub002/pkg/queue"
	"github.com/whtouche/gather-sub002/pkg/redis"
	"github.com/whtouche/gather-sub002/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	notifier := notify.NewQueueNotifier(jobQueue, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, logger)

	// Questionnaire
	questionRepo := questionnaire.NewRepository(pool)
	questionHandler := questionnaire.NewHandler(questionRepo, eventRepo, logger)

	// Waitlist and RSVP admission. The waitlist promotes into the admission
	// controller and admissions promote off the waitlist, so the admitter is
	// wired after both services exist.
	waitlistRepo := waitlist.NewRepository(pool)
	claimWindow := time.Duration(cfg.Waitlist.ClaimWindowMinutes) * time.Minute
	waitlistSvc := waitlist.NewService(waitlistRepo, eventRepo, notifier, claimWindow, logger)

	rsvpRepo := rsvp.NewRepository(pool, eventRepo)
	rsvpSvc := rsvp.NewService(rsvpRepo, questionRepo, waitlistSvc, notifier,
		rsvp.Options{NotifyOnResubmit: cfg.Waitlist.NotifyOnResubmit}, logger)
	waitlistSvc.SetAdmitter(rsvpSvc)

	eventHandler.SetPromoter(waitlistSvc)

	rsvpHandler := rsvp.NewHandler(rsvpSvc, rsvpRepo, logger)
	waitlistHandler := waitlist.NewHandler(waitlistSvc, waitlistRepo, logger)

	// Wall
	wallRepo := wall.NewRepository(pool)
	wallHandler := wall.NewHandler(wallRepo, eventRepo, logger)

	// Mass messaging
	messagingRepo := messaging.NewRepository(pool)
	messagingHandler := messaging.NewHandler(messagingRepo, eventRepo, jobQueue, logger)

	// Connections
	connectionsRepo := connections.NewRepository(pool)
	connectionsHandler := connections.NewHandler(connectionsRepo, logger)

	// Invites
	inviteRepo := invites.NewRepository(pool)
	inviteHandler := invites.NewHandler(inviteRepo, eventRepo, logger)

	// Analytics
	analyticsRepo := analytics.NewRepository(pool)
	analyticsHandler := analytics.NewHandler(analyticsRepo, eventRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Invite links resolve without auth so they can be opened from email.
	router.GET("/invites/:token", inviteHandler.Resolve)

	// Event discovery is public; everything that mutates or is personal
	// lives behind JWT below.
	router.GET("/events", eventHandler.List)
	router.GET("/events/:id", eventHandler.Get)
	router.GET("/events/:id/state", eventHandler.State)
	router.GET("/events/:id/questions", questionHandler.List)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users
		api.GET("/me", authHandler.Me)
		api.PATCH("/me", authHandler.UpdateMe)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)
		api.GET("/connections", connectionsHandler.List)

		// Events
		api.POST("/events", eventHandler.Create)
		api.PATCH("/events/:id", eventHandler.Update)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.POST("/events/:id/publish", eventHandler.Publish)
		api.POST("/events/:id/cancel", eventHandler.Cancel)
		api.POST("/events/:id/complete", eventHandler.Complete)
		api.GET("/events/:id/stats", analyticsHandler.EventStats)

		// Questionnaire
		api.PUT("/events/:id/questions", questionHandler.Replace)
		api.GET("/events/:id/answers", questionHandler.MyAnswers)
		api.GET("/events/:id/answers/:userID", questionHandler.Answers)

		// RSVP
		api.POST("/events/:id/rsvp", rsvpHandler.Submit)
		api.PUT("/events/:id/rsvp", rsvpHandler.Submit)
		api.GET("/events/:id/rsvp", rsvpHandler.Mine)
		api.DELETE("/events/:id/rsvp", rsvpHandler.Withdraw)
		api.GET("/events/:id/rsvps", rsvpHandler.List)

		// Waitlist
		api.POST("/events/:id/waitlist", waitlistHandler.Join)
		api.DELETE("/events/:id/waitlist", waitlistHandler.Leave)
		api.GET("/events/:id/waitlist", waitlistHandler.List)
		api.GET("/events/:id/waitlist/position", waitlistHandler.Position)
		api.POST("/events/:id/waitlist/claim", waitlistHandler.Claim)

		// Wall
		api.GET("/events/:id/wall", wallHandler.List)
		api.POST("/events/:id/wall", wallHandler.Post)
		api.DELETE("/wall/:postID", wallHandler.Delete)

		// Mass messaging
		api.POST("/events/:id/messages", messagingHandler.Send)
		api.GET("/events/:id/messages", messagingHandler.List)
		api.GET("/events/:id/messages/:messageID/deliveries", messagingHandler.Deliveries)
		api.POST("/events/:id/messages/:messageID/resend", messagingHandler.Resend)

		// Invites
		api.POST("/events/:id/invites", inviteHandler.Create)
		api.GET("/events/:id/invites", inviteHandler.List)
		api.DELETE("/events/:id/invites/:inviteID", inviteHandler.Revoke)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
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
