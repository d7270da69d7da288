package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/snapgram/backend/internal/handlers"
	"github.com/anonto42/snapgram/backend/internal/media"
	"github.com/anonto42/snapgram/backend/internal/router"
	"github.com/anonto42/snapgram/backend/pkg/config"
	"github.com/anonto42/snapgram/backend/pkg/firebase"
	"github.com/anonto42/snapgram/backend/pkg/logging"
	"github.com/anonto42/snapgram/backend/validators"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.Init(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	ctx := context.Background()

	blobs, err := media.NewMinioStore(ctx, media.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
		PublicURL: cfg.MediaPublicURL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize media store: %v", err)
	}

	// Initialize Firebase
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	// Setup global middleware
	config.SetupMiddleware(e, cfg, logger)

	deps := router.Deps{
		Postgres:       db.Postgres,
		Mongo:          db.Mongo.Database(cfg.MongoDatabase),
		Redis:          db.Redis,
		Blobs:          blobs,
		JWTSecret:      cfg.JWTSecret,
		TokenTTL:       cfg.TokenTTL,
		MediaPublicURL: blobs.BaseURL(),
		ChatAPIKey:     cfg.ChatAPIKey,
		ChatAPISecret:  cfg.ChatAPISecret,
		MaxUploadBytes: cfg.MaxUploadBytes,
		HealthChecks: map[string]handlers.HealthCheckFunc{
			"postgres": db.PingPostgres,
			"mongo":    db.PingMongo,
			"redis":    db.PingRedis,
		},
		Logger: logger,
	}
	// Leave the interface nil when Firebase is off so the login route stays unmounted
	if firebaseApp != nil {
		deps.Firebase = firebaseApp.AuthClient
	}

	// Setup routes and dependencies
	if err := router.SetupRoutes(ctx, e, deps); err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}

	// Start server
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
