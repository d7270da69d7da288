package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anonto42/snapgram/backend/internal/auth"
	"github.com/anonto42/snapgram/backend/internal/chat"
	"github.com/anonto42/snapgram/backend/internal/handlers"
	"github.com/anonto42/snapgram/backend/internal/media"
	"github.com/anonto42/snapgram/backend/internal/middleware"
	"github.com/anonto42/snapgram/backend/internal/models"
	"github.com/anonto42/snapgram/backend/internal/repositories"
	"github.com/anonto42/snapgram/backend/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Deps are the connections and clients the routes are built from
type Deps struct {
	Postgres *gorm.DB
	Mongo    *mongo.Database
	Redis    *redis.Client
	Blobs    media.BlobStore

	// Firebase is nil when Firebase login is disabled
	Firebase services.IDTokenVerifier

	JWTSecret      string
	TokenTTL       time.Duration
	MediaPublicURL string
	ChatAPIKey     string
	ChatAPISecret  string
	MaxUploadBytes int64

	HealthChecks map[string]handlers.HealthCheckFunc
	Logger       *slog.Logger
}

// SetupRoutes migrates the stores, builds the services and mounts every
// route under /api
func SetupRoutes(ctx context.Context, e *echo.Echo, d Deps) error {
	// AutoMigrate PostgreSQL models
	if err := d.Postgres.WithContext(ctx).AutoMigrate(&models.Notification{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// --- Initialize Repositories ---
	userRepo := repositories.NewMongoUserRepository(d.Mongo)
	postRepo := repositories.NewMongoPostRepository(d.Mongo)
	notificationRepo := repositories.NewPostgresNotificationRepository(d.Postgres)

	if err := userRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	if err := postRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("post indexes: %w", err)
	}
	d.Logger.Info("stores ready")

	// --- Initialize Services ---
	images, err := media.NewResolver(d.Blobs, d.MediaPublicURL, d.Logger)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenIssuer(d.JWTSecret, d.TokenTTL)
	chatProvider := chat.NewRedisProvider(d.Redis, d.ChatAPIKey, d.ChatAPISecret)

	notificationService := services.NewNotificationService(notificationRepo, userRepo, d.Logger)
	userService := services.NewUserService(userRepo, postRepo, images, tokens, d.Firebase, d.Logger)
	postService := services.NewPostService(postRepo, userRepo, images, d.Logger)
	relationshipService := services.NewRelationshipService(userRepo, postRepo, images, notificationService, d.Logger)
	chatService := services.NewChatService(userRepo, chatProvider)

	requireAuth := middleware.JWTAuthMiddleware(tokens, userRepo)

	// Health check - always accessible
	e.GET("/health", handlers.NewHealthHandler(d.HealthChecks).HealthCheck)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Snapgram API"})
	})

	api := e.Group("/api")

	userGroup := api.Group("/user")
	handlers.NewAuthHandler(userService).RegisterAuthRoutes(userGroup)
	handlers.NewUserHandler(userService, relationshipService, d.MaxUploadBytes).RegisterUserRoutes(userGroup, requireAuth)
	handlers.NewChatHandler(chatService, chatProvider.APIKey()).RegisterChatRoutes(userGroup, requireAuth)

	handlers.NewPostHandler(postService, relationshipService, d.MaxUploadBytes).RegisterPostRoutes(api.Group("/post"), requireAuth)
	handlers.NewNotificationHandler(notificationService).RegisterNotificationRoutes(api.Group("/notification"), requireAuth)

	d.Logger.Info("routes configured", "firebase_login", userService.FirebaseEnabled())
	return nil
}
