package router

import (
	"log"
	"log/slog"
	"time"

	"github.com/anonto42/micro-blog/backend/internal/events"
	"github.com/anonto42/micro-blog/backend/internal/handlers"
	"github.com/anonto42/micro-blog/backend/internal/middleware"
	"github.com/anonto42/micro-blog/backend/internal/models"
	"github.com/anonto42/micro-blog/backend/internal/notifications"
	"github.com/anonto42/micro-blog/backend/internal/realtime"
	"github.com/anonto42/micro-blog/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, pgdb *gorm.DB, mgClient *mongo.Client, logger *slog.Logger, heartbeatInterval time.Duration) *realtime.Heartbeat {
	// AutoMigrate PostgreSQL models
	err := pgdb.AutoMigrate(
		&models.User{},
		&models.Like{},
		&models.Follow{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	postRepo := repositories.NewMongoPostRepository(mgClient.Database("microblog"))
	likeRepo := repositories.NewPostgresLikeRepository(pgdb)
	followRepo := repositories.NewPostgresFollowRepository(pgdb)
	notificationRepo := repositories.NewPostgresNotificationRepository(pgdb)

	// --- Real-time fan-out core ---
	// One registry per delivery channel; the registries are the only
	// components that touch the wire.
	publicFeed := realtime.NewRegistry(realtime.ChannelPublicFeed, logger)
	followingFeed := realtime.NewRegistry(realtime.ChannelFollowerFeed, logger)
	notificationFeed := realtime.NewRegistry(realtime.ChannelNotificationFeed, logger)

	// Event handler table, built once at startup and read-only thereafter.
	eventBus := events.NewBus(logger)

	feedPusher := realtime.NewFeedPusher(publicFeed, followingFeed, followRepo, logger)
	feedPusher.RegisterHandlers(eventBus)

	coordinator := notifications.NewCoordinator(notificationRepo, notificationFeed, logger)
	coordinator.RegisterHandlers(eventBus)

	heartbeat := realtime.NewHeartbeat(heartbeatInterval, logger, publicFeed, followingFeed, notificationFeed)
	heartbeat.Start()
	log.Printf("Realtime fan-out configured (heartbeat every %s).", heartbeatInterval)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(userRepo)
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	// Public feed subscription does not require authentication.
	feedHandler := handlers.NewFeedHandler(postRepo, userRepo, followRepo, likeRepo, publicFeed, followingFeed)
	feedHandler.RegisterPublicFeedRoutes(e.Group("/api/v1"))

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware())
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	// User profile routes
	userHandler := handlers.NewUserHandler(userRepo)
	userHandler.RegisterProfileRoutes(api)
	api.GET("/users/search", userHandler.SearchUsers)
	log.Println("User profile routes configured.")

	// Post routes
	postHandler := handlers.NewPostHandler(postRepo, userRepo, eventBus)
	postHandler.RegisterPostRoutes(api)
	log.Println("Post routes configured.")

	// Feed routes (paginated feed + follower-feed subscription)
	feedHandler.RegisterFeedRoutes(api)
	log.Println("Feed routes configured.")

	// Follow routes
	followHandler := handlers.NewFollowHandler(followRepo, userRepo, eventBus)
	followHandler.RegisterFollowRoutes(api)
	log.Println("Follow routes configured.")

	// Like routes
	likeHandler := handlers.NewLikeHandler(likeRepo, postRepo, userRepo, eventBus)
	likeHandler.RegisterLikeRoutes(api)
	log.Println("Like routes configured.")

	// Notification routes (queries + live subscription)
	notificationHandler := handlers.NewNotificationHandler(coordinator, notificationFeed)
	notificationHandler.RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	log.Println("All routes configured.")
	return heartbeat
}
