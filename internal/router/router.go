package router

import (
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/petertzy/molthub/backend/internal/events"
	"github.com/petertzy/molthub/backend/internal/handlers"
	"github.com/petertzy/molthub/backend/internal/middleware"
	"github.com/petertzy/molthub/backend/internal/models"
	"github.com/petertzy/molthub/backend/internal/queue"
	"github.com/petertzy/molthub/backend/internal/realtime"
	"github.com/petertzy/molthub/backend/internal/repositories"
)

// Dependencies carries everything the routes need
type Dependencies struct {
	DB         *gorm.DB
	Hub        *realtime.Hub
	Verifier   *middleware.JWTVerifier
	Dispatcher queue.Dispatcher
	QueueAdmin *queue.Admin // nil in direct-dispatch mode
	Logger     *zap.Logger
}

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies) error {
	// AutoMigrate PostgreSQL models
	err := deps.DB.AutoMigrate(
		&models.Notification{},
		&models.Preference{},
		&models.ForumSubscription{},
		&models.ThreadSubscription{},
	)
	if err != nil {
		return err
	}
	deps.Logger.Info("PostgreSQL auto-migrations completed")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	notificationRepo := repositories.NewPostgresNotificationRepository(deps.DB)
	preferenceRepo := repositories.NewPostgresPreferenceRepository(deps.DB)
	subscriptionRepo := repositories.NewPostgresSubscriptionRepository(deps.DB)

	// --- Realtime endpoint (authenticates inside the handshake) ---
	realtimeHandler := realtime.NewHandler(deps.Hub, deps.Verifier, deps.Logger)
	realtimeHandler.RegisterRealtimeRoutes(e)
	deps.Logger.Info("realtime routes configured")

	// --- Protected routes (require a bearer access token) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(deps.Verifier))

	notificationHandler := handlers.NewNotificationHandler(notificationRepo, preferenceRepo)
	notificationHandler.RegisterNotificationRoutes(api)
	deps.Logger.Info("notification routes configured")

	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionRepo)
	subscriptionHandler.RegisterSubscriptionRoutes(api)
	deps.Logger.Info("subscription routes configured")

	// --- Internal service-to-service routes ---
	fanout := events.NewFanout(subscriptionRepo, preferenceRepo, deps.Dispatcher, deps.Logger)
	internal := e.Group("/internal")

	eventHandler := handlers.NewEventHandler(fanout, deps.Dispatcher)
	eventHandler.RegisterEventRoutes(internal)
	deps.Logger.Info("event intake routes configured")

	queueHandler := handlers.NewQueueHandler(deps.QueueAdmin)
	queueHandler.RegisterQueueRoutes(internal)
	deps.Logger.Info("queue admin routes configured")

	return nil
}
