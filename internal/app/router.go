package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"gotogether/internal/auth"
	"gotogether/internal/handler"
	"gotogether/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideRequestHandler  *handler.RideRequestHandler
	GroupedRideHandler  *handler.GroupedRideHandler
	NotificationHandler *handler.NotificationHandler
	ChatHandler         *handler.ChatHandler
	DriverHandler       *handler.DriverHandler
	Verifier            auth.Verifier
	RedisClient         *redis.Client // nil disables idempotency replay
	NewRelicApp         *newrelic.Application
	AllowedOrigins      []string
	Logger              *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.Observability(deps.Logger))
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes. Everything below requires a verified caller.
	v1 := router.Group("/v1")
	v1.Use(middleware.Auth(deps.Verifier))
	v1.Use(middleware.NewRelicAttributes())
	v1.Use(middleware.Idempotency(deps.RedisClient))
	{
		requests := v1.Group("/ride-requests")
		{
			requests.POST("", deps.RideRequestHandler.Submit)
			requests.GET("/mine", deps.RideRequestHandler.ListMine)
			requests.GET("/pending", deps.RideRequestHandler.ListPending)
			requests.GET("/stats", deps.RideRequestHandler.Stats)
			requests.GET("/:id", deps.RideRequestHandler.Get)
			requests.DELETE("/:id", deps.RideRequestHandler.Cancel)
		}

		groups := v1.Group("/grouped-rides")
		{
			groups.POST("", deps.GroupedRideHandler.Create)
			groups.GET("", deps.GroupedRideHandler.List)
			groups.GET("/:id", deps.GroupedRideHandler.Get)
			groups.PUT("/:id/pricing", deps.GroupedRideHandler.UpdatePricing)
			groups.PUT("/:id/driver", deps.GroupedRideHandler.AssignDriver)
			groups.POST("/:id/start", deps.GroupedRideHandler.Start)
			groups.POST("/:id/complete", deps.GroupedRideHandler.Complete)
			groups.POST("/:id/cancel", deps.GroupedRideHandler.Cancel)
			groups.POST("/:id/ratings", deps.GroupedRideHandler.Rate)
			groups.GET("/:id/ratings", deps.GroupedRideHandler.ListRatings)
		}

		notifications := v1.Group("/notifications")
		{
			notifications.GET("", deps.NotificationHandler.List)
			notifications.POST("/:id/accept", deps.NotificationHandler.Accept)
			notifications.POST("/:id/reject", deps.NotificationHandler.Reject)
			notifications.POST("/:id/read", deps.NotificationHandler.MarkRead)
		}

		chats := v1.Group("/chat")
		{
			chats.GET("/:groupId/history", deps.ChatHandler.History)
			chats.GET("/:groupId/ws", deps.ChatHandler.Connect)
		}

		drivers := v1.Group("/drivers")
		{
			drivers.POST("", deps.DriverHandler.Register)
			drivers.GET("", deps.DriverHandler.GetAll)
			drivers.PUT("/:id/active", deps.DriverHandler.SetActive)
		}
	}

	return router
}
