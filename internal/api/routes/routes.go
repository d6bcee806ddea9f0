package routes

import (
	"rainyun-autosign/internal/api/handlers"
	"rainyun-autosign/internal/api/middleware"
	"rainyun-autosign/internal/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(cfg *config.Config) *gin.Engine {
	handlers.Init(cfg)

	router := gin.Default()

	// Global middleware
	router.Use(middleware.CORSMiddleware())
	router.Use(gin.Recovery())

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public routes (no auth required)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", handlers.Login)
		}

		// Health check
		v1.GET("/health", handlers.HealthCheck)

		// WebSocket endpoint (no auth middleware for WebSocket)
		v1.GET("/ws/status", handlers.StatusWebSocket)

		// Protected routes (auth required)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			signin := protected.Group("/signin")
			{
				signin.POST("/trigger", handlers.TriggerSignIn)
				signin.GET("/status", handlers.GetSignInStatus)
			}

			records := protected.Group("/records")
			{
				records.GET("", handlers.GetRecords)
				records.GET("/latest", handlers.GetLatestRecord)
			}

			protected.POST("/credentials/verify", handlers.VerifyCredentials)
		}
	}

	return router
}
