package api

import (
	"taskhub/internal/middleware"
	"taskhub/internal/models"
	"taskhub/internal/services"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(handlers *Handlers, jwtService *services.JWTService, devTokenMint bool) *gin.Engine {
	router := gin.Default()

	// Add CORS middleware
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		if devTokenMint {
			api.POST("/auth/token", handlers.MintTokenHandler)
		}

		tasks := api.Group("/tasks")
		tasks.Use(middleware.AuthenticateUser(jwtService))
		{
			tasks.POST("", handlers.CreateTaskHandler)
			tasks.GET("", handlers.ListTasksHandler)
			tasks.GET("/available", handlers.ListAvailableTasksHandler)
			tasks.GET("/:id", handlers.GetTaskHandler)
			tasks.GET("/:id/events", handlers.GetTaskEventsHandler)
			tasks.POST("/:id/claim", handlers.ClaimTaskHandler)
			tasks.POST("/:id/complete", handlers.CompleteTaskHandler)

			admin := tasks.Group("")
			admin.Use(middleware.RequireRole(models.RoleManager))
			{
				admin.POST("/:id/reassign", handlers.ReassignTaskHandler)
				admin.POST("/:id/cancel", handlers.CancelTaskHandler)
			}
		}

		advisor := api.Group("/advisor")
		advisor.Use(middleware.AuthenticateUser(jwtService))
		{
			advisor.POST("/suggest", handlers.SuggestHandler)
		}
	}

	// Realtime push; authentication happens in-protocol via $AUTH
	router.GET("/ws", handlers.HandleWebSocket)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return router
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
