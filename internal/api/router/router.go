package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rmpcap/screener-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.DB != nil {
			if err := deps.DB.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "screener-service",
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "screener-service",
		})
	})

	screenerHandler := handler.NewScreenerHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		properties := v1.Group("/properties")
		{
			// GET /api/v1/properties - List properties with filtering and pagination
			properties.GET("", screenerHandler.ListProperties)

			// POST /api/v1/properties/:property_id/screener/run - Start a screener run
			properties.POST("/:property_id/screener/run", screenerHandler.StartRun)

			// GET /api/v1/properties/:property_id/screener/runs - Run history
			properties.GET("/:property_id/screener/runs", screenerHandler.ListRuns)

			// GET /api/v1/properties/:property_id/parcel - Stored parcel geometry
			properties.GET("/:property_id/parcel", screenerHandler.GetParcel)

			// POST /api/v1/properties/:property_id/parcel - Manual boundary override
			properties.POST("/:property_id/parcel", screenerHandler.PutParcel)

			// POST /api/v1/properties/:property_id/manual-fix - Flag for manual correction
			properties.POST("/:property_id/manual-fix", screenerHandler.RequestManualFix)
		}

		// GET /api/v1/screener/runs/:run_id - Poll run progress
		v1.GET("/screener/runs/:run_id", screenerHandler.GetRun)
	}

	return r
}
