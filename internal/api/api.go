// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/api/handlers"
	"github.com/andresuchdata/reorderpoint/internal/api/middleware"
	"github.com/andresuchdata/reorderpoint/internal/drive"
	"github.com/andresuchdata/reorderpoint/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	ReorderPoints *service.ReorderPointService
	Facts         *service.FactService
	Backfill      handlers.BatchRunner
	Drive         *drive.Handler
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	apiGroup := router.Group("/api/v1")
	apiGroup.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if services == nil {
		return router
	}

	if services.ReorderPoints != nil {
		rpHandler := handlers.NewReorderPointHandler(services.ReorderPoints, services.Backfill)
		rpGroup := apiGroup.Group("/reorder_points")
		{
			rpGroup.GET("", rpHandler.List)
			rpGroup.POST("/recompute", rpHandler.RecomputeAll)
			rpGroup.GET("/:product_id", rpHandler.Get)
			rpGroup.POST("/:product_id/recompute", rpHandler.Recompute)
		}
		apiGroup.GET("/products/:product_id/rolling_stats", rpHandler.RollingStats)

		if services.Facts != nil {
			factHandler := handlers.NewFactHandler(services.Facts, services.ReorderPoints)
			apiGroup.POST("/facts", factHandler.Append)
			apiGroup.POST("/facts/batch", factHandler.AppendBatch)
		}
	}

	if services.Drive != nil {
		services.Drive.RegisterRoutes(apiGroup)
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
