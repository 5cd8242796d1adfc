package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eagleisbatman/agrivision-mcp-server/internal/api/handlers"
	"github.com/eagleisbatman/agrivision-mcp-server/internal/config"
	"github.com/eagleisbatman/agrivision-mcp-server/internal/mcp"
)

// bodyOverhead is the slack allowed on top of the base64 image for the
// JSON-RPC envelope and crop field
const bodyOverhead = 64 << 10

func SetupRouter(cfg *config.Config, server *mcp.Server, diagnosis handlers.DiagnosisStatus, catalog handlers.CatalogStatusProvider, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), MetricsMiddleware())

	// CORS configuration from CORS_ALLOWED_ORIGINS; "*" allows any origin
	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) == 0 || containsWildcard(cfg.CORSAllowedOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Mcp-Session-Id"}
	corsConfig.AllowCredentials = false
	router.Use(cors.New(corsConfig))

	mcpHandler := handlers.NewMCPHandler(server, maxBodyBytes(cfg.Service.MaxImageSizeMB), logger)
	healthHandler := handlers.NewHealthHandler(cfg.Service, diagnosis, catalog)

	router.POST("/mcp", RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst), mcpHandler.HandleRPC)

	router.GET("/health", healthHandler.Health)
	router.GET("/info", healthHandler.Info)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}

// maxBodyBytes allows twice the base64 size of the image ceiling so images
// just over the limit still reach the codec and get a TooLarge result
func maxBodyBytes(maxImageSizeMB float64) int64 {
	base64Ceiling := maxImageSizeMB * 1024 * 1024 * 4 / 3
	return int64(2*base64Ceiling) + bodyOverhead
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
