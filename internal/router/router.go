package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/miss-electronics/proctor-agent/internal/config"
	"github.com/miss-electronics/proctor-agent/internal/handler"
	"github.com/miss-electronics/proctor-agent/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Events  *handler.EventsHandler
}

// SetupRouter configures the local agent API. The rendering front end is
// served from a different origin, so CORS is applied to every route.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1/session")
	{
		api.POST("/initialize", handlers.Session.Initialize)
		api.POST("/start", handlers.Session.Start)
		api.GET("/state", handlers.Session.State)
		api.POST("/answer", handlers.Session.Answer)
		api.POST("/goto", handlers.Session.Goto)
		api.POST("/advance", handlers.Session.Advance)
		api.POST("/previous", handlers.Session.Previous)
		api.POST("/submit", handlers.Session.Submit)
		api.POST("/submit/cancel", handlers.Session.CancelSubmit)
		api.POST("/abandon", handlers.Session.Abandon)
	}

	ws := router.Group("/ws/v1/session")
	{
		ws.GET("/events", handlers.Events.Stream)
	}

	return router
}
