package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/buildwise/takeoff-backend/internal/handlers"
	"github.com/buildwise/takeoff-backend/internal/platform/ctxutil"
	"github.com/buildwise/takeoff-backend/internal/platform/envutil"
)

// requestTrace tags every request with an id that rides the context into
// service and repo logs.
func requestTrace() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		td := &ctxutil.TraceData{TraceID: uuid.NewString(), RequestID: reqID}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

type RouterConfig struct {
	RunsHandler     *handlers.RunsHandler
	EstimateHandler *handlers.EstimateHandler
	RuleSetsHandler *handlers.RuleSetsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(requestTrace())

	origins := strings.Split(envutil.Str("CORS_ORIGINS", "http://localhost:3000"), ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/runs", cfg.RunsHandler.Submit)
		api.GET("/runs/:id", cfg.RunsHandler.Get)
		api.POST("/runs/:id/cancel", cfg.RunsHandler.Cancel)

		api.POST("/estimates", cfg.EstimateHandler.Estimate)

		api.GET("/rulesets/current", cfg.RuleSetsHandler.GetCurrent)
		api.GET("/rulesets/:version", cfg.RuleSetsHandler.GetVersion)
		api.POST("/rulesets/:version/promote", cfg.RuleSetsHandler.Promote)
	}

	return router
}
