// Package server exposes job matching and push-event intake over HTTP.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sourceplane/litejob/internal/planner"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger     *slog.Logger
	Planner    *planner.JobPlanner
	Dispatcher Dispatcher
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "litejob",
			"jobs":    len(deps.Planner.Jobs()),
		})
	})

	jobHandler := NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:name", jobHandler.GetJob)
			jobs.POST("/:name/match", jobHandler.MatchJob)
		}

		v1.POST("/events/push", jobHandler.PushEvent)
	}

	return r
}
