package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/planner"
)

// Dispatcher hands a fired job to whatever runs it
type Dispatcher interface {
	Dispatch(ctx context.Context, job model.PlanJob) error
}

// JobHandler handles job and event HTTP requests
type JobHandler struct {
	logger     *slog.Logger
	planner    *planner.JobPlanner
	dispatcher Dispatcher
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:     deps.Logger,
		planner:    deps.Planner,
		dispatcher: deps.Dispatcher,
	}
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	jobs := h.planner.Jobs()
	summaries := make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, newJobSummary(job))
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  summaries,
		"count": len(summaries),
	})
}

// GetJob handles GET /api/v1/jobs/:name
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.planner.Job(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, newJobSummary(job))
}

// MatchJob handles POST /api/v1/jobs/:name/match.
// It only evaluates the trigger; nothing is planned or dispatched.
func (h *JobHandler) MatchJob(c *gin.Context) {
	var req PushEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := h.planner.Evaluate(c.Param("name"), req.Event())
	if err != nil {
		if errors.Is(err, planner.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// PushEvent handles POST /api/v1/events/push
func (h *JobHandler) PushEvent(c *gin.Context) {
	var req PushEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	plan, err := h.planner.Plan(ctx, req.Event())
	if err != nil {
		h.logger.Error("Failed to plan push event",
			slog.String("branch", req.Branch),
			slog.Any("error", err),
		)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	resp := PushEventResponse{
		Plan:    plan.Metadata.Name,
		Jobs:    make([]DispatchedJob, 0, len(plan.Jobs)),
		Skipped: plan.Spec.Skipped,
	}
	if resp.Skipped == nil {
		resp.Skipped = []model.SkippedJob{}
	}

	for _, job := range plan.Jobs {
		resp.Jobs = append(resp.Jobs, DispatchedJob{ID: job.ID, Images: job.Images})
	}

	for _, job := range plan.Jobs {
		if err := h.dispatcher.Dispatch(ctx, job); err != nil {
			h.logger.Error("Failed to dispatch job",
				slog.String("job", job.ID),
				slog.Any("error", err),
			)
			resp.Error = err.Error()
			c.JSON(http.StatusBadGateway, resp)
			return
		}
		resp.Dispatched++
	}

	h.logger.Info("Push event planned",
		slog.String("plan", plan.Metadata.Name),
		slog.Int("fired", len(plan.Jobs)),
		slog.Int("skipped", len(plan.Spec.Skipped)),
	)

	c.JSON(http.StatusAccepted, resp)
}
