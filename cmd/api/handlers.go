package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/compiler"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/logging"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/tracker"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

const serviceName = "video-compilation"

// Submitter accepts compilation requests
type Submitter interface {
	Submit(ctx context.Context, req *models.CompilationRequest) (string, error)
}

// ToolChecker reports whether the encoder binary can be executed
type ToolChecker interface {
	Available(ctx context.Context) error
}

// Pinger reports whether a backing service answers
type Pinger interface {
	Ping(ctx context.Context) error
}

type API struct {
	compiler      Submitter
	tracker       tracker.Tracker
	ffmpeg        ToolChecker
	storage       Pinger // optional
	logger        *logging.Logger
	reportUnknown bool
}

type statusResponse struct {
	JobID     string           `json:"jobId"`
	Status    models.JobStatus `json:"status"`
	Message   string           `json:"message"`
	Progress  int              `json:"progress"`
	VideoURL  string           `json:"videoUrl,omitempty"`
	Error     string           `json:"error,omitempty"`
	UpdatedAt *time.Time       `json:"updatedAt,omitempty"`
	Known     bool             `json:"known"`
}

func newStatusResponse(state models.JobState, known bool) statusResponse {
	resp := statusResponse{
		JobID:    state.JobID,
		Status:   state.Status,
		Message:  state.Message,
		Progress: state.Progress,
		VideoURL: state.VideoURL,
		Error:    state.Error,
		Known:    known,
	}
	if !state.UpdatedAt.IsZero() {
		t := state.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

type statusUpdateRequest struct {
	JobID    string           `json:"jobId"`
	Status   models.JobStatus `json:"status"`
	Message  string           `json:"message"`
	Progress int              `json:"progress"`
	VideoURL string           `json:"videoUrl"`
	Error    string           `json:"error"`
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	ffmpeg := "available"
	if err := api.ffmpeg.Available(ctx); err != nil {
		ffmpeg = "missing"
		api.logger.WithError(err).Warn("ffmpeg health check failed")
	}

	resp := gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"ffmpeg":    ffmpeg,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if api.storage != nil {
		resp["storage"] = "reachable"
		if err := api.storage.Ping(ctx); err != nil {
			resp["storage"] = "unreachable"
			api.logger.WithError(err).Warn("storage health check failed")
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Create compilation endpoint
func (api *API) createCompilation(c *gin.Context) {
	var req models.CompilationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request. Required: videoId, clips array with videoUrl for each clip",
		})
		return
	}

	jobID, err := api.compiler.Submit(c.Request.Context(), &req)
	if err != nil {
		switch {
		case models.IsInvalidRequest(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, compiler.ErrPoolSaturated), errors.Is(err, compiler.ErrPoolClosed):
			c.Header("Retry-After", "30")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Compilation service is busy, try again later"})
		default:
			api.logger.WithVideoID(req.VideoID).WithError(err).Error("Failed to submit compilation")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create compilation"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"jobId": jobID})
}

// Get job status endpoint
func (api *API) getStatus(c *gin.Context) {
	jobID := c.Query("jobId")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job ID is required"})
		return
	}

	state, err := api.tracker.Get(c.Request.Context(), jobID)
	if err != nil {
		api.logger.WithJobID(jobID).WithError(err).Error("Failed to read job status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get status"})
		return
	}

	if state == nil {
		if api.reportUnknown {
			c.JSON(http.StatusNotFound, gin.H{"jobId": jobID, "status": "unknown", "known": false})
			return
		}
		c.JSON(http.StatusOK, newStatusResponse(models.PlaceholderState(jobID), false))
		return
	}

	c.JSON(http.StatusOK, newStatusResponse(*state, true))
}

// Update job status endpoint, used by external producers of job state
func (api *API) updateStatus(c *gin.Context) {
	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status payload"})
		return
	}
	if req.JobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job ID is required"})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of processing, completed, failed"})
		return
	}
	if req.Progress < 0 || req.Progress > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "progress must be between 0 and 100"})
		return
	}

	err := api.tracker.Update(c.Request.Context(), models.JobState{
		JobID:    req.JobID,
		Status:   req.Status,
		Message:  req.Message,
		Progress: req.Progress,
		VideoURL: req.VideoURL,
		Error:    req.Error,
	})
	if errors.Is(err, tracker.ErrJobFinished) {
		c.JSON(http.StatusConflict, gin.H{"error": "Job has already finished"})
		return
	}
	if err != nil {
		api.logger.WithJobID(req.JobID).WithError(err).Error("Failed to update job status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
