package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"webdlp/internal/file"
	"webdlp/internal/job"
)

const healthMessage = "YT-API running"

type createJobRequest struct {
	URL    string `json:"url" binding:"required"`
	Format string `json:"format"`
}

type createJobResponse struct {
	JobID  string    `json:"job_id"`
	Status job.State `json:"status"`
}

type API struct {
	manager     *job.Manager
	artifactDir string
	limiter     *RateLimiter
}

// NewAPI builds the HTTP surface over the job manager. A nil limiter
// disables admission control.
func NewAPI(manager *job.Manager, artifactDir string, limiter *RateLimiter) *API {
	return &API{manager: manager, artifactDir: artifactDir, limiter: limiter}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	submit := []gin.HandlerFunc{a.CreateJob}
	if a.limiter != nil {
		submit = append([]gin.HandlerFunc{a.limiter.Middleware()}, submit...)
	}

	router.GET("/", a.Health)
	router.POST("/request", submit...)
	router.GET("/status", a.GetStatus)
	router.GET("/result", a.GetResult)
	router.GET("/stats", a.GetStats)
}

// Health answers keep-alive pings.
func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": healthMessage})
}

// CreateJob validates a conversion request and queues it.
func (a *API) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("invalid create job request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if !validSourceURL(req.URL) {
		log.Warn().Str("url", req.URL).Msg("rejecting unsupported url")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url: only YouTube links are supported"})
		return
	}
	format, ok := parseFormat(req.Format)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid format: use 'mp3' or 'mp4'"})
		return
	}

	id, err := a.manager.Submit(strings.TrimSpace(req.URL), format)
	if err != nil {
		log.Error().Err(err).Msg("failed to create job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create download job"})
		return
	}
	log.Info().Str("job_id", id).Str("url", req.URL).Str("format", string(format)).Msg("job created")
	c.JSON(http.StatusOK, createJobResponse{JobID: id, Status: job.StateQueued})
}

// GetStatus returns state and progress of a job.
func (a *API) GetStatus(c *gin.Context) {
	id := c.Query("id")
	status, err := a.manager.Status(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetResult streams the artifact of a finished job. The file is checked
// here, at read time: a finished job whose file has been removed reports 404.
func (a *API) GetResult(c *gin.Context) {
	id := c.Query("id")
	rec, err := a.manager.Result(id)
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	case errors.Is(err, job.ErrNotReady):
		c.JSON(http.StatusBadRequest, gin.H{"error": "not_ready", "status": rec.State})
		return
	case err != nil:
		log.Error().Str("job_id", id).Err(err).Msg("finished job has no artifact")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "file not available"})
		return
	}

	name := filepath.Base(rec.Artifact)
	path := filepath.Join(a.artifactDir, name)
	present, err := file.IsRegular(path)
	if err != nil || !present {
		log.Warn().Str("job_id", id).Str("file", name).Err(err).Msg("artifact missing on disk")
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	log.Info().Str("job_id", id).Str("file", name).Msg("serving artifact")
	c.Header("Content-Type", mediaType(rec.Format))
	c.FileAttachment(path, name)
}

// GetStats reports queue and registry occupancy.
func (a *API) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, a.manager.Stats())
}

func mediaType(f job.Format) string {
	if f == job.FormatAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}
