package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/harmony-sds/workflow-core/internal/http/response"
	"github.com/harmony-sds/workflow-core/internal/services"
)

var errMissingUsername = errors.New("username query parameter is required")

type JobHandler struct {
	intake  services.JobIntakeService
	control services.JobControlService
}

func NewJobHandler(intake services.JobIntakeService, control services.JobControlService) *JobHandler {
	return &JobHandler{intake: intake, control: control}
}

// POST /api/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var sub services.JobSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_submission", err)
		return
	}
	job, err := h.intake.Submit(c.Request.Context(), sub)
	if err != nil {
		response.RespondWorkError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"job": job})
}

// GET /api/jobs?username=...
func (h *JobHandler) ListJobs(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_username", errMissingUsername)
		return
	}
	jobs, err := h.control.ListForUser(c.Request.Context(), username)
	if err != nil {
		response.RespondWorkError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": jobs, "count": len(jobs)})
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	limit := intQuery(c, "limit", 0)
	offset := intQuery(c, "offset", 0)
	detail, err := h.control.Get(c.Request.Context(), jobID, limit, offset)
	if err != nil {
		response.RespondWorkError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// GET /api/jobs/:id/status
func (h *JobHandler) GetJobStatus(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	snap, err := h.control.GetStatus(c.Request.Context(), jobID)
	if err != nil {
		response.RespondWorkError(c, err)
		return
	}
	response.RespondOK(c, snap)
}

// POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	var body struct {
		Message string `json:"message"`
	}
	// Body is optional; a bare POST cancels with the default message.
	_ = c.ShouldBindJSON(&body)
	job, err := h.control.Cancel(c.Request.Context(), jobID, body.Message)
	if err != nil {
		response.RespondWorkError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/pause
func (h *JobHandler) PauseJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.control.Pause(c.Request.Context(), jobID)
	if err != nil {
		response.RespondWorkError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/resume
func (h *JobHandler) ResumeJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.control.Resume(c.Request.Context(), jobID)
	if err != nil {
		response.RespondWorkError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
