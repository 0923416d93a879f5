package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/harmony-sds/workflow-core/internal/domain/work"
	"github.com/harmony-sds/workflow-core/internal/http/response"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
	"github.com/harmony-sds/workflow-core/internal/services"
)

var (
	errMissingServiceID = errors.New("serviceID query parameter is required")
	errUpdateQueueFull  = errors.New("the update queue is full; retry shortly")
)

// WorkHandler serves the worker-facing endpoints: claiming the next ready
// item for a service and reporting results back.
type WorkHandler struct {
	log      *logger.Logger
	dispatch services.DispatchService
	updater  services.WorkUpdateService
	queue    services.UpdateQueue
}

func NewWorkHandler(baseLog *logger.Logger, dispatch services.DispatchService, updater services.WorkUpdateService, queue services.UpdateQueue) *WorkHandler {
	return &WorkHandler{
		log:      baseLog.With("handler", "work"),
		dispatch: dispatch,
		updater:  updater,
		queue:    queue,
	}
}

type workItemPayload struct {
	*work.WorkItem
	Operation datatypes.JSON `json:"operation,omitempty"`
}

type workResponse struct {
	WorkItem       workItemPayload `json:"workItem"`
	MaxCmrGranules *int            `json:"maxCmrGranules,omitempty"`
}

// GET /api/service/work?serviceID=...&podName=...
func (h *WorkHandler) GetWork(c *gin.Context) {
	serviceID := strings.TrimSpace(c.Query("serviceID"))
	if serviceID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_service_id", errMissingServiceID)
		return
	}
	podName := strings.TrimSpace(c.Query("podName"))

	handle, err := h.dispatch.GetWork(c.Request.Context(), serviceID, podName)
	if err != nil {
		response.RespondWorkError(c, err)
		return
	}
	if handle == nil {
		// No ready work; workers poll, so this is the common case.
		c.Status(http.StatusNotFound)
		return
	}
	response.RespondOK(c, workResponse{
		WorkItem:       workItemPayload{WorkItem: handle.Item, Operation: handle.Operation},
		MaxCmrGranules: handle.MaxCmrGranules,
	})
}

// workUpdateRequest is the result payload a worker reports for an item. The
// duration is the worker's own runtime in milliseconds.
type workUpdateRequest struct {
	Status          string   `json:"status" binding:"required"`
	Hits            *int     `json:"hits"`
	Results         []string `json:"results"`
	ScrollID        string   `json:"scrollID"`
	ErrorMessage    string   `json:"errorMessage"`
	Duration        int64    `json:"duration"`
	TotalItemsSize  *float64 `json:"totalItemsSize"`
	OutputItemSizes []int64  `json:"outputItemSizes"`
}

func (r workUpdateRequest) toUpdate() (work.WorkItemUpdate, error) {
	d := time.Duration(r.Duration) * time.Millisecond
	switch work.WorkItemStatus(strings.ToLower(strings.TrimSpace(r.Status))) {
	case work.ItemSuccessful:
		return work.SuccessUpdate{
			Hits:            r.Hits,
			Results:         r.Results,
			ScrollID:        r.ScrollID,
			Duration:        d,
			TotalItemsSize:  r.TotalItemsSize,
			OutputItemSizes: r.OutputItemSizes,
		}, nil
	case work.ItemFailed:
		return work.FailureUpdate{Message: r.ErrorMessage, Duration: d}, nil
	case work.ItemWarning:
		return work.WarningUpdate{Message: r.ErrorMessage, Results: r.Results, Duration: d}, nil
	default:
		return nil, work.NewError(work.CodeValidation, "work.update",
			"status must be one of successful, failed, warning", nil)
	}
}

// PUT /api/service/work/:id
func (h *WorkHandler) UpdateWork(c *gin.Context) {
	workItemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_work_item_id", err)
		return
	}
	var req workUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_update", err)
		return
	}
	u, err := req.toUpdate()
	if err != nil {
		response.RespondWorkError(c, err)
		return
	}
	if err := u.Validate(); err != nil {
		response.RespondWorkError(c, err)
		return
	}
	if err := h.updater.Precheck(c.Request.Context(), workItemID); err != nil {
		response.RespondWorkError(c, err)
		return
	}
	if !h.queue.Enqueue(workItemID, u) {
		response.RespondError(c, http.StatusServiceUnavailable, "update_queue_full", errUpdateQueueFull)
		return
	}
	c.Status(http.StatusNoContent)
}
