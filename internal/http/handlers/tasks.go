package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/batchcoord/internal/data/repos/jobs"
	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/http/response"
	"github.com/yungbote/batchcoord/internal/platform/apierr"
	"github.com/yungbote/batchcoord/internal/platform/logger"
	jobsvc "github.com/yungbote/batchcoord/internal/services/jobs"
)

type TaskHandler struct {
	log  *logger.Logger
	jobs *jobsvc.Service
}

func NewTaskHandler(log *logger.Logger, jobSvc *jobsvc.Service) *TaskHandler {
	return &TaskHandler{log: log.With("handler", "TaskHandler"), jobs: jobSvc}
}

type createTaskRequest struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Parameters *string `json:"parameters,omitempty"`
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIErr(c, h.log, apierr.BadRequest(err))
		return
	}
	job, err := h.jobs.CreateJob(c.Request.Context(), req.Name, domain.JobType(req.Type), req.Parameters)
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	response.RespondCreated(c, job)
}

// Get handles GET /api/tasks/{id}.
func (h *TaskHandler) Get(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	job, err := h.jobs.GetByID(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	response.RespondOK(c, job)
}

// List handles GET /api/tasks with filters type, status, page, pageSize.
func (h *TaskHandler) List(c *gin.Context) {
	f := jobs.ListFilter{
		Status: domain.JobStatus(c.Query("status")),
		Type:   domain.JobType(c.Query("type")),
	}
	page := 1
	pageSize := 50
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.RespondAPIErr(c, h.log, apierr.BadRequest(errInvalidPagination))
			return
		}
		page = n
	}
	if v := c.Query("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.RespondAPIErr(c, h.log, apierr.BadRequest(errInvalidPagination))
			return
		}
		pageSize = n
	}
	f.Limit = pageSize
	f.Offset = (page - 1) * pageSize

	out, err := h.jobs.List(c.Request.Context(), f)
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}

type updateTaskRequest struct {
	Status        *string `json:"status,omitempty"`
	ResultMessage *string `json:"resultMessage,omitempty"`
	RowVersion    *int64  `json:"rowVersion,omitempty"`
}

// Update handles PUT /api/tasks/{id}.
func (h *TaskHandler) Update(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIErr(c, h.log, apierr.BadRequest(err))
		return
	}
	if req.Status == nil {
		job, err := h.jobs.GetByID(c.Request.Context(), id)
		if err != nil {
			response.RespondAPIErr(c, h.log, err)
			return
		}
		response.RespondOK(c, job)
		return
	}
	if req.RowVersion == nil {
		response.RespondAPIErr(c, h.log, apierr.BadRequest(errInvalidRowVersion))
		return
	}
	job, err := h.jobs.UpdateStatus(c.Request.Context(), id, domain.JobStatus(*req.Status), req.ResultMessage, *req.RowVersion)
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	response.RespondOK(c, job)
}

// Delete handles DELETE /api/tasks/{id}.
func (h *TaskHandler) Delete(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	if err := h.jobs.Delete(c.Request.Context(), id); err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apierr.BadRequest(errInvalidID)
	}
	return id, nil
}
