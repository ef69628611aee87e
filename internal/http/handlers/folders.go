package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/http/response"
	"github.com/yungbote/batchcoord/internal/platform/apierr"
	"github.com/yungbote/batchcoord/internal/platform/logger"
	foldersvc "github.com/yungbote/batchcoord/internal/services/folders"
	jobsvc "github.com/yungbote/batchcoord/internal/services/jobs"
)

type FolderHandler struct {
	log     *logger.Logger
	folders *foldersvc.Service
	jobs    *jobsvc.Service
}

func NewFolderHandler(log *logger.Logger, folderSvc *foldersvc.Service, jobSvc *jobsvc.Service) *FolderHandler {
	return &FolderHandler{log: log.With("handler", "FolderHandler"), folders: folderSvc, jobs: jobSvc}
}

// List handles GET /api/tasks/{id}/folders.
func (h *FolderHandler) List(c *gin.Context) {
	taskId, err := parseID(c.Param("id"))
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	if _, err := h.jobs.GetByID(c.Request.Context(), taskId); err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	rows, err := h.folders.ListByTask(c.Request.Context(), taskId)
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	response.RespondOK(c, rows)
}

type createFolderRequest struct {
	FolderPath string `json:"folderPath"`
	FolderName string `json:"folderName"`
}

// Create handles POST /api/tasks/{id}/folders.
func (h *FolderHandler) Create(c *gin.Context) {
	taskId, err := parseID(c.Param("id"))
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	if _, err := h.jobs.GetByID(c.Request.Context(), taskId); err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIErr(c, h.log, apierr.BadRequest(err))
		return
	}
	row, err := h.folders.Create(c.Request.Context(), taskId, req.FolderPath, req.FolderName)
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	response.RespondCreated(c, row)
}

type updateFolderRequest struct {
	Status           *string  `json:"status,omitempty"`
	AssignedNodeId   *string  `json:"assignedNodeId,omitempty"`
	AssignedNodeName *string  `json:"assignedNodeName,omitempty"`
	Progress         *float64 `json:"progress,omitempty"`
	ErrorMessage     *string  `json:"errorMessage,omitempty"`
	OutputPath       *string  `json:"outputPath,omitempty"`
}

// Update handles PUT /api/folders/{id}.
func (h *FolderHandler) Update(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	var req updateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIErr(c, h.log, apierr.BadRequest(err))
		return
	}

	in := foldersvc.UpdateInput{
		AssignedNodeId:   req.AssignedNodeId,
		AssignedNodeName: req.AssignedNodeName,
		Progress:         req.Progress,
		ErrorMessage:     req.ErrorMessage,
		OutputPath:       req.OutputPath,
	}
	if req.Status != nil {
		status := domain.FolderStatus(*req.Status)
		switch status {
		case domain.FolderStatusPending, domain.FolderStatusInProgress, domain.FolderStatusCompleted, domain.FolderStatusFailed:
			in.Status = &status
		default:
			response.RespondAPIErr(c, h.log, apierr.BadRequest(errInvalidFolderStatus))
			return
		}
	}

	row, err := h.folders.Update(c.Request.Context(), id, in)
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}

	if in.Status != nil && in.Status.Terminal() {
		if _, err := h.jobs.CheckAndComplete(c.Request.Context(), row.TaskId); err != nil {
			h.log.Warn("completion aggregation failed", "task_id", row.TaskId, "error", err)
		}
	}
	response.RespondOK(c, row)
}
