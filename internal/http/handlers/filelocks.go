package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/batchcoord/internal/http/response"
	"github.com/yungbote/batchcoord/internal/platform/apierr"
	"github.com/yungbote/batchcoord/internal/platform/ctxutil"
	"github.com/yungbote/batchcoord/internal/platform/logger"
	"github.com/yungbote/batchcoord/internal/services/locks"
	"github.com/yungbote/batchcoord/internal/services/registry"
)

type FileLockHandler struct {
	log   *logger.Logger
	locks *locks.Service
}

func NewFileLockHandler(log *logger.Logger, lockSvc *locks.Service) *FileLockHandler {
	return &FileLockHandler{log: log.With("handler", "FileLockHandler"), locks: lockSvc}
}

type acquireRequest struct {
	FilePath string `json:"filePath"`
	NodeId   string `json:"nodeId"`
}

// Acquire handles POST /api/filelocks/acquire.
func (h *FileLockHandler) Acquire(c *gin.Context) {
	var req acquireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIErr(c, h.log, apierr.BadRequest(err))
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		response.RespondAPIErr(c, h.log, apierr.BadRequest(errInvalidFilePath))
		return
	}
	if err := requireActor(c, req.NodeId); err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	if _, err := h.locks.TryAcquire(c.Request.Context(), req.FilePath, req.NodeId); err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}

type releaseRequest struct {
	FilePath string `json:"filePath"`
	NodeId   string `json:"nodeId"`
}

// Release handles POST /api/filelocks/release.
func (h *FileLockHandler) Release(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIErr(c, h.log, apierr.BadRequest(err))
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		response.RespondAPIErr(c, h.log, apierr.BadRequest(errInvalidFilePath))
		return
	}
	if err := requireActor(c, req.NodeId); err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	if err := h.locks.Release(c.Request.Context(), req.FilePath, req.NodeId); err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}

type resetResponse struct {
	Cleared int64 `json:"cleared"`
}

// Reset handles POST /api/filelocks/reset. RequireAdmin middleware gates
// this route; the handler itself just performs the reset.
func (h *FileLockHandler) Reset(c *gin.Context) {
	n, err := h.locks.ResetAll(c.Request.Context())
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	response.RespondOK(c, resetResponse{Cleared: n})
}

// List handles GET /api/filelocks.
func (h *FileLockHandler) List(c *gin.Context) {
	rows, err := h.locks.ListAll(c.Request.Context())
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	response.RespondOK(c, rows)
}

// requireActor implements §4.8's actor-mismatch rejection: the nodeId named
// in the request body must equal the authenticated caller's token NodeID,
// unless the caller holds the admin role.
func requireActor(c *gin.Context, nodeId string) error {
	ad := ctxutil.GetAuthData(c.Request.Context())
	if ad == nil {
		return apierr.Unauthorized(errActorMismatch)
	}
	if ad.Role == registry.RoleAdmin {
		return nil
	}
	if ad.NodeID != nodeId {
		return apierr.Forbidden(errActorMismatch)
	}
	return nil
}
