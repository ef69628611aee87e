package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/batchcoord/internal/http/response"
	"github.com/yungbote/batchcoord/internal/platform/apierr"
	"github.com/yungbote/batchcoord/internal/platform/ctxutil"
	"github.com/yungbote/batchcoord/internal/platform/logger"
	"github.com/yungbote/batchcoord/internal/services/registry"
)

type NodeHandler struct {
	log      *logger.Logger
	registry *registry.Service
}

func NewNodeHandler(log *logger.Logger, reg *registry.Service) *NodeHandler {
	return &NodeHandler{log: log.With("handler", "NodeHandler"), registry: reg}
}

type heartbeatRequest struct {
	NodeId string `json:"nodeId"`
}

// Heartbeat handles POST /api/nodes/heartbeat. The authenticated caller's
// token NodeID must match the body's nodeId, per §4.8's actor-mismatch
// rejection.
func (h *NodeHandler) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIErr(c, h.log, apierr.BadRequest(err))
		return
	}
	ad := ctxutil.GetAuthData(c.Request.Context())
	if ad == nil || ad.NodeID != req.NodeId {
		response.RespondAPIErr(c, h.log, apierr.Forbidden(errActorMismatch))
		return
	}
	if err := h.registry.Heartbeat(c.Request.Context(), req.NodeId); err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}

// List handles GET /api/nodes and GET /api/nodes?available=true.
func (h *NodeHandler) List(c *gin.Context) {
	if c.Query("available") == "true" {
		nodes, err := h.registry.ListAvailable(c.Request.Context())
		if err != nil {
			response.RespondAPIErr(c, h.log, err)
			return
		}
		response.RespondOK(c, nodes)
		return
	}
	nodes, err := h.registry.ListAll(c.Request.Context())
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	response.RespondOK(c, nodes)
}
