package handlers

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/batchcoord/internal/http/response"
	"github.com/yungbote/batchcoord/internal/platform/apierr"
	"github.com/yungbote/batchcoord/internal/platform/logger"
	"github.com/yungbote/batchcoord/internal/services/registry"
)

var nodeIdPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

const maxFingerprintLen = 128

type AuthHandler struct {
	log      *logger.Logger
	registry *registry.Service
}

func NewAuthHandler(log *logger.Logger, reg *registry.Service) *AuthHandler {
	return &AuthHandler{log: log.With("handler", "AuthHandler"), registry: reg}
}

type registerRequest struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	IpAddress           string `json:"ipAddress"`
	HardwareFingerprint string `json:"hardwareFingerprint"`
}

type registerResponse struct {
	NodeId string `json:"nodeId"`
	Token  string `json:"token"`
}

// Register handles POST /api/auth/register per §6 Scenario A/B.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIErr(c, h.log, apierr.BadRequest(err))
		return
	}
	if err := validateRegisterRequest(req); err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}

	node, token, err := h.registry.Register(c.Request.Context(), req.ID, req.Name, req.IpAddress, req.HardwareFingerprint)
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	response.RespondCreated(c, registerResponse{NodeId: node.NodeId, Token: token})
}

func validateRegisterRequest(req registerRequest) error {
	if !nodeIdPattern.MatchString(req.ID) {
		return apierr.BadRequest(errInvalidNodeId)
	}
	if req.HardwareFingerprint == "" || len(req.HardwareFingerprint) > maxFingerprintLen {
		return apierr.BadRequest(errInvalidFingerprint)
	}
	return nil
}

type loginRequest struct {
	NodeId              string `json:"nodeId"`
	HardwareFingerprint string `json:"hardwareFingerprint"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIErr(c, h.log, apierr.BadRequest(err))
		return
	}
	if !nodeIdPattern.MatchString(req.NodeId) || req.HardwareFingerprint == "" {
		response.RespondAPIErr(c, h.log, apierr.BadRequest(errInvalidLoginFields))
		return
	}

	token, err := h.registry.Login(c.Request.Context(), req.NodeId, req.HardwareFingerprint)
	if err != nil {
		response.RespondAPIErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, loginResponse{Token: token})
}
