package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/batchcoord/internal/platform/logger"
	"github.com/yungbote/batchcoord/internal/realtime/bus"
)

// Pinger abstracts the store's liveness check.
type Pinger interface {
	Ping() error
}

type HealthHandler struct {
	log   *logger.Logger
	store Pinger
	bus   bus.Bus
}

func NewHealthHandler(log *logger.Logger, store Pinger, b bus.Bus) *HealthHandler {
	return &HealthHandler{log: log.With("handler", "HealthHandler"), store: store, bus: b}
}

type healthResponse struct {
	Status             string `json:"status"`
	StoreOK             bool   `json:"storeOK"`
	DroppedSubscribers  int64  `json:"droppedSubscribers"`
}

// Get handles GET /api/health. Supplements §6's plain `{status:"Healthy"}`
// contract with storeOK and droppedSubscribers (SPEC_FULL Part D) so
// operators can distinguish "up" from "up but the store is unreachable" or
// "up but silently dropping event subscribers".
func (h *HealthHandler) Get(c *gin.Context) {
	storeOK := true
	if h.store != nil {
		if err := h.store.Ping(); err != nil {
			storeOK = false
		}
	}
	var dropped int64
	if h.bus != nil {
		dropped = h.bus.DroppedSubscribers()
	}

	status := "Healthy"
	code := http.StatusOK
	if !storeOK {
		status = "Unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, healthResponse{Status: status, StoreOK: storeOK, DroppedSubscribers: dropped})
}
