package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/batchcoord/internal/platform/logger"
	"github.com/yungbote/batchcoord/internal/realtime/bus"
)

type RealtimeHandler struct {
	log *logger.Logger
	bus bus.Bus
}

func NewRealtimeHandler(log *logger.Logger, b bus.Bus) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), bus: b}
}

// Stream handles GET /events, §6's real-time push channel. It's served as
// a server-sent-events stream rather than a raw WebSocket — both satisfy
// §4.7's "any streaming transport" contract, and SSE needs no extra
// dependency beyond the stdlib http.Flusher the teacher's SSE code already
// relies on.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	filter := bus.Filter{}
	if types := c.Query("types"); types != "" {
		filter.Types = map[bus.EventType]bool{}
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types[bus.EventType(t)] = true
			}
		}
	}

	sub := h.bus.Subscribe(filter)
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeSSE(c.Writer, string(event.Type), event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, eventName string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if eventName != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", eventName); err != nil {
			return err
		}
	}
	for _, line := range strings.Split(string(raw), "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err = fmt.Fprint(w, "\n")
	return err
}
