package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/batchcoord/internal/platform/apierr"
	"github.com/yungbote/batchcoord/internal/platform/logger"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error     APIError `json:"error"`
	TraceID   string   `json:"trace_id,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error:     APIError{Message: msg, Code: code},
		TraceID:   c.GetString("trace_id"),
		RequestID: c.GetString("request_id"),
	})
}

// RespondAPIErr implements §7's "map once" rule: it is the single place an
// *apierr.Error is turned into an HTTP response. Anything that isn't an
// *apierr.Error is logged at Error level with the request's correlation id
// and folded to a generic 500 — the caller never sees the underlying cause.
func RespondAPIErr(c *gin.Context, log *logger.Logger, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		RespondError(c, apiErr.Status, apiErr.Code, apiErr)
		return
	}
	requestID := c.GetString("request_id")
	if log != nil {
		log.Error("unhandled internal error", "request_id", requestID, "error", err)
	}
	c.JSON(http.StatusInternalServerError, ErrorEnvelope{
		Error:     APIError{Message: "internal error, correlation id " + requestID, Code: "internal"},
		TraceID:   c.GetString("trace_id"),
		RequestID: requestID,
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
