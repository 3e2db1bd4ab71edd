package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/septivank/water-metering-sync/internal/batch"
	"github.com/septivank/water-metering-sync/internal/service"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
	Table   string `json:"table,omitempty"`
	Chunk   int    `json:"chunk,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
)

// invalidParam reports a malformed query parameter
type invalidParam struct {
	Name    string
	Message string
}

func (e *invalidParam) Error() string {
	return e.Name + ": " + e.Message
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var (
		paramErr *invalidParam
		fetchErr *service.SourceFetchError
		writeErr *batch.BatchWriteError
	)

	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.As(err, &paramErr):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: paramErr.Error(),
		}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "invalid request",
		}
	case errors.Is(err, service.ErrRunInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "run_in_progress",
			Message: err.Error(),
		}
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, errorPayload{
			Type:    "source_fetch_error",
			Message: fetchErr.Error(),
			Source:  fetchErr.Source,
		}
	case errors.As(err, &writeErr):
		return http.StatusInternalServerError, errorPayload{
			Type:    "batch_write_error",
			Message: writeErr.Error(),
			Table:   writeErr.Table,
			Chunk:   writeErr.Chunk,
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
