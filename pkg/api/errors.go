package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/agent/query"
	"github.com/codeready-toolchain/adaa/pkg/blob"
	"github.com/codeready-toolchain/adaa/pkg/services"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// httpError is an error with the status code it should be reported as.
type httpError struct {
	Code    int
	Message string
}

func (e *httpError) Error() string {
	return e.Message
}

// mapServiceError maps service-layer errors to HTTP error responses.
// A job owned by someone else is reported as not found.
func mapServiceError(err error) *httpError {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		return &httpError{Code: http.StatusBadRequest, Message: validErr.Error()}
	}
	if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrNotOwner) {
		return &httpError{Code: http.StatusNotFound, Message: "analysis not found"}
	}
	if errors.Is(err, blob.ErrNotFound) {
		return &httpError{Code: http.StatusNotFound, Message: "resource not found"}
	}
	if errors.Is(err, blob.ErrInvalidKey) {
		return &httpError{Code: http.StatusBadRequest, Message: "invalid resource reference"}
	}
	if errors.Is(err, services.ErrJobNotCompleted) {
		return &httpError{Code: http.StatusConflict, Message: "analysis is not completed"}
	}
	if errors.Is(err, services.ErrJobFinished) {
		return &httpError{Code: http.StatusConflict, Message: "analysis already finished"}
	}
	if errors.Is(err, services.ErrResultTooLarge) {
		return &httpError{Code: http.StatusUnprocessableEntity, Message: err.Error()}
	}
	if errors.Is(err, agent.ErrUnknownStage) {
		return &httpError{Code: http.StatusNotFound, Message: err.Error()}
	}
	if errors.Is(err, query.ErrEmptyQuestion) {
		return &httpError{Code: http.StatusBadRequest, Message: "question is required"}
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return &httpError{Code: http.StatusInternalServerError, Message: "internal server error"}
}

// respondError writes err as a JSON error reply.
func respondError(c *gin.Context, err error) {
	var he *httpError
	if !errors.As(err, &he) {
		he = mapServiceError(err)
	}
	c.JSON(he.Code, ErrorResponse{Error: he.Message})
}

// abortWithError writes a JSON error reply and stops the handler chain.
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{Error: message})
}
