package api

import (
	"errors"
	"log/slog"
	"net/http"

	"finamily/config"
	"finamily/importer"
	"finamily/models"

	"github.com/gin-gonic/gin"
)

// ErrorResponse error body
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// CountResponse body of bulk operations
type CountResponse struct {
	Count   int64  `json:"count"`
	Message string `json:"message"`
}

// MessageResponse plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// Error writes {"detail": message} with code.
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, ErrorResponse{Detail: message})
}

// BadRequest 400
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// NotFound 404
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// InternalError 500
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// SafeErrorMessage hides internal error details in release mode.
func SafeErrorMessage(err error, fallback string) string {
	return config.SafeErrorMessage(err, fallback)
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, importer.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, importer.ErrMalformedFile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrUnknownReference), errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrIncompatibleCategory), errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Fail writes err with its mapped status. Internal errors are logged and
// reported as fallback in release mode.
func Fail(c *gin.Context, err error, fallback string) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), fallback, "path", c.FullPath(), "error", err)
		InternalError(c, SafeErrorMessage(err, fallback))
		return
	}
	Error(c, status, err.Error())
}
