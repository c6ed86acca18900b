package handler

import (
	"net/http"

	apperrors "friendmap/pkg/errors"
	"friendmap/pkg/logger"

	"github.com/gin-gonic/gin"
)

var statusByCode = map[string]int{
	apperrors.ErrCodeValidation:       http.StatusBadRequest,
	apperrors.ErrCodeSelfRequest:      http.StatusBadRequest,
	apperrors.ErrCodeNotFound:         http.StatusNotFound,
	apperrors.ErrCodeAlreadyExists:    http.StatusConflict,
	apperrors.ErrCodeUnauthorized:     http.StatusUnauthorized,
	apperrors.ErrCodeForbidden:        http.StatusForbidden,
	apperrors.ErrCodePermissionDenied: http.StatusForbidden,
	apperrors.ErrCodeUnavailable:      http.StatusServiceUnavailable,
	apperrors.ErrCodeTimeout:          http.StatusGatewayTimeout,
	apperrors.ErrCodeBackend:          http.StatusInternalServerError,
}

// respondError renders err as {"error", "code"} with the status for its code.
func respondError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": apperrors.MessageOf(err), "code": code})
}

func badRequest(c *gin.Context, msg string) {
	respondError(c, apperrors.New(apperrors.ErrCodeValidation, msg))
}
