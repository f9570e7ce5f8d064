package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maintenance-panel-backend/internal/blob"
	"maintenance-panel-backend/internal/identity"
	"maintenance-panel-backend/internal/manager"
	"maintenance-panel-backend/internal/rules"
	"maintenance-panel-backend/internal/store"
)

// statusFor maps an error from the layers below onto an HTTP status.
func statusFor(err error) int {
	var (
		verr     *rules.ViolationError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.Is(err, rules.ErrUnauthenticated), errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, rules.ErrNoRule):
		return http.StatusForbidden
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, manager.ErrNotConfirmed):
		return http.StatusPreconditionFailed
	case errors.Is(err, store.ErrAlreadyExists), errors.Is(err, identity.ErrEmailTaken), errors.Is(err, blob.ErrExists):
		return http.StatusConflict
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, manager.ErrInvalidInput),
		errors.Is(err, store.ErrUnknownField),
		errors.Is(err, store.ErrInvalidDocument),
		errors.Is(err, store.ErrKeyImmutable),
		errors.Is(err, blob.ErrInvalidKey),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrWeakPassword):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the text shown to the caller. Internal failures are not
// described beyond "internal error".
func errorMessage(status int, err error) string {
	switch status {
	case http.StatusUnauthorized:
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return "invalid email or password"
		}
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusUnprocessableEntity:
		return "validation failed"
	case http.StatusNotFound:
		return "not found"
	case http.StatusPreconditionFailed:
		return "delete not confirmed"
	case http.StatusRequestEntityTooLarge:
		return "upload too large"
	case http.StatusInternalServerError:
		return "internal error"
	default:
		return err.Error()
	}
}

// abortJSON writes the JSON error body for err.
func (h *Handler) abortJSON(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": errorMessage(status, err)}

	var verr *rules.ViolationError
	if errors.As(err, &verr) {
		body["details"] = verr.Fields
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
