package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"authgrid/api/internal/audit"
	"authgrid/api/internal/i18n"
	"authgrid/api/internal/middleware"
	"authgrid/api/internal/repository"
	"authgrid/api/internal/security"
	"authgrid/api/internal/service"
)

// locale picks the primary subtag of the first Accept-Language entry.
func locale(c *gin.Context) string {
	header := c.GetHeader("Accept-Language")
	if header == "" {
		return ""
	}
	first := strings.TrimSpace(strings.SplitN(header, ",", 2)[0])
	if i := strings.IndexAny(first, "-;"); i >= 0 {
		first = first[:i]
	}
	return strings.ToLower(first)
}

func message(c *gin.Context, key string) string {
	return i18n.Translate(key, locale(c))
}

// serviceError maps a service-layer sentinel to an HTTP status, a stable
// machine-readable code, and a message key.
func serviceError(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrBadInput), errors.Is(err, security.ErrWeakInput):
		return http.StatusBadRequest, "bad_input", "error.bad_input"
	case errors.Is(err, service.ErrPasswordMismatch):
		return http.StatusBadRequest, "password_mismatch", "auth.reset.mismatch"
	case errors.Is(err, service.ErrInvalidResetToken):
		return http.StatusBadRequest, "invalid_reset_token", "auth.reset.invalid"
	case errors.Is(err, service.ErrBadCredentials):
		return http.StatusUnauthorized, "bad_credentials", "auth.login.bad_credentials"
	case errors.Is(err, service.ErrRevoked):
		return http.StatusUnauthorized, "token_revoked", "error.unauthorized"
	case errors.Is(err, service.ErrNoSession):
		return http.StatusUnauthorized, "session_not_found", "error.unauthorized"
	case errors.Is(err, security.ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired", "error.unauthorized"
	case errors.Is(err, security.ErrTokenMalformed),
		errors.Is(err, security.ErrBadSignature),
		errors.Is(err, security.ErrWrongTokenKind):
		return http.StatusUnauthorized, "invalid_token", "error.unauthorized"
	case errors.Is(err, service.ErrSuspended):
		return http.StatusForbidden, "user_suspended", "auth.login.suspended"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found", "error.not_found"
	case errors.Is(err, service.ErrDuplicate), errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, "conflict", "error.conflict"
	case errors.Is(err, service.ErrDependency):
		return http.StatusServiceUnavailable, "dependency_unavailable", "error.internal"
	default:
		return http.StatusInternalServerError, "internal_error", "error.internal"
	}
}

// respond writes body with the success flag set. Every structured response
// carries the flag.
func respond(c *gin.Context, status int, body gin.H) {
	body["success"] = true
	c.JSON(status, body)
}

func respondFail(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{"success": false, "error": code, "message": msg})
}

func respondError(c *gin.Context, err error) {
	status, code, key := serviceError(err)
	respondFail(c, status, code, message(c, key))
}

// requestMeta builds the audit metadata for the current request. The actor
// is filled in from the gate's principal when one is present.
func requestMeta(c *gin.Context) audit.Meta {
	meta := audit.Meta{
		IPAddress: c.ClientIP(),
		Endpoint:  c.Request.Method + " " + c.FullPath(),
	}
	if user, ok := middleware.CurrentUser(c); ok {
		meta.ActorID = user.ID
	}
	if requestID := c.Writer.Header().Get("X-Request-Id"); requestID != "" {
		meta.Context = map[string]any{"request_id": requestID}
	}
	return meta
}
