package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"authgrid/api/internal/models"
)

// PermissionChecker is satisfied by *service.PermissionService.
type PermissionChecker interface {
	Allows(ctx context.Context, userID string, grant models.Grant) (bool, error)
}

// RequireRole admits only principals whose role name matches one of names,
// case-insensitively. It must run after Auth.
func RequireRole(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		role, ok := CurrentRole(c)
		if !ok || role.Status != models.RoleStatusActive {
			abort(c, http.StatusForbidden, "forbidden")
			return
		}

		for _, name := range names {
			if strings.EqualFold(role.Name, name) {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "forbidden")
	}
}

// RequirePermission admits only principals whose effective set contains the
// (module, permission) pair. It must run after Auth.
func RequirePermission(checker PermissionChecker, module, permission string) gin.HandlerFunc {
	grant := models.Grant{Module: module, Permission: permission}
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		allowed, err := checker.Allows(c.Request.Context(), user.ID, grant)
		if err != nil {
			abort(c, http.StatusInternalServerError, "permission_check_failed")
			return
		}
		if !allowed {
			abort(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}
