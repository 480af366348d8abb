package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"authgrid/api/internal/database"
	"authgrid/api/internal/models"
	"authgrid/api/internal/repository"
	"authgrid/api/internal/security"
)

// AccessTokenCookie carries the access token on browser clients. API
// clients may send a bearer header instead; the cookie wins when both are
// present.
const AccessTokenCookie = "access_token"

const (
	ctxKeyUser   = "current_user"
	ctxKeyRole   = "current_role"
	ctxKeyClaims = "access_claims"
	ctxKeyToken  = "access_token"
)

// UserLoader, RoleLoader, SessionChecker and Revoker are the slices of the
// repository and revocation surfaces the gate needs.
type UserLoader interface {
	GetByID(ctx context.Context, q database.Queryer, id string) (models.User, error)
}

type RoleLoader interface {
	GetByID(ctx context.Context, q database.Queryer, id string) (models.Role, error)
}

type SessionChecker interface {
	GetActiveByID(ctx context.Context, q database.Queryer, id string) (models.Session, error)
	Touch(ctx context.Context, q database.Queryer, sessionID string) error
}

type Revoker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// abort ends the request with the standard failure envelope.
func abort(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": code})
}

// Auth is the authorization gate: it admits a request only when it carries
// a live, unrevoked access token bound to an active session of an active
// user. Revocation checks fail closed.
func Auth(db database.Queryer, codec *security.TokenCodec, revoker Revoker, users UserLoader, roles RoleLoader, sessions SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			abort(c, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := codec.ParseAccess(tokenStr)
		if err != nil {
			if errors.Is(err, security.ErrTokenExpired) {
				abort(c, http.StatusUnauthorized, "token_expired")
				return
			}
			abort(c, http.StatusUnauthorized, "invalid_token")
			return
		}

		revoked, err := revoker.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			abort(c, http.StatusServiceUnavailable, "auth_unavailable")
			return
		}
		if revoked {
			abort(c, http.StatusUnauthorized, "token_revoked")
			return
		}

		session, err := sessions.GetActiveByID(c.Request.Context(), db, claims.SessionID)
		if err != nil {
			abort(c, http.StatusUnauthorized, "session_not_found")
			return
		}
		if session.UserID != claims.UserID {
			abort(c, http.StatusUnauthorized, "session_mismatch")
			return
		}

		user, err := users.GetByID(c.Request.Context(), db, claims.UserID)
		if err != nil {
			abort(c, http.StatusUnauthorized, "user_not_found")
			return
		}
		if user.Status != models.UserStatusActive {
			abort(c, http.StatusForbidden, "user_suspended")
			return
		}

		_ = sessions.Touch(c.Request.Context(), db, session.ID)

		c.Set(ctxKeyToken, tokenStr)
		c.Set(ctxKeyClaims, *claims)
		c.Set(ctxKeyUser, user)

		if role, err := roles.GetByID(c.Request.Context(), db, user.RoleID); err == nil {
			c.Set(ctxKeyRole, role)
		} else if !errors.Is(err, repository.ErrRoleNotFound) {
			abort(c, http.StatusServiceUnavailable, "auth_unavailable")
			return
		}

		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// CurrentUser returns the authenticated principal set by Auth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	val, exists := c.Get(ctxKeyUser)
	if !exists {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}

// CurrentRole returns the principal's role when it resolved to a live row.
func CurrentRole(c *gin.Context) (models.Role, bool) {
	val, exists := c.Get(ctxKeyRole)
	if !exists {
		return models.Role{}, false
	}
	role, ok := val.(models.Role)
	return role, ok
}

// Claims returns the parsed access token claims set by Auth.
func Claims(c *gin.Context) (security.AccessClaims, bool) {
	val, exists := c.Get(ctxKeyClaims)
	if !exists {
		return security.AccessClaims{}, false
	}
	claims, ok := val.(security.AccessClaims)
	return claims, ok
}
