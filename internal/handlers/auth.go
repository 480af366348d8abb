package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"authgrid/api/internal/middleware"
	"authgrid/api/internal/models"
	"authgrid/api/internal/service"
)

const (
	refreshTokenCookie = "refresh_token"
	refreshCookiePath  = "/api/v1/auth/refresh"
)

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	RoleID      string `json:"roleId"`
	Status      string `json:"status"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		RoleID:      u.RoleID,
		Status:      string(u.Status),
	}
}

func (h HandlerSet) secureCookies() bool {
	return h.cfg.Environment == "production"
}

func (h HandlerSet) setAuthCookies(c *gin.Context, access, refresh string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, access, int(h.cfg.Security.JWTAccessTTL.Seconds()), "/", "", h.secureCookies(), true)
	c.SetCookie(refreshTokenCookie, refresh, int(h.cfg.Security.JWTRefreshTTL.Seconds()), refreshCookiePath, "", h.secureCookies(), true)
}

func (h HandlerSet) clearAuthCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", h.secureCookies(), true)
	c.SetCookie(refreshTokenCookie, "", -1, refreshCookiePath, "", h.secureCookies(), true)
}

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName" binding:"required"`
	RoleID      string `json:"roleId" binding:"required"`
	Status      string `json:"status"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	id, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		RoleID:      req.RoleID,
		Status:      models.UserStatus(req.Status),
	}, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, gin.H{
		"message": message(c, "auth.register.success"),
		"id":      id,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Device   string `json:"device"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	device := req.Device
	if device == "" {
		device = c.GetHeader("User-Agent")
	}

	pair, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Device:   device,
		Address:  c.ClientIP(),
	}, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.setAuthCookies(c, pair.Access, pair.Refresh)
	respond(c, http.StatusOK, gin.H{
		"message":      message(c, "auth.login.success"),
		"accessToken":  pair.Access,
		"refreshToken": pair.Refresh,
		"user":         toUserResponse(pair.User),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refreshToken prefers the cookie and falls back to the request body.
func (h HandlerSet) refreshToken(c *gin.Context) string {
	if cookie, err := c.Cookie(refreshTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (h HandlerSet) Refresh(c *gin.Context) {
	token := h.refreshToken(c)
	if token == "" {
		respondFail(c, http.StatusBadRequest, "bad_input", message(c, "error.bad_input"))
		return
	}

	access, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, access, int(h.cfg.Security.JWTAccessTTL.Seconds()), "/", "", h.secureCookies(), true)
	respond(c, http.StatusOK, gin.H{
		"message":     message(c, "auth.refresh.success"),
		"accessToken": access,
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	access := ""
	if cookie, err := c.Cookie(middleware.AccessTokenCookie); err == nil && cookie != "" {
		access = cookie
	} else if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		access = strings.TrimPrefix(header, "Bearer ")
	}
	if access == "" {
		respondFail(c, http.StatusBadRequest, "missing_token", message(c, "error.bad_input"))
		return
	}

	refresh, _ := c.Cookie(refreshTokenCookie)

	if err := h.auth.Logout(c.Request.Context(), access, refresh, requestMeta(c)); err != nil {
		respondError(c, err)
		return
	}

	h.clearAuthCookies(c)
	respond(c, http.StatusOK, gin.H{"message": message(c, "auth.logout.success")})
}

type forgotRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h HandlerSet) Forgot(c *gin.Context) {
	var req forgotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	if err := h.auth.Forgot(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": message(c, "auth.forgot.success")})
}

type verifyResetRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h HandlerSet) VerifyReset(c *gin.Context) {
	var req verifyResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	if err := h.auth.VerifyReset(c.Request.Context(), req.Token); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"valid": true})
}

type resetRequest struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

func (h HandlerSet) Reset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	if err := h.auth.Reset(c.Request.Context(), req.Token, req.Password, req.ConfirmPassword, requestMeta(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": message(c, "auth.reset.success")})
}

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondFail(c, http.StatusUnauthorized, "unauthorized", message(c, "error.unauthorized"))
		return
	}

	resp := gin.H{"user": toUserResponse(user)}
	if role, ok := middleware.CurrentRole(c); ok {
		resp["role"] = role.Name
	}
	if set, err := h.perms.EffectiveSet(c.Request.Context(), user.ID); err == nil {
		grants := make([]gin.H, 0, len(set))
		for g := range set {
			grants = append(grants, gin.H{"module": g.Module, "permission": g.Permission})
		}
		resp["grants"] = grants
	}
	respond(c, http.StatusOK, resp)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	claims, _ := middleware.Claims(c)

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	err := h.account.ChangePassword(c.Request.Context(), user.ID, claims.SessionID, req.CurrentPassword, req.Password, req.ConfirmPassword, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": message(c, "auth.reset.success")})
}

type sessionResponse struct {
	ID         string `json:"id"`
	Device     string `json:"device"`
	IPAddress  string `json:"ipAddress"`
	CreatedAt  string `json:"createdAt"`
	LastUsedAt string `json:"lastUsedAt"`
	Current    bool   `json:"current"`
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	claims, _ := middleware.Claims(c)

	sessions, err := h.account.Sessions(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{
			ID:         s.ID,
			Device:     s.Device,
			IPAddress:  s.IPAddress,
			CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
			LastUsedAt: s.LastUsedAt.UTC().Format(time.RFC3339),
			Current:    s.ID == claims.SessionID,
		})
	}
	respond(c, http.StatusOK, gin.H{"sessions": out})
}

func (h HandlerSet) CloseSession(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	if err := h.account.CloseSession(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": message(c, "crud.delete.success")})
}
