package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"authgrid/api/internal/models"
	"authgrid/api/internal/service"
)

func (h HandlerSet) ListUsers(c *gin.Context) {
	users, err := h.account.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	respond(c, http.StatusOK, gin.H{"users": out})
}

func (h HandlerSet) GetUser(c *gin.Context) {
	user, err := h.account.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": toUserResponse(user)})
}

type updateUserRequest struct {
	DisplayName *string `json:"displayName"`
	RoleID      *string `json:"roleId"`
	Status      *string `json:"status"`
}

func (h HandlerSet) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	in := service.UpdateUserInput{
		DisplayName: req.DisplayName,
		RoleID:      req.RoleID,
	}
	if req.Status != nil {
		status := models.UserStatus(*req.Status)
		in.Status = &status
	}

	user, err := h.account.Update(c.Request.Context(), c.Param("id"), in, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"message": message(c, "crud.update.success"),
		"user":    toUserResponse(user),
	})
}

func (h HandlerSet) DeleteUser(c *gin.Context) {
	if err := h.account.Delete(c.Request.Context(), c.Param("id"), requestMeta(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": message(c, "crud.delete.success")})
}
