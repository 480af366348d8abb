package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"authgrid/api/internal/models"
	"authgrid/api/internal/service"
)

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

type roleResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func toRoleResponse(r models.Role) roleResponse {
	return roleResponse{ID: r.ID, Name: r.Name, Status: string(r.Status)}
}

type namedResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type grantResponse struct {
	ID           string `json:"id"`
	ModuleID     string `json:"moduleId"`
	PermissionID string `json:"permissionId"`
}

func (h HandlerSet) CreateRole(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	role, err := h.rbac.CreateRole(c.Request.Context(), req.Name, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"message": message(c, "crud.create.success"), "role": toRoleResponse(role)})
}

func (h HandlerSet) ListRoles(c *gin.Context) {
	roles, err := h.rbac.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, r := range roles {
		out = append(out, toRoleResponse(r))
	}
	respond(c, http.StatusOK, gin.H{"roles": out})
}

func (h HandlerSet) GetRole(c *gin.Context) {
	role, err := h.rbac.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"role": toRoleResponse(role)})
}

type updateRoleRequest struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (h HandlerSet) UpdateRole(c *gin.Context) {
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	role, err := h.rbac.UpdateRole(c.Request.Context(), c.Param("id"), service.UpdateRoleInput{
		Name:   req.Name,
		Status: models.RoleStatus(req.Status),
	}, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": message(c, "crud.update.success"), "role": toRoleResponse(role)})
}

func (h HandlerSet) DeleteRole(c *gin.Context) {
	if err := h.rbac.DeleteRole(c.Request.Context(), c.Param("id"), requestMeta(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": message(c, "crud.delete.success")})
}

func (h HandlerSet) CreateModule(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	module, err := h.rbac.CreateModule(c.Request.Context(), req.Name, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"message": message(c, "crud.create.success"), "module": namedResponse{ID: module.ID, Name: module.Name}})
}

func (h HandlerSet) ListModules(c *gin.Context) {
	modules, err := h.rbac.ListModules(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]namedResponse, 0, len(modules))
	for _, m := range modules {
		out = append(out, namedResponse{ID: m.ID, Name: m.Name})
	}
	respond(c, http.StatusOK, gin.H{"modules": out})
}

func (h HandlerSet) DeleteModule(c *gin.Context) {
	if err := h.rbac.DeleteModule(c.Request.Context(), c.Param("id"), requestMeta(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": message(c, "crud.delete.success")})
}

func (h HandlerSet) CreatePermission(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	permission, err := h.rbac.CreatePermission(c.Request.Context(), req.Name, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"message": message(c, "crud.create.success"), "permission": namedResponse{ID: permission.ID, Name: permission.Name}})
}

func (h HandlerSet) ListPermissions(c *gin.Context) {
	permissions, err := h.rbac.ListPermissions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]namedResponse, 0, len(permissions))
	for _, p := range permissions {
		out = append(out, namedResponse{ID: p.ID, Name: p.Name})
	}
	respond(c, http.StatusOK, gin.H{"permissions": out})
}

func (h HandlerSet) DeletePermission(c *gin.Context) {
	if err := h.rbac.DeletePermission(c.Request.Context(), c.Param("id"), requestMeta(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": message(c, "crud.delete.success")})
}

type grantRequest struct {
	ModuleID     string `json:"moduleId" binding:"required"`
	PermissionID string `json:"permissionId" binding:"required"`
}

func (h HandlerSet) CreateRoleGrant(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	grant, err := h.rbac.CreateRoleGrant(c.Request.Context(), c.Param("id"), service.GrantInput{
		ModuleID:     req.ModuleID,
		PermissionID: req.PermissionID,
	}, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"message": message(c, "crud.create.success"), "grant": grantResponse{ID: grant.ID, ModuleID: grant.ModuleID, PermissionID: grant.PermissionID}})
}

func (h HandlerSet) ListRoleGrants(c *gin.Context) {
	grants, err := h.rbac.ListRoleGrants(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantResponse{ID: g.ID, ModuleID: g.ModuleID, PermissionID: g.PermissionID})
	}
	respond(c, http.StatusOK, gin.H{"grants": out})
}

func (h HandlerSet) DeleteRoleGrant(c *gin.Context) {
	if err := h.rbac.DeleteRoleGrant(c.Request.Context(), c.Param("id"), requestMeta(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": message(c, "crud.delete.success")})
}

func (h HandlerSet) CreateUserGrant(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	grant, err := h.rbac.CreateUserGrant(c.Request.Context(), c.Param("id"), service.GrantInput{
		ModuleID:     req.ModuleID,
		PermissionID: req.PermissionID,
	}, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"message": message(c, "crud.create.success"), "grant": grantResponse{ID: grant.ID, ModuleID: grant.ModuleID, PermissionID: grant.PermissionID}})
}

func (h HandlerSet) ListUserGrants(c *gin.Context) {
	grants, err := h.rbac.ListUserGrants(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantResponse{ID: g.ID, ModuleID: g.ModuleID, PermissionID: g.PermissionID})
	}
	respond(c, http.StatusOK, gin.H{"grants": out})
}

func (h HandlerSet) DeleteUserGrant(c *gin.Context) {
	if err := h.rbac.DeleteUserGrant(c.Request.Context(), c.Param("id"), requestMeta(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": message(c, "crud.delete.success")})
}
