// Package handler 提供 HTTP 请求处理器
// 本文件处理用户相关的 API 请求
package handler

import (
	"net/http"

	"qu2data_server/internal/dto/request"
	"qu2data_server/internal/service"
	"qu2data_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户请求处理器
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler 创建用户处理器实例
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// CreateUser 创建用户（IdP 先行，再落本地影子行）
// POST /users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req request.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.userSvc.CreateUser(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusCreated, data)
}

// ListUsers 列出所有用户
// GET /users
func (h *UserHandler) ListUsers(c *gin.Context) {
	data, err := h.userSvc.ListUsers(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// GetUser 查询单个用户
// GET /users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.userSvc.GetUser(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// GetUserBySubject 按 IdP 主体ID查询用户
// GET /users/by-subject/:subjectId
func (h *UserHandler) GetUserBySubject(c *gin.Context) {
	subjectId := c.Param("subjectId")
	if subjectId == "" {
		HandleError(c, errorx.New(errorx.CodeInvalidParam, "paramètre subjectId manquant"))
		return
	}
	data, err := h.userSvc.GetUserBySubject(c.Request.Context(), subjectId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// UpdateUser 更新用户
// PUT /users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		HandleError(c, err)
		return
	}
	var req request.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.userSvc.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// DisableUser 停用用户登录
// PUT /users/:id/disable
func (h *UserHandler) DisableUser(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		HandleError(c, err)
		return
	}
	if err := h.userSvc.DisableUser(c.Request.Context(), id); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, nil)
}

// DeleteUser 删除用户（IdP 主体删除 + 本地软删除）
// DELETE /users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		HandleError(c, err)
		return
	}
	if err := h.userSvc.DeleteUser(c.Request.Context(), id); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, nil)
}
