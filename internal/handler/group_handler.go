// Package handler 提供 HTTP 请求处理器
// 本文件处理群组相关的 API 请求
package handler

import (
	"net/http"

	"qu2data_server/internal/dto/request"
	"qu2data_server/internal/service"

	"github.com/gin-gonic/gin"
)

// GroupHandler 群组请求处理器
type GroupHandler struct {
	groupSvc service.GroupService
}

// NewGroupHandler 创建群组处理器实例
func NewGroupHandler(groupSvc service.GroupService) *GroupHandler {
	return &GroupHandler{groupSvc: groupSvc}
}

// CreateGroup 创建群组，创建者成为首个成员兼管理员
// POST /groups
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req request.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.groupSvc.CreateGroup(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusCreated, data)
}

// ListGroups 列出所有群组
// GET /groups
func (h *GroupHandler) ListGroups(c *gin.Context) {
	data, err := h.groupSvc.ListGroups(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// GetGroup 查询群组（含成员）
// GET /groups/:id
func (h *GroupHandler) GetGroup(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.groupSvc.GetGroup(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// GroupsForUser 用户加入的所有群组
// GET /groups/for-user/:uid
func (h *GroupHandler) GroupsForUser(c *gin.Context) {
	userId, err := parseUintParam(c, "uid")
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.groupSvc.GroupsForUser(c.Request.Context(), userId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// UpdateGroup 更新群组信息
// PUT /groups/:id
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		HandleError(c, err)
		return
	}
	var req request.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.groupSvc.UpdateGroup(c.Request.Context(), id, req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// GetGroupMembers 群成员列表
// GET /groups/:id/members
func (h *GroupHandler) GetGroupMembers(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.groupSvc.GetGroup(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data.Members)
}

// AddMember 添加群成员
// POST /groups/:id/members?operatorId=
// 封闭群只有管理员才能加人，operatorId 标识操作者
func (h *GroupHandler) AddMember(c *gin.Context) {
	groupId, err := parseUintParam(c, "id")
	if err != nil {
		HandleError(c, err)
		return
	}
	operatorId, err := parseUintQuery(c, "operatorId")
	if err != nil {
		HandleError(c, err)
		return
	}
	var req request.AddGroupMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := h.groupSvc.AddMember(c.Request.Context(), groupId, operatorId, req); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusCreated, nil)
}

// RemoveMember 移除群成员
// DELETE /groups/:id/members/:uid
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	groupId, err := parseUintParam(c, "id")
	if err != nil {
		HandleError(c, err)
		return
	}
	userId, err := parseUintParam(c, "uid")
	if err != nil {
		HandleError(c, err)
		return
	}
	if err := h.groupSvc.RemoveMember(c.Request.Context(), groupId, userId); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, nil)
}

// DeleteGroup 删除群组并清空成员
// DELETE /groups/:id
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		HandleError(c, err)
		return
	}
	if err := h.groupSvc.DeleteGroup(c.Request.Context(), id); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, nil)
}
