// Package handler 提供 HTTP 请求处理器
// 本文件处理 WebSocket 连接升级请求
package handler

import (
	"net/http"

	"qu2data_server/internal/service/push"

	"github.com/gin-gonic/gin"
)

// WsHandler WebSocket 连接处理器
type WsHandler struct {
	gateway *push.Gateway
}

// NewWsHandler 创建 WebSocket 处理器实例
func NewWsHandler(gateway *push.Gateway) *WsHandler {
	return &WsHandler{gateway: gateway}
}

// Connect 升级为 WebSocket 连接并接入推送网关
// GET /ws?userId=
func (h *WsHandler) Connect(c *gin.Context) {
	userId, err := parseUintQuery(c, "userId")
	if err != nil {
		HandleError(c, err)
		return
	}
	h.gateway.HandleConnection(c, userId)
}

// OnlineUsers 当前在线用户的ID列表
// GET /users/online
func (h *WsHandler) OnlineUsers(c *gin.Context) {
	ids, err := h.gateway.OnlineUserIds(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, ids)
}
