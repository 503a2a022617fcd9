// Package handler 提供 HTTP 请求处理器
// 本文件定义 Handler 聚合结构和构造函数
// 遵循依赖倒置原则，通过构造函数注入 Service 依赖
package handler

import (
	"qu2data_server/internal/service"
	"qu2data_server/internal/service/push"
)

// Handlers 聚合所有 Handler 实例
// 作为依赖注入的入口，Router 层通过此结构访问各个 Handler
type Handlers struct {
	Message *MessageHandler
	User    *UserHandler
	Group   *GroupHandler
	Ws      *WsHandler
}

// NewHandlers 创建并注入所有 Handler 实例
// svc: Service 层聚合实例
// gateway: WebSocket 推送网关
func NewHandlers(svc *service.Services, gateway *push.Gateway) *Handlers {
	return &Handlers{
		Message: NewMessageHandler(svc.Message, svc.User),
		User:    NewUserHandler(svc.User),
		Group:   NewGroupHandler(svc.Group),
		Ws:      NewWsHandler(gateway),
	}
}
