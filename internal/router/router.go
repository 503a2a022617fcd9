// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"qu2data_server/internal/handler"
	"qu2data_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// Router 路由管理器
// 持有 Handler 聚合，所有路由注册方法挂在此结构上
type Router struct {
	handlers *handler.Handlers
	auth     gin.HandlerFunc
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{
		handlers: handlers,
		auth:     middleware.Auth(),
	}
}

// RegisterRoutes 注册所有路由
// 业务接口统一挂在 /api 前缀下，WebSocket 入口在根路径
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	rt.RegisterMessageRoutes(api)
	rt.RegisterUserRoutes(api)
	rt.RegisterGroupRoutes(api)
	rt.RegisterWebSocketRoutes(r)
}
