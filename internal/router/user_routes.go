// Package router 提供 HTTP 路由注册
// 本文件定义用户相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterUserRoutes 注册用户相关路由
// 管理类写操作需要认证
func (rt *Router) RegisterUserRoutes(rg *gin.RouterGroup) {
	userGroup := rg.Group("/users")
	{
		userGroup.GET("", rt.handlers.User.ListUsers)                              // 用户列表
		userGroup.GET("/online", rt.handlers.Ws.OnlineUsers)                       // 在线用户ID列表
		userGroup.GET("/:id", rt.handlers.User.GetUser)                            // 用户详情
		userGroup.GET("/by-subject/:subjectId", rt.handlers.User.GetUserBySubject) // 按 IdP 主体ID查询
	}

	protected := rg.Group("/users")
	protected.Use(rt.auth)
	{
		protected.POST("", rt.handlers.User.CreateUser)            // 创建用户（IdP 先行）
		protected.PUT("/:id", rt.handlers.User.UpdateUser)         // 更新用户
		protected.PUT("/:id/disable", rt.handlers.User.DisableUser) // 停用登录
		protected.DELETE("/:id", rt.handlers.User.DeleteUser)      // 删除用户
	}
}
