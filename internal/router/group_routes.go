// Package router 提供 HTTP 路由注册
// 本文件定义群组相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterGroupRoutes 注册群组相关路由
// 包括群组创建、管理、成员管理等功能
func (rt *Router) RegisterGroupRoutes(rg *gin.RouterGroup) {
	groupGroup := rg.Group("/groups")
	{
		groupGroup.GET("", rt.handlers.Group.ListGroups)                  // 群组列表
		groupGroup.GET("/:id", rt.handlers.Group.GetGroup)                // 群组详情（含成员）
		groupGroup.GET("/for-user/:uid", rt.handlers.Group.GroupsForUser) // 用户加入的群组
		groupGroup.GET("/:id/members", rt.handlers.Group.GetGroupMembers) // 群成员列表
	}

	protected := rg.Group("/groups")
	protected.Use(rt.auth)
	{
		protected.POST("", rt.handlers.Group.CreateGroup)                       // 创建群组
		protected.PUT("/:id", rt.handlers.Group.UpdateGroup)                    // 更新群组信息
		protected.DELETE("/:id", rt.handlers.Group.DeleteGroup)                 // 删除群组
		protected.POST("/:id/members", rt.handlers.Group.AddMember)             // 添加群成员
		protected.DELETE("/:id/members/:uid", rt.handlers.Group.RemoveMember)   // 移除群成员
	}
}
