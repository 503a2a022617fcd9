// Package router 提供 HTTP 路由注册
// 本文件定义消息相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterMessageRoutes 注册消息相关路由
// 查询接口开放，写接口需要认证
func (rt *Router) RegisterMessageRoutes(rg *gin.RouterGroup) {
	messageGroup := rg.Group("/messages")
	{
		// ===== 查询 =====
		messageGroup.GET("/between", rt.handlers.Message.GetMessagesBetween)                 // 两个用户的私聊记录
		messageGroup.GET("/group/:groupId", rt.handlers.Message.GetGroupMessages)            // 群聊记录
		messageGroup.GET("/conversation-users", rt.handlers.Message.GetConversationUsers)    // 会话列表
		messageGroup.GET("/unread/private/:uid", rt.handlers.Message.GetUnreadPrivate)       // 收件箱未读角标
		messageGroup.GET("/unseen-sent/:uid", rt.handlers.Message.GetUnseenSent)             // 发件回执
		messageGroup.GET("/unread/groups/:uid", rt.handlers.Message.GetUnreadGroups)         // 群未读角标
	}

	protected := rg.Group("/messages")
	protected.Use(rt.auth)
	{
		// ===== 发送与编辑 =====
		protected.POST("", rt.handlers.Message.SendPrivateMessage)                            // 发送私聊消息
		protected.POST("/with-attachment", rt.handlers.Message.SendPrivateMessageWithAttachment) // 发送带附件的私聊消息
		protected.POST("/group", rt.handlers.Message.SendGroupMessage)                        // 发送群聊消息
		protected.PUT("/:id", rt.handlers.Message.UpdateMessage)                              // 编辑消息内容
		protected.PUT("/delete/:id", rt.handlers.Message.DeleteMessage)                       // 软删除消息

		// ===== 已读核算 =====
		protected.PUT("/mark-read/private", rt.handlers.Message.MarkReadPrivate) // 前移私聊读水位
		protected.PUT("/mark-read/group", rt.handlers.Message.MarkReadGroup)     // 前移群聊读水位
		protected.PUT("/mark-as-seen", rt.handlers.Message.MarkAsSeen)           // 显式标记已读
	}
}
