package constants

import "time"

const (
	CHANNEL_SIZE  = 100              // 推送通道缓冲大小
	FILE_MAX_SIZE = 50 << 20         // 上传文件最大大小（字节）
	REDIS_TIMEOUT = 10 * time.Minute // 聊天记录缓存过期时间

	// TOMBSTONE_CONTENT 软删除后写入的占位内容（前端按原文显示）
	TOMBSTONE_CONTENT = "Message supprimé"

	// 身份提供方查询失败时的占位姓名
	PLACEHOLDER_FIRST_NAME = "Inconnu"
	PLACEHOLDER_LAST_NAME  = "Utilisateur"
)
