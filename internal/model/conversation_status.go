// Package model 定义数据库实体模型
package model

import (
	"time"

	"gorm.io/gorm"
)

// ConversationStatus 会话已读水位
// 每行记录"用户 X 在与对端 Y（或群 G）的会话里读到的时刻"
// OtherUserId 与 GroupId 恰好一个非空；(user, peer) 或 (user, group) 组合唯一，
// 由复合唯一索引支撑 upsert 写入
type ConversationStatus struct {
	gorm.Model
	UserId      uint  `gorm:"column:user_id;not null;uniqueIndex:idx_conv_user_peer;uniqueIndex:idx_conv_user_group;comment:水位归属用户"`
	OtherUserId *uint `gorm:"column:other_user_id;uniqueIndex:idx_conv_user_peer;comment:私聊对端"`
	GroupId     *uint `gorm:"column:group_id;uniqueIndex:idx_conv_user_group;comment:群聊群组"`

	// LastReadAt 水位时刻，只会单调前移，不回退
	LastReadAt time.Time `gorm:"column:last_read_at;not null;comment:最后已读时间"`
}

// TableName 指定表名
func (ConversationStatus) TableName() string {
	return "conversation_status"
}
