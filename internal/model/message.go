// Package model 定义数据库实体模型
// 本文件定义消息模型，私聊与群聊共用一张表
package model

import (
	"time"

	"gorm.io/gorm"
)

// Message 消息模型
// 对应数据库 messages 表
// ReceiverId 与 GroupId 恰好一个非空（XOR，由 CHECK 约束和服务层共同保证）：
// ReceiverId 非空为私聊消息，GroupId 非空为群聊消息
type Message struct {
	gorm.Model

	// Content 消息文本内容
	// 软删除后被覆盖为占位串，原文不可恢复
	Content string `gorm:"column:content;type:text;not null;comment:消息内容"`

	// Timestamp 创建时刻，由服务端时钟统一赋值，客户端不可指定
	Timestamp time.Time `gorm:"column:timestamp;index;not null;comment:创建时间"`

	// IsDeleted 软删除标记；行与时间戳保留，保证会话排序稳定
	IsDeleted bool `gorm:"column:is_deleted;not null;default:false;comment:是否已删除"`

	// IsUpdated 内容被编辑过的标记（仅单个标志位，不保存历史）
	IsUpdated bool `gorm:"column:is_updated;not null;default:false;comment:是否已编辑"`

	// SenderId 发送者本地用户ID，任何消息都必须有发送者
	SenderId uint `gorm:"column:sender_id;index;not null;comment:发送者"`

	// ReceiverId 私聊接收者本地用户ID（群聊消息为 NULL）
	ReceiverId *uint `gorm:"column:receiver_id;index;check:chk_message_target,(receiver_id IS NULL) <> (group_id IS NULL);comment:私聊接收者"`

	// GroupId 群聊目标群ID（私聊消息为 NULL）
	GroupId *uint `gorm:"column:group_id;index;comment:群聊群组"`

	// SenderName 发送者姓名快照（群聊消息写入时解析一次）
	// IdP 之后丢失该主体时，历史群消息仍可渲染
	SenderName string `gorm:"column:sender_name;type:varchar(200);comment:发送者姓名快照"`

	// Attachments 附件列表，随消息级联删除
	Attachments []Attachment `gorm:"foreignKey:MessageId"`

	// SeenBy 已读该消息的用户集合（多对多关联表 message_seen_by）
	// 仅由读者的显式动作写入，发送者不会被隐式加入
	SeenBy []User `gorm:"many2many:message_seen_by;"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}

// IsPrivate 是否为私聊消息
func (m *Message) IsPrivate() bool {
	return m.ReceiverId != nil
}

// SeenByUser 判断指定用户是否已读该消息（按 ID 比较）
func (m *Message) SeenByUser(userId uint) bool {
	for _, u := range m.SeenBy {
		if u.ID == userId {
			return true
		}
	}
	return false
}
