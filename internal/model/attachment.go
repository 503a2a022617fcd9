// Package model 定义数据库实体模型
package model

import "gorm.io/gorm"

// Attachment 附件元数据
// 每个附件恰好属于一条消息；文件体保存在本地磁盘，不入库
type Attachment struct {
	gorm.Model
	MessageId uint `gorm:"column:message_id;index;not null;comment:所属消息"`

	// Name 客户端上传时的原始文件名，仅用于展示
	Name string `gorm:"column:name;type:varchar(255);not null;comment:原始文件名"`

	// MimeType 由服务端嗅探得到的内容类型，不信任客户端声明
	MimeType string `gorm:"column:mime_type;type:varchar(127);comment:内容类型"`

	// Size 字节数
	Size int64 `gorm:"column:size;not null;comment:文件大小"`

	// StoragePath 磁盘相对路径（uuid 前缀避免重名覆盖）
	StoragePath string `gorm:"column:storage_path;type:varchar(512);not null;comment:存储路径"`
}

// TableName 指定表名
func (Attachment) TableName() string {
	return "attachments"
}
