package model

import (
	"gorm.io/gorm"
)

// Group 群组模型
type Group struct {
	gorm.Model
	Name        string `gorm:"column:name;type:varchar(100);not null;comment:群名称"`
	Description string `gorm:"column:description;type:varchar(500);comment:群描述"`
	// IsClosed 为 true 时仅管理员可拉人，非成员不可自行加入
	IsClosed bool `gorm:"column:is_closed;not null;default:false;comment:是否封闭群"`
}

func (Group) TableName() string {
	return "groups"
}
