// Package model 定义数据库实体模型
// 本文件定义本地用户模型
// 认证与展示字段（姓名、邮箱、用户名）归外部身份提供方所有，
// 本地只保存 subject id 与业务字段，读取时实时向 IdP 解析
package model

import (
	"gorm.io/gorm"
)

// User 本地用户模型
// 对应数据库 users 表
// 主键 ID 即稳定的本地用户编号（前端所称 postgresId）
type User struct {
	gorm.Model

	// SubjectId 外部身份提供方为该用户签发的唯一标识
	// 先在 IdP 创建主体再落本地行，因此该字段创建后不可为空
	SubjectId string `gorm:"column:subject_id;uniqueIndex;type:varchar(64);not null;comment:IdP subject id"`

	// JobTitle 职位
	JobTitle string `gorm:"column:job_title;type:varchar(100);comment:职位"`

	// Phone 电话号码
	Phone string `gorm:"column:phone;type:varchar(30);comment:电话"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
