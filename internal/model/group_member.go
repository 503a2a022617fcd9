package model

import "gorm.io/gorm"

// GroupMember 群成员关联表
// (group_id, user_id) 唯一；建群时首个成员即管理员
type GroupMember struct {
	gorm.Model
	GroupId  uint   `gorm:"column:group_id;uniqueIndex:idx_group_user;not null;comment:群组ID"`
	UserId   uint   `gorm:"column:user_id;uniqueIndex:idx_group_user;index;not null;comment:用户ID"`
	Nickname string `gorm:"column:nickname;type:varchar(100);comment:群内昵称"`
	IsAdmin  bool   `gorm:"column:is_admin;not null;default:false;comment:是否群管理员"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
