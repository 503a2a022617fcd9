package repository

import (
	"qu2data_server/internal/model"

	"gorm.io/gorm"
)

type groupMemberRepository struct {
	db *gorm.DB
}

// NewGroupMemberRepository 创建群成员 Repository
func NewGroupMemberRepository(db *gorm.DB) GroupMemberRepository {
	return &groupMemberRepository{db: db}
}

// FindByGroupId 查找群的全部成员
func (r *groupMemberRepository) FindByGroupId(groupId uint) ([]model.GroupMember, error) {
	var members []model.GroupMember
	if err := r.db.Where("group_id = ?", groupId).Order("id ASC").Find(&members).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询群成员 group_id=%d", groupId)
	}
	return members, nil
}

// FindGroupIdsByUserId 查找用户加入的所有群ID
func (r *groupMemberRepository) FindGroupIdsByUserId(userId uint) ([]uint, error) {
	var groupIds []uint
	if err := r.db.Model(&model.GroupMember{}).Where("user_id = ?", userId).
		Pluck("group_id", &groupIds).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户群组 user_id=%d", userId)
	}
	return groupIds, nil
}

// IsMember 判断用户是否在群中
func (r *groupMemberRepository) IsMember(groupId, userId uint) (bool, error) {
	var count int64
	if err := r.db.Model(&model.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupId, userId).Count(&count).Error; err != nil {
		return false, wrapDBError(err, "查询群成员关系")
	}
	return count > 0, nil
}

// Create 添加群成员
func (r *groupMemberRepository) Create(member *model.GroupMember) error {
	if err := r.db.Create(member).Error; err != nil {
		return wrapDBError(err, "添加群成员")
	}
	return nil
}

// Delete 移除单个群成员（硬删除，重新入群时复用唯一索引）
func (r *groupMemberRepository) Delete(groupId, userId uint) error {
	if err := r.db.Unscoped().Where("group_id = ? AND user_id = ?", groupId, userId).
		Delete(&model.GroupMember{}).Error; err != nil {
		return wrapDBError(err, "移除群成员")
	}
	return nil
}

// DeleteByGroupId 移除群的全部成员
func (r *groupMemberRepository) DeleteByGroupId(groupId uint) error {
	if err := r.db.Unscoped().Where("group_id = ?", groupId).
		Delete(&model.GroupMember{}).Error; err != nil {
		return wrapDBError(err, "清空群成员")
	}
	return nil
}
