package repository

import (
	"qu2data_server/internal/model"

	"gorm.io/gorm"
)

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository 创建群组 Repository
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

// FindByID 按ID查找群组
func (r *groupRepository) FindByID(id uint) (*model.Group, error) {
	var group model.Group
	if err := r.db.First(&group, id).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询群组 id=%d", id)
	}
	return &group, nil
}

// FindByIDs 批量按ID查找群组
func (r *groupRepository) FindByIDs(ids []uint) ([]model.Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var groups []model.Group
	if err := r.db.Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, wrapDBError(err, "批量查询群组")
	}
	return groups, nil
}

// FindAll 查找所有群组
func (r *groupRepository) FindAll() ([]model.Group, error) {
	var groups []model.Group
	if err := r.db.Order("id ASC").Find(&groups).Error; err != nil {
		return nil, wrapDBError(err, "查询群组列表")
	}
	return groups, nil
}

// Create 创建群组
func (r *groupRepository) Create(group *model.Group) error {
	if err := r.db.Create(group).Error; err != nil {
		return wrapDBError(err, "创建群组")
	}
	return nil
}

// Update 更新群组信息
func (r *groupRepository) Update(group *model.Group) error {
	if err := r.db.Save(group).Error; err != nil {
		return wrapDBError(err, "更新群组")
	}
	return nil
}

// SoftDelete 软删除群组
func (r *groupRepository) SoftDelete(id uint) error {
	if err := r.db.Delete(&model.Group{}, id).Error; err != nil {
		return wrapDBError(err, "删除群组")
	}
	return nil
}
