package repository

import (
	"qu2data_server/internal/model"

	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户 Repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// FindByID 按本地ID查找用户
func (r *userRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户 id=%d", id)
	}
	return &user, nil
}

// FindBySubjectId 按 IdP 主体ID查找用户
func (r *userRepository) FindBySubjectId(subjectId string) (*model.User, error) {
	var user model.User
	if err := r.db.First(&user, "subject_id = ?", subjectId).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户 subject_id=%s", subjectId)
	}
	return &user, nil
}

// FindByIDs 批量按本地ID查找
func (r *userRepository) FindByIDs(ids []uint) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []model.User
	if err := r.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, wrapDBError(err, "批量查询用户")
	}
	return users, nil
}

// FindAll 查找所有用户
func (r *userRepository) FindAll() ([]model.User, error) {
	var users []model.User
	if err := r.db.Order("id ASC").Find(&users).Error; err != nil {
		return nil, wrapDBError(err, "查询用户列表")
	}
	return users, nil
}

// Create 创建用户影子记录
func (r *userRepository) Create(user *model.User) error {
	if err := r.db.Create(user).Error; err != nil {
		return wrapDBError(err, "创建用户")
	}
	return nil
}

// Update 更新用户补充字段
func (r *userRepository) Update(user *model.User) error {
	if err := r.db.Save(user).Error; err != nil {
		return wrapDBError(err, "更新用户")
	}
	return nil
}

// SoftDelete 软删除用户
func (r *userRepository) SoftDelete(id uint) error {
	if err := r.db.Delete(&model.User{}, id).Error; err != nil {
		return wrapDBError(err, "删除用户")
	}
	return nil
}
