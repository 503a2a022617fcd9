package repository

import (
	"time"

	"qu2data_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type conversationStatusRepository struct {
	db *gorm.DB
}

// NewConversationStatusRepository 创建会话水位 Repository
func NewConversationStatusRepository(db *gorm.DB) ConversationStatusRepository {
	return &conversationStatusRepository{db: db}
}

// UpsertPeer 写入/前移用户对某对端的私聊水位
// 冲突目标是 (user_id, other_user_id) 唯一索引
func (r *conversationStatusRepository) UpsertPeer(userId, otherUserId uint, lastReadAt time.Time) error {
	status := model.ConversationStatus{
		UserId:      userId,
		OtherUserId: &otherUserId,
		LastReadAt:  lastReadAt,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "other_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_read_at", "updated_at"}),
	}).Create(&status).Error
	if err != nil {
		return wrapDBErrorf(err, "写入私聊水位 user_id=%d other_user_id=%d", userId, otherUserId)
	}
	return nil
}

// UpsertGroup 写入/前移用户对某群的水位
func (r *conversationStatusRepository) UpsertGroup(userId, groupId uint, lastReadAt time.Time) error {
	status := model.ConversationStatus{
		UserId:     userId,
		GroupId:    &groupId,
		LastReadAt: lastReadAt,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_read_at", "updated_at"}),
	}).Create(&status).Error
	if err != nil {
		return wrapDBErrorf(err, "写入群聊水位 user_id=%d group_id=%d", userId, groupId)
	}
	return nil
}

// FindPeerWatermark 查找私聊水位
func (r *conversationStatusRepository) FindPeerWatermark(userId, otherUserId uint) (*model.ConversationStatus, error) {
	var status model.ConversationStatus
	if err := r.db.First(&status, "user_id = ? AND other_user_id = ?", userId, otherUserId).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询私聊水位 user_id=%d other_user_id=%d", userId, otherUserId)
	}
	return &status, nil
}

// FindGroupWatermark 查找群聊水位
func (r *conversationStatusRepository) FindGroupWatermark(userId, groupId uint) (*model.ConversationStatus, error) {
	var status model.ConversationStatus
	if err := r.db.First(&status, "user_id = ? AND group_id = ?", userId, groupId).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询群聊水位 user_id=%d group_id=%d", userId, groupId)
	}
	return &status, nil
}
