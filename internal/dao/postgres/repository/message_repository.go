package repository

import (
	"database/sql"
	"time"

	"qu2data_server/internal/model"
	"qu2data_server/pkg/errorx"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息 Repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create 创建消息（附件随实体级联写入）
func (r *messageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return wrapDBError(err, "创建消息")
	}
	return nil
}

// FindByID 按ID查找消息，预加载附件与已读集合
func (r *messageRepository) FindByID(id uint) (*model.Message, error) {
	var message model.Message
	if err := r.db.Preload("Attachments").Preload("SeenBy").
		First(&message, id).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 id=%d", id)
	}
	return &message, nil
}

// Save 整体保存消息
func (r *messageRepository) Save(message *model.Message) error {
	if err := r.db.Omit(clause.Associations).Save(message).Error; err != nil {
		return wrapDBError(err, "保存消息")
	}
	return nil
}

// FindBetweenUsers 查找两个用户之间的全部私聊消息（双向）
// 按 (timestamp, id) 升序，保证同时刻消息的顺序稳定
func (r *messageRepository) FindBetweenUsers(userOneId, userTwoId uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Preload("Attachments").Preload("SeenBy").
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userOneId, userTwoId, userTwoId, userOneId).
		Order("timestamp ASC, id ASC").Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 user1=%d user2=%d", userOneId, userTwoId)
	}
	return messages, nil
}

// FindByGroupId 查找群的全部消息，按 (timestamp, id) 升序
func (r *messageRepository) FindByGroupId(groupId uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Preload("Attachments").Preload("SeenBy").
		Where("group_id = ?", groupId).
		Order("timestamp ASC, id ASC").Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询群消息 group_id=%d", groupId)
	}
	return messages, nil
}

// 聚合表达式会丢掉列的声明类型，MAX(timestamp) 在部分驱动下以文本返回
// 按各驱动的时间文本格式依次尝试解析
var aggregatedAtLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

func parseAggregatedAt(raw string) (time.Time, error) {
	for _, layout := range aggregatedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errorx.Newf(errorx.CodeDBError, "horodatage agrégé illisible: %q", raw)
}

// FindConversationPeers 查找与用户有过私聊往来的对端及最近消息时间
// 软删除的消息仍参与排序，会话不会因删除消息而消失
func (r *messageRepository) FindConversationPeers(userId uint) ([]PeerActivity, error) {
	var rows []struct {
		PeerId uint
		LastAt sql.NullString
	}
	err := r.db.Model(&model.Message{}).
		Select("CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS peer_id, MAX(timestamp) AS last_at", userId).
		Where("receiver_id IS NOT NULL AND (sender_id = ? OR receiver_id = ?)", userId, userId).
		Group("peer_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询私聊会话 user_id=%d", userId)
	}
	peers := make([]PeerActivity, 0, len(rows))
	for _, row := range rows {
		if !row.LastAt.Valid {
			continue
		}
		lastAt, err := parseAggregatedAt(row.LastAt.String)
		if err != nil {
			return nil, err
		}
		peers = append(peers, PeerActivity{PeerId: row.PeerId, LastAt: lastAt})
	}
	return peers, nil
}

// LastMessageAtByGroupIds 查找各群最近一条消息的时间
// 没有消息的群不出现在结果中，调用方据此过滤空群会话
func (r *messageRepository) LastMessageAtByGroupIds(groupIds []uint) (map[uint]time.Time, error) {
	result := make(map[uint]time.Time)
	if len(groupIds) == 0 {
		return result, nil
	}
	var rows []struct {
		GroupId uint
		LastAt  sql.NullString
	}
	err := r.db.Model(&model.Message{}).
		Select("group_id, MAX(timestamp) AS last_at").
		Where("group_id IN ?", groupIds).
		Group("group_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapDBError(err, "查询群会话活跃时间")
	}
	for _, row := range rows {
		if !row.LastAt.Valid {
			continue
		}
		lastAt, err := parseAggregatedAt(row.LastAt.String)
		if err != nil {
			return nil, err
		}
		result[row.GroupId] = lastAt
	}
	return result, nil
}

// FindReceivedBy 查找用户收到的全部私聊消息，预加载已读集合
func (r *messageRepository) FindReceivedBy(userId uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Preload("SeenBy").
		Where("receiver_id = ?", userId).
		Order("timestamp ASC, id ASC").Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询收件消息 receiver_id=%d", userId)
	}
	return messages, nil
}

// FindSentBy 查找用户发出的全部私聊消息，预加载已读集合
func (r *messageRepository) FindSentBy(userId uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Preload("SeenBy").
		Where("sender_id = ? AND receiver_id IS NOT NULL", userId).
		Order("timestamp ASC, id ASC").Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询发件消息 sender_id=%d", userId)
	}
	return messages, nil
}

// AddSeenBy 将用户批量加入消息的已读集合
// 关联表上存在 (message_id, user_id) 主键，重复标记由 ON CONFLICT 静默跳过
func (r *messageRepository) AddSeenBy(messageIds []uint, userId uint) error {
	if len(messageIds) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(messageIds))
	for _, messageId := range messageIds {
		rows = append(rows, map[string]any{
			"message_id": messageId,
			"user_id":    userId,
		})
	}
	if err := r.db.Table("message_seen_by").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rows).Error; err != nil {
		return wrapDBError(err, "写入已读标记")
	}
	return nil
}

// CountUnreadGroupMessages 统计群内某用户未读的消息数
// 未读定义：水位之后、非本人发送、且不在该用户的已读集合中
func (r *messageRepository) CountUnreadGroupMessages(groupId, userId uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.Message{}).
		Where("group_id = ? AND sender_id <> ? AND timestamp > ?", groupId, userId, since).
		Where("id NOT IN (SELECT message_id FROM message_seen_by WHERE user_id = ?)", userId).
		Count(&count).Error
	if err != nil {
		return 0, wrapDBErrorf(err, "统计群未读 group_id=%d user_id=%d", groupId, userId)
	}
	return count, nil
}
