// Package repository 定义数据访问层接口和聚合结构
// 采用 Repository 模式将数据访问逻辑与业务逻辑分离
// 所有 Repository 接口在此文件定义，具体实现在各自的文件中
package repository

import (
	"time"

	"qu2data_server/internal/model"

	"gorm.io/gorm"
)

// ==================== Repository 接口定义 ====================

// UserRepository 本地用户影子数据访问接口
// 用户主数据在 IdP，本表只保存主体ID与业务补充字段
type UserRepository interface {
	// FindByID 按本地ID查找用户
	FindByID(id uint) (*model.User, error)
	// FindBySubjectId 按 IdP 主体ID查找用户
	FindBySubjectId(subjectId string) (*model.User, error)
	// FindByIDs 批量按本地ID查找
	FindByIDs(ids []uint) ([]model.User, error)
	// FindAll 查找所有用户
	FindAll() ([]model.User, error)
	// Create 创建用户影子记录
	Create(user *model.User) error
	// Update 更新用户补充字段
	Update(user *model.User) error
	// SoftDelete 软删除用户
	SoftDelete(id uint) error
}

// GroupRepository 群组数据访问接口
type GroupRepository interface {
	// FindByID 按ID查找群组
	FindByID(id uint) (*model.Group, error)
	// FindByIDs 批量按ID查找群组
	FindByIDs(ids []uint) ([]model.Group, error)
	// FindAll 查找所有群组
	FindAll() ([]model.Group, error)
	// Create 创建群组
	Create(group *model.Group) error
	// Update 更新群组信息
	Update(group *model.Group) error
	// SoftDelete 软删除群组
	SoftDelete(id uint) error
}

// GroupMemberRepository 群成员数据访问接口
type GroupMemberRepository interface {
	// FindByGroupId 查找群的全部成员
	FindByGroupId(groupId uint) ([]model.GroupMember, error)
	// FindGroupIdsByUserId 查找用户加入的所有群ID
	FindGroupIdsByUserId(userId uint) ([]uint, error)
	// IsMember 判断用户是否在群中
	IsMember(groupId, userId uint) (bool, error)
	// Create 添加群成员
	Create(member *model.GroupMember) error
	// Delete 移除单个群成员
	Delete(groupId, userId uint) error
	// DeleteByGroupId 移除群的全部成员
	DeleteByGroupId(groupId uint) error
}

// PeerActivity 私聊会话对端及其最近一条消息时间
// 用于会话列表排序
type PeerActivity struct {
	PeerId uint      // 对端本地用户ID
	LastAt time.Time // 双方之间最近一条消息的时间
}

// MessageRepository 消息数据访问接口
// 私聊与群聊消息共表存取
type MessageRepository interface {
	// Create 创建消息（附件随实体级联写入）
	Create(message *model.Message) error
	// FindByID 按ID查找消息，预加载附件与已读集合
	FindByID(id uint) (*model.Message, error)
	// Save 整体保存消息（编辑、软删除用）
	Save(message *model.Message) error
	// FindBetweenUsers 查找两个用户之间的全部私聊消息（双向），按时间升序
	FindBetweenUsers(userOneId, userTwoId uint) ([]model.Message, error)
	// FindByGroupId 查找群的全部消息，按时间升序
	FindByGroupId(groupId uint) ([]model.Message, error)
	// FindConversationPeers 查找与用户有过私聊往来的对端及最近消息时间
	FindConversationPeers(userId uint) ([]PeerActivity, error)
	// LastMessageAtByGroupIds 查找各群最近一条消息的时间，没有消息的群不在结果中
	LastMessageAtByGroupIds(groupIds []uint) (map[uint]time.Time, error)
	// FindReceivedBy 查找用户收到的全部私聊消息，预加载已读集合
	FindReceivedBy(userId uint) ([]model.Message, error)
	// FindSentBy 查找用户发出的全部私聊消息，预加载已读集合
	FindSentBy(userId uint) ([]model.Message, error)
	// AddSeenBy 将用户批量加入消息的已读集合，重复标记静默跳过
	AddSeenBy(messageIds []uint, userId uint) error
	// CountUnreadGroupMessages 统计群内某用户水位之后、非其发送且未读的消息数
	CountUnreadGroupMessages(groupId, userId uint, since time.Time) (int64, error)
}

// ConversationStatusRepository 会话已读水位数据访问接口
type ConversationStatusRepository interface {
	// UpsertPeer 写入/前移用户对某对端的私聊水位
	UpsertPeer(userId, otherUserId uint, lastReadAt time.Time) error
	// UpsertGroup 写入/前移用户对某群的水位
	UpsertGroup(userId, groupId uint, lastReadAt time.Time) error
	// FindPeerWatermark 查找私聊水位，不存在返回 CodeNotFound
	FindPeerWatermark(userId, otherUserId uint) (*model.ConversationStatus, error)
	// FindGroupWatermark 查找群聊水位，不存在返回 CodeNotFound
	FindGroupWatermark(userId, groupId uint) (*model.ConversationStatus, error)
}

// AttachmentRepository 附件元数据访问接口
type AttachmentRepository interface {
	// Create 创建附件记录
	Create(attachment *model.Attachment) error
	// FindByMessageId 查找消息的全部附件
	FindByMessageId(messageId uint) ([]model.Attachment, error)
}

// ==================== Repository 聚合 ====================

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db                 *gorm.DB
	User               UserRepository
	Group              GroupRepository
	GroupMember        GroupMemberRepository
	Message            MessageRepository
	ConversationStatus ConversationStatusRepository
	Attachment         AttachmentRepository
}

// NewRepositories 创建所有 Repository 实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:                 db,
		User:               NewUserRepository(db),
		Group:              NewGroupRepository(db),
		GroupMember:        NewGroupMemberRepository(db),
		Message:            NewMessageRepository(db),
		ConversationStatus: NewConversationStatusRepository(db),
		Attachment:         NewAttachmentRepository(db),
	}
}

// Transaction 在数据库事务中执行函数
// fn 内的所有操作要么全部成功，要么全部回滚
func (r *Repositories) Transaction(fn func(txRepos *Repositories) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
