// Package service 定义业务层接口
// 本文件定义所有 Service 接口，供 Handler 层调用
// 接口设计遵循依赖倒置原则，便于测试和解耦
package service

import (
	"context"
	"io"

	"qu2data_server/internal/dto/request"
	"qu2data_server/internal/dto/respond"
)

// Upload 附件上传输入
// Handler 从 multipart 表单取出后交给 Service 落盘
type Upload struct {
	Name   string
	Reader io.Reader
}

// MessageService 消息业务接口
// 发送、编辑、软删除、已读核算、会话列表
type MessageService interface {
	// SendPrivate 发送私聊消息，落库成功后推送给接收者
	SendPrivate(ctx context.Context, req request.SendPrivateMessageRequest, upload *Upload) (*respond.MessageRespond, error)
	// SendGroup 发送群聊消息，要求发送者是群成员
	SendGroup(ctx context.Context, req request.SendGroupMessageRequest, upload *Upload) (*respond.MessageRespond, error)
	// UpdateContent 编辑消息内容并打上已编辑标记
	UpdateContent(ctx context.Context, messageId uint, content string) (*respond.MessageRespond, error)
	// Delete 软删除：内容覆盖为占位串，行和时间戳保留
	Delete(ctx context.Context, messageId uint) (*respond.MessageRespond, error)
	// GetBetween 两个用户之间的私聊记录，按时间升序
	GetBetween(ctx context.Context, userOneId, userTwoId uint) ([]respond.MessageRespond, error)
	// GetGroupMessages 群聊记录，发送者姓名经 IdP 实时解析
	GetGroupMessages(ctx context.Context, groupId uint) ([]respond.MessageRespond, error)
	// ConversationList 会话列表：私聊对端与有消息的群，按最近消息时间降序
	ConversationList(ctx context.Context, userId uint) ([]respond.ConversationEntry, error)
	// MarkPrivateRead 前移私聊水位，对端用 IdP 主体ID标识
	MarkPrivateRead(ctx context.Context, currentUserId uint, peerSubjectId string) error
	// MarkGroupRead 前移群聊水位
	MarkGroupRead(ctx context.Context, currentUserId, groupId uint) error
	// MarkMessagesSeen 把对端发来的私聊消息全部标记为已读，幂等
	MarkMessagesSeen(ctx context.Context, currentUserId, otherUserId uint) error
	// UnreadBySender 收件箱角标：按发送者统计未读私聊数
	UnreadBySender(ctx context.Context, userId uint) (map[uint]int, error)
	// UnseenByReceiver 发件回执：按接收者统计对方未读数
	UnseenByReceiver(ctx context.Context, userId uint) (map[uint]int, error)
	// UnreadByGroup 按群统计未读数，包含计数为零的群
	UnreadByGroup(ctx context.Context, userId uint) (map[uint]int, error)
}

// UserService 用户业务接口
// IdP 为身份主数据，本地只落影子行与补充字段
type UserService interface {
	// CreateUser 先在 IdP 创建主体，成功后落本地影子行
	CreateUser(ctx context.Context, req request.CreateUserRequest) (*respond.UserRespond, error)
	// GetUser 按本地ID查用户，展示字段实时取自 IdP
	GetUser(ctx context.Context, id uint) (*respond.UserRespond, error)
	// GetUserBySubject 按 IdP 主体ID查用户
	GetUserBySubject(ctx context.Context, subjectId string) (*respond.UserRespond, error)
	// ResolveLocalId 把 IdP 主体ID换算成本地用户ID，不触发 IdP 查询
	ResolveLocalId(ctx context.Context, subjectId string) (uint, error)
	// ListUsers 列出所有用户
	ListUsers(ctx context.Context) ([]respond.UserRespond, error)
	// UpdateUser 画像字段回写 IdP，补充字段落本地
	UpdateUser(ctx context.Context, id uint, req request.UpdateUserRequest) (*respond.UserRespond, error)
	// DisableUser 停用用户登录，本地行保留
	DisableUser(ctx context.Context, id uint) error
	// DeleteUser 删除 IdP 主体并软删除本地行
	DeleteUser(ctx context.Context, id uint) error
}

// GroupService 群组业务接口
type GroupService interface {
	// CreateGroup 创建群组，创建者成为首个成员兼管理员
	CreateGroup(ctx context.Context, req request.CreateGroupRequest) (*respond.GroupRespond, error)
	// GetGroup 按ID查群组（含成员）
	GetGroup(ctx context.Context, id uint) (*respond.GroupRespond, error)
	// ListGroups 列出所有群组
	ListGroups(ctx context.Context) ([]respond.GroupRespond, error)
	// GroupsForUser 用户加入的所有群组
	GroupsForUser(ctx context.Context, userId uint) ([]respond.GroupRespond, error)
	// UpdateGroup 更新群组信息
	UpdateGroup(ctx context.Context, id uint, req request.UpdateGroupRequest) (*respond.GroupRespond, error)
	// AddMember 添加群成员，封闭群仅管理员可加人
	AddMember(ctx context.Context, groupId uint, operatorId uint, req request.AddGroupMemberRequest) error
	// RemoveMember 移除群成员
	RemoveMember(ctx context.Context, groupId, userId uint) error
	// DeleteGroup 删除群组并清空成员
	DeleteGroup(ctx context.Context, id uint) error
}
