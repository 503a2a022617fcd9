// Package idp 封装外部身份提供方（Keycloak）的管理接口
// 本地库只保存主体ID，姓名/邮箱等展示字段全部来自 IdP
package idp

import "context"

// User IdP 中的用户画像
type User struct {
	Id            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Enabled       bool   `json:"enabled"`
	EmailVerified bool   `json:"emailVerified"`
}

// CreateUserInput 创建 IdP 用户所需字段
type CreateUserInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
	Role      string
}

// UpdateUserInput 更新 IdP 用户画像字段
type UpdateUserInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// Provider 身份提供方接口
// Service 层依赖此接口，测试中用内存实现替换
type Provider interface {
	// GetUser 按主体ID查找用户画像
	// IdP 不可达或主体已消失时返回占位画像，绝不因此让调用方失败
	GetUser(ctx context.Context, subjectId string) User
	// FindUserByEmail 按邮箱查找用户（忽略大小写精确匹配），未找到返回 CodeNotFound
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// ListUsers 列出 IdP 中的所有用户
	ListUsers(ctx context.Context) ([]User, error)
	// CreateUser 创建用户并返回主体ID，用户名/邮箱冲突返回 CodeIdpConflict
	CreateUser(ctx context.Context, input CreateUserInput) (string, error)
	// AssignRole 为用户授予角色，先查 Realm 角色再退到 Client 角色
	AssignRole(ctx context.Context, subjectId, role string) error
	// UpdateUser 更新用户画像
	UpdateUser(ctx context.Context, subjectId string, input UpdateUserInput) error
	// SetEnabled 启用或停用用户（停用即封禁登录，主体保留）
	SetEnabled(ctx context.Context, subjectId string, enabled bool) error
	// DeleteUser 删除用户
	DeleteUser(ctx context.Context, subjectId string) error
}
