// Package user 实现用户业务逻辑
// IdP 是身份主数据，本地只保存主体ID和业务补充字段
package user

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"qu2data_server/internal/dao/postgres/repository"
	"qu2data_server/internal/dto/request"
	"qu2data_server/internal/dto/respond"
	"qu2data_server/internal/infrastructure/idp"
	"qu2data_server/internal/model"
	"qu2data_server/internal/service"
	"qu2data_server/pkg/errorx"
)

// userService 用户业务逻辑实现
type userService struct {
	repos *repository.Repositories
	idp   idp.Provider
}

// NewUserService 构造函数
func NewUserService(repos *repository.Repositories, provider idp.Provider) service.UserService {
	return &userService{repos: repos, idp: provider}
}

// CreateUser 创建用户
// 顺序固定为 IdP 在前：只有 IdP 生成的主体ID是全局唯一的；
// IdP 成功而本地落库失败时回滚删除该主体，避免留下无影子行的孤儿身份
func (s *userService) CreateUser(ctx context.Context, req request.CreateUserRequest) (*respond.UserRespond, error) {
	subjectId, err := s.idp.CreateUser(ctx, idp.CreateUserInput{
		Username:  req.UserName,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Role:      req.Role,
	})
	adopted := false
	if err != nil {
		subjectId, err = s.adoptConflictingSubject(ctx, req.Email, err)
		if err != nil {
			return nil, err
		}
		adopted = true
	}

	user := &model.User{
		SubjectId: subjectId,
		JobTitle:  req.JobTitle,
		Phone:     req.Phone,
	}
	if err := s.repos.User.Create(user); err != nil {
		// 收编的主体在本次创建之前就存在，回滚不得删除它
		if !adopted {
			if delErr := s.idp.DeleteUser(ctx, subjectId); delErr != nil {
				zap.L().Error("rollback idp subject after local failure",
					zap.String("subjectId", subjectId), zap.Error(delErr))
			}
		}
		return nil, err
	}

	return &respond.UserRespond{
		Id:         user.ID,
		IdKeycloak: subjectId,
		UserName:   req.UserName,
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		JobTitle:   user.JobTitle,
		Phone:      user.Phone,
	}, nil
}

// adoptConflictingSubject 处理 IdP 冲突：主体已存在于 IdP 但本地没有影子行时收编它
// 提供方先建账号、后台后补影子行的场景由此变得幂等；已有影子行则维持冲突错误
func (s *userService) adoptConflictingSubject(ctx context.Context, email string, createErr error) (string, error) {
	if errorx.GetCode(createErr) != errorx.CodeIdpConflict {
		return "", createErr
	}
	existing, err := s.idp.FindUserByEmail(ctx, email)
	if err != nil {
		return "", createErr
	}
	_, err = s.repos.User.FindBySubjectId(existing.Id)
	if err == nil {
		return "", createErr
	}
	if !errorx.IsNotFound(err) {
		return "", err
	}
	zap.L().Info("adopting existing idp subject",
		zap.String("subjectId", existing.Id), zap.String("email", email))
	return existing.Id, nil
}

// GetUser 查询用户，展示字段实时取自 IdP
func (s *userService) GetUser(ctx context.Context, id uint) (*respond.UserRespond, error) {
	user, err := s.repos.User.FindByID(id)
	if err != nil {
		return nil, err
	}
	return s.toRespond(ctx, user), nil
}

// GetUserBySubject 按 IdP 主体ID查询用户
func (s *userService) GetUserBySubject(ctx context.Context, subjectId string) (*respond.UserRespond, error) {
	user, err := s.repos.User.FindBySubjectId(subjectId)
	if err != nil {
		return nil, err
	}
	return s.toRespond(ctx, user), nil
}

// ResolveLocalId 把 IdP 主体ID换算成本地用户ID
// 认证绑定的热路径，只查本地影子行，不碰 IdP
func (s *userService) ResolveLocalId(ctx context.Context, subjectId string) (uint, error) {
	user, err := s.repos.User.FindBySubjectId(subjectId)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// ListUsers 列出所有用户
func (s *userService) ListUsers(ctx context.Context) ([]respond.UserRespond, error) {
	users, err := s.repos.User.FindAll()
	if err != nil {
		return nil, err
	}
	result := make([]respond.UserRespond, 0, len(users))
	for i := range users {
		result = append(result, *s.toRespond(ctx, &users[i]))
	}
	return result, nil
}

// UpdateUser 更新用户
// 画像字段回写 IdP，补充字段落本地；两边都改时 IdP 在前
func (s *userService) UpdateUser(ctx context.Context, id uint, req request.UpdateUserRequest) (*respond.UserRespond, error) {
	user, err := s.repos.User.FindByID(id)
	if err != nil {
		return nil, err
	}

	if req.UserName != "" || req.Email != "" || req.FirstName != "" || req.LastName != "" {
		current := s.idp.GetUser(ctx, user.SubjectId)
		input := idp.UpdateUserInput{
			Username:  firstNonEmpty(req.UserName, current.Username),
			Email:     firstNonEmpty(req.Email, current.Email),
			FirstName: firstNonEmpty(req.FirstName, current.FirstName),
			LastName:  firstNonEmpty(req.LastName, current.LastName),
		}
		if err := s.idp.UpdateUser(ctx, user.SubjectId, input); err != nil {
			return nil, err
		}
	}

	if req.JobTitle != "" {
		user.JobTitle = req.JobTitle
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if err := s.repos.User.Update(user); err != nil {
		return nil, err
	}
	return s.toRespond(ctx, user), nil
}

// DisableUser 停用用户
// 只封禁 IdP 侧登录，本地行保留，历史消息和会话不受影响
func (s *userService) DisableUser(ctx context.Context, id uint) error {
	user, err := s.repos.User.FindByID(id)
	if err != nil {
		return err
	}
	return s.idp.SetEnabled(ctx, user.SubjectId, false)
}

// DeleteUser 删除用户
// 历史消息仍引用本地行，本地侧只做软删除
func (s *userService) DeleteUser(ctx context.Context, id uint) error {
	user, err := s.repos.User.FindByID(id)
	if err != nil {
		return err
	}
	if err := s.idp.DeleteUser(ctx, user.SubjectId); err != nil && !errorx.IsNotFound(err) {
		return err
	}
	return s.repos.User.SoftDelete(id)
}

// toRespond 拼装响应，IdP 不可达时展示字段为占位值
func (s *userService) toRespond(ctx context.Context, user *model.User) *respond.UserRespond {
	profile := s.idp.GetUser(ctx, user.SubjectId)
	return &respond.UserRespond{
		Id:         user.ID,
		IdKeycloak: user.SubjectId,
		UserName:   profile.Username,
		Email:      profile.Email,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		JobTitle:   user.JobTitle,
		Phone:      user.Phone,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
