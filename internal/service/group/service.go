// Package group 实现群组业务逻辑
package group

import (
	"context"

	"qu2data_server/internal/dao/postgres/repository"
	"qu2data_server/internal/dto/request"
	"qu2data_server/internal/dto/respond"
	"qu2data_server/internal/model"
	"qu2data_server/internal/service"
	"qu2data_server/pkg/errorx"
)

// groupService 群组业务逻辑实现
type groupService struct {
	repos *repository.Repositories
}

// NewGroupService 构造函数
func NewGroupService(repos *repository.Repositories) service.GroupService {
	return &groupService{repos: repos}
}

// CreateGroup 创建群组
// 建群与首个成员（创建者，管理员身份）在同一事务内写入
func (s *groupService) CreateGroup(ctx context.Context, req request.CreateGroupRequest) (*respond.GroupRespond, error) {
	if _, err := s.repos.User.FindByID(req.CreatorId); err != nil {
		return nil, err
	}

	group := &model.Group{
		Name:        req.Name,
		Description: req.Description,
		IsClosed:    req.IsClosed,
	}
	err := s.repos.Transaction(func(tx *repository.Repositories) error {
		if err := tx.Group.Create(group); err != nil {
			return err
		}
		return tx.GroupMember.Create(&model.GroupMember{
			GroupId: group.ID,
			UserId:  req.CreatorId,
			IsAdmin: true,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetGroup(ctx, group.ID)
}

// GetGroup 查询群组（含成员列表）
func (s *groupService) GetGroup(ctx context.Context, id uint) (*respond.GroupRespond, error) {
	group, err := s.repos.Group.FindByID(id)
	if err != nil {
		return nil, err
	}
	members, err := s.repos.GroupMember.FindByGroupId(id)
	if err != nil {
		return nil, err
	}
	return toRespond(group, members), nil
}

// ListGroups 列出所有群组
func (s *groupService) ListGroups(ctx context.Context) ([]respond.GroupRespond, error) {
	groups, err := s.repos.Group.FindAll()
	if err != nil {
		return nil, err
	}
	result := make([]respond.GroupRespond, 0, len(groups))
	for i := range groups {
		result = append(result, *toRespond(&groups[i], nil))
	}
	return result, nil
}

// GroupsForUser 用户加入的所有群组
func (s *groupService) GroupsForUser(ctx context.Context, userId uint) ([]respond.GroupRespond, error) {
	groupIds, err := s.repos.GroupMember.FindGroupIdsByUserId(userId)
	if err != nil {
		return nil, err
	}
	groups, err := s.repos.Group.FindByIDs(groupIds)
	if err != nil {
		return nil, err
	}
	result := make([]respond.GroupRespond, 0, len(groups))
	for i := range groups {
		result = append(result, *toRespond(&groups[i], nil))
	}
	return result, nil
}

// UpdateGroup 更新群组信息
func (s *groupService) UpdateGroup(ctx context.Context, id uint, req request.UpdateGroupRequest) (*respond.GroupRespond, error) {
	group, err := s.repos.Group.FindByID(id)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		group.Name = req.Name
	}
	if req.Description != "" {
		group.Description = req.Description
	}
	if req.IsClosed != nil {
		group.IsClosed = *req.IsClosed
	}
	if err := s.repos.Group.Update(group); err != nil {
		return nil, err
	}
	return s.GetGroup(ctx, id)
}

// AddMember 添加群成员
// 封闭群只有群管理员可以加人
func (s *groupService) AddMember(ctx context.Context, groupId uint, operatorId uint, req request.AddGroupMemberRequest) error {
	group, err := s.repos.Group.FindByID(groupId)
	if err != nil {
		return err
	}
	if _, err := s.repos.User.FindByID(req.UserId); err != nil {
		return err
	}

	if group.IsClosed {
		operatorIsAdmin, err := s.isAdmin(groupId, operatorId)
		if err != nil {
			return err
		}
		if !operatorIsAdmin {
			return errorx.New(errorx.CodeInvalidParam, "groupe fermé, seul un administrateur peut ajouter des membres")
		}
	}

	alreadyMember, err := s.repos.GroupMember.IsMember(groupId, req.UserId)
	if err != nil {
		return err
	}
	if alreadyMember {
		return nil
	}
	return s.repos.GroupMember.Create(&model.GroupMember{
		GroupId:  groupId,
		UserId:   req.UserId,
		Nickname: req.Nickname,
		IsAdmin:  req.IsAdmin,
	})
}

// RemoveMember 移除群成员
func (s *groupService) RemoveMember(ctx context.Context, groupId, userId uint) error {
	if _, err := s.repos.Group.FindByID(groupId); err != nil {
		return err
	}
	return s.repos.GroupMember.Delete(groupId, userId)
}

// DeleteGroup 删除群组并清空成员
func (s *groupService) DeleteGroup(ctx context.Context, id uint) error {
	if _, err := s.repos.Group.FindByID(id); err != nil {
		return err
	}
	return s.repos.Transaction(func(tx *repository.Repositories) error {
		if err := tx.GroupMember.DeleteByGroupId(id); err != nil {
			return err
		}
		return tx.Group.SoftDelete(id)
	})
}

// isAdmin 判断用户是否为群管理员
func (s *groupService) isAdmin(groupId, userId uint) (bool, error) {
	members, err := s.repos.GroupMember.FindByGroupId(groupId)
	if err != nil {
		return false, err
	}
	for i := range members {
		if members[i].UserId == userId {
			return members[i].IsAdmin, nil
		}
	}
	return false, nil
}

// toRespond 拼装群组响应
func toRespond(group *model.Group, members []model.GroupMember) *respond.GroupRespond {
	rsp := &respond.GroupRespond{
		Id:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		IsClosed:    group.IsClosed,
	}
	for i := range members {
		rsp.Members = append(rsp.Members, respond.GroupMemberRespond{
			UserId:   members[i].UserId,
			Nickname: members[i].Nickname,
			IsAdmin:  members[i].IsAdmin,
		})
	}
	return rsp
}
