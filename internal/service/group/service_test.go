package group_test

import (
	"context"
	"testing"

	"qu2data_server/internal/dao/postgres"
	"qu2data_server/internal/dao/postgres/repository"
	"qu2data_server/internal/dto/request"
	"qu2data_server/internal/model"
	"qu2data_server/internal/service"
	"qu2data_server/internal/service/group"
	"qu2data_server/pkg/errorx"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newService(t *testing.T) (service.GroupService, *repository.Repositories) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := postgres.Migrate(db); err != nil {
		t.Fatal(err)
	}
	repos := repository.NewRepositories(db)
	return group.NewGroupService(repos), repos
}

func seedUser(t *testing.T, repos *repository.Repositories, subjectId string) *model.User {
	t.Helper()
	user := &model.User{SubjectId: subjectId}
	if err := repos.User.Create(user); err != nil {
		t.Fatal(err)
	}
	return user
}

func TestCreateGroupMakesCreatorAdmin(t *testing.T) {
	svc, repos := newService(t)
	ctx := context.Background()
	creator := seedUser(t, repos, "k-creator")

	rsp, err := svc.CreateGroup(ctx, request.CreateGroupRequest{
		Name:      "équipe ventes",
		CreatorId: creator.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rsp.Members) != 1 {
		t.Fatalf("expected creator as sole member, got %d", len(rsp.Members))
	}
	if rsp.Members[0].UserId != creator.ID || !rsp.Members[0].IsAdmin {
		t.Fatalf("creator membership = %+v", rsp.Members[0])
	}
}

func TestClosedGroupAddMemberRequiresAdmin(t *testing.T) {
	svc, repos := newService(t)
	ctx := context.Background()
	admin := seedUser(t, repos, "k-admin")
	regular := seedUser(t, repos, "k-regular")
	newcomer := seedUser(t, repos, "k-newcomer")

	rsp, err := svc.CreateGroup(ctx, request.CreateGroupRequest{
		Name: "direction", IsClosed: true, CreatorId: admin.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	// 管理员先拉入普通成员
	if err := svc.AddMember(ctx, rsp.Id, admin.ID, request.AddGroupMemberRequest{UserId: regular.ID}); err != nil {
		t.Fatal(err)
	}

	// 普通成员在封闭群里不能拉人
	err = svc.AddMember(ctx, rsp.Id, regular.ID, request.AddGroupMemberRequest{UserId: newcomer.ID})
	if errorx.GetCode(err) != errorx.CodeInvalidParam {
		t.Fatalf("expected admin-only rejection, got %v", err)
	}

	// 重复添加幂等
	if err := svc.AddMember(ctx, rsp.Id, admin.ID, request.AddGroupMemberRequest{UserId: regular.ID}); err != nil {
		t.Fatal(err)
	}
	got, err := svc.GetGroup(ctx, rsp.Id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(got.Members))
	}
}

func TestDeleteGroupClearsMembers(t *testing.T) {
	svc, repos := newService(t)
	ctx := context.Background()
	creator := seedUser(t, repos, "k-creator")

	rsp, err := svc.CreateGroup(ctx, request.CreateGroupRequest{Name: "temporaire", CreatorId: creator.ID})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteGroup(ctx, rsp.Id); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.GetGroup(ctx, rsp.Id); !errorx.IsNotFound(err) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
	groupIds, err := repos.GroupMember.FindGroupIdsByUserId(creator.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(groupIds) != 0 {
		t.Fatalf("memberships not cleared: %v", groupIds)
	}
}
