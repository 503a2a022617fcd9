package message_test

import (
	"context"
	"testing"
	"time"

	"qu2data_server/internal/dao/postgres"
	"qu2data_server/internal/dao/postgres/repository"
	"qu2data_server/internal/dto/request"
	"qu2data_server/internal/infrastructure/idp"
	"qu2data_server/internal/model"
	"qu2data_server/internal/service/message"
	"qu2data_server/internal/service/push"
	"qu2data_server/pkg/constants"
	"qu2data_server/pkg/errorx"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubProvider 内存版身份提供方
// profiles 为空的主体返回占位画像，模拟 IdP 不可达时的降级行为
type stubProvider struct {
	profiles map[string]idp.User
}

func (s *stubProvider) GetUser(ctx context.Context, subjectId string) idp.User {
	if profile, ok := s.profiles[subjectId]; ok {
		return profile
	}
	return idp.User{
		Id:        subjectId,
		FirstName: constants.PLACEHOLDER_FIRST_NAME,
		LastName:  constants.PLACEHOLDER_LAST_NAME,
	}
}

func (s *stubProvider) FindUserByEmail(ctx context.Context, email string) (*idp.User, error) {
	return nil, errorx.Newf(errorx.CodeNotFound, "utilisateur introuvable pour l'email %s", email)
}

func (s *stubProvider) ListUsers(ctx context.Context) ([]idp.User, error) { return nil, nil }

func (s *stubProvider) CreateUser(ctx context.Context, input idp.CreateUserInput) (string, error) {
	return "stub-subject", nil
}

func (s *stubProvider) AssignRole(ctx context.Context, subjectId, role string) error { return nil }

func (s *stubProvider) UpdateUser(ctx context.Context, subjectId string, input idp.UpdateUserInput) error {
	return nil
}

func (s *stubProvider) SetEnabled(ctx context.Context, subjectId string, enabled bool) error {
	return nil
}

func (s *stubProvider) DeleteUser(ctx context.Context, subjectId string) error { return nil }

// recordingNotifier 记录所有推送调用
type recordingNotifier struct {
	topics   []string
	payloads []any
}

func (n *recordingNotifier) Publish(topic string, payload any) {
	n.topics = append(n.topics, topic)
	n.payloads = append(n.payloads, payload)
}

func (n *recordingNotifier) published(topic string) bool {
	for _, t := range n.topics {
		if t == topic {
			return true
		}
	}
	return false
}

func newFixture(t *testing.T) (*repository.Repositories, *stubProvider, *recordingNotifier) {
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
	provider := &stubProvider{profiles: map[string]idp.User{}}
	notifier := &recordingNotifier{}
	return repos, provider, notifier
}

func seedUser(t *testing.T, repos *repository.Repositories, subjectId string) *model.User {
	t.Helper()
	user := &model.User{SubjectId: subjectId}
	if err := repos.User.Create(user); err != nil {
		t.Fatal(err)
	}
	return user
}

func seedGroupWithMembers(t *testing.T, repos *repository.Repositories, name string, memberIds ...uint) *model.Group {
	t.Helper()
	group := &model.Group{Name: name}
	if err := repos.Group.Create(group); err != nil {
		t.Fatal(err)
	}
	for _, id := range memberIds {
		if err := repos.GroupMember.Create(&model.GroupMember{GroupId: group.ID, UserId: id}); err != nil {
			t.Fatal(err)
		}
	}
	return group
}

func TestSendPrivateAndUnreadFlow(t *testing.T) {
	repos, provider, notifier := newFixture(t)
	svc := message.NewMessageService(repos, nil, provider, nil, notifier)
	ctx := context.Background()

	alice := seedUser(t, repos, "k-alice")
	bob := seedUser(t, repos, "k-bob")
	provider.profiles["k-alice"] = idp.User{Id: "k-alice", FirstName: "Alice", LastName: "Martin"}

	rsp, err := svc.SendPrivate(ctx, request.SendPrivateMessageRequest{
		Content:      "bonjour",
		SentById:     alice.ID,
		ReceivedById: bob.ID,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rsp.Id == 0 || rsp.IsDeleted {
		t.Fatalf("unexpected respond: %+v", rsp)
	}

	// 整条消息推给接收者，另有一条短通知横幅
	if !notifier.published(push.UserTopic(bob.ID)) {
		t.Fatal("message not pushed to receiver topic")
	}
	if !notifier.published(push.NotificationTopic(bob.ID)) {
		t.Fatal("notification banner not pushed")
	}
	banner := notifier.payloads[len(notifier.payloads)-1]
	if s, ok := banner.(string); !ok || s != "Nouveau message de Alice" {
		t.Fatalf("banner = %v", banner)
	}

	// 接收者的未读角标按发送者计数
	unread, err := svc.UnreadBySender(ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if unread[alice.ID] != 1 {
		t.Fatalf("unread = %v", unread)
	}

	// 显式已读后计数归零，零计数的发送者不出现
	if err := svc.MarkMessagesSeen(ctx, bob.ID, alice.ID); err != nil {
		t.Fatal(err)
	}
	unread, err = svc.UnreadBySender(ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 0 {
		t.Fatalf("unread after seen = %v", unread)
	}

	// 重复标记幂等
	if err := svc.MarkMessagesSeen(ctx, bob.ID, alice.ID); err != nil {
		t.Fatal(err)
	}

	// 发送者侧回执此时也归零
	unseen, err := svc.UnseenByReceiver(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(unseen) != 0 {
		t.Fatalf("unseen after seen = %v", unseen)
	}
}

func TestSendPrivateValidation(t *testing.T) {
	repos, provider, notifier := newFixture(t)
	svc := message.NewMessageService(repos, nil, provider, nil, notifier)
	ctx := context.Background()

	alice := seedUser(t, repos, "k-alice")
	bob := seedUser(t, repos, "k-bob")

	// 空内容且无附件
	if _, err := svc.SendPrivate(ctx, request.SendPrivateMessageRequest{
		Content: "   ", SentById: alice.ID, ReceivedById: bob.ID,
	}, nil); errorx.GetCode(err) != errorx.CodeInvalidParam {
		t.Fatalf("expected invalid param, got %v", err)
	}

	// 自发自收
	if _, err := svc.SendPrivate(ctx, request.SendPrivateMessageRequest{
		Content: "hi", SentById: alice.ID, ReceivedById: alice.ID,
	}, nil); errorx.GetCode(err) != errorx.CodeInvalidParam {
		t.Fatalf("expected invalid param for self-send, got %v", err)
	}

	// 不存在的接收者
	if _, err := svc.SendPrivate(ctx, request.SendPrivateMessageRequest{
		Content: "hi", SentById: alice.ID, ReceivedById: 9999,
	}, nil); !errorx.IsNotFound(err) {
		t.Fatalf("expected not-found receiver, got %v", err)
	}
}

func TestGroupUnreadWatermark(t *testing.T) {
	repos, provider, notifier := newFixture(t)
	svc := message.NewMessageService(repos, nil, provider, nil, notifier)
	ctx := context.Background()

	alice := seedUser(t, repos, "k-alice")
	bob := seedUser(t, repos, "k-bob")
	group := seedGroupWithMembers(t, repos, "ventes", alice.ID, bob.ID)
	quiet := seedGroupWithMembers(t, repos, "silencieux", bob.ID)

	for i := 0; i < 3; i++ {
		if _, err := svc.SendGroup(ctx, request.SendGroupMessageRequest{
			Content: "point du matin", SentById: alice.ID, GroupId: group.ID,
		}, nil); err != nil {
			t.Fatal(err)
		}
	}

	unread, err := svc.UnreadByGroup(ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if unread[group.ID] != 3 {
		t.Fatalf("unread = %v", unread)
	}
	// 没有消息的群也返回，计数为零
	if count, ok := unread[quiet.ID]; !ok || count != 0 {
		t.Fatalf("quiet group must be present with zero, got %v", unread)
	}

	// 前移水位后清零
	if err := svc.MarkGroupRead(ctx, bob.ID, group.ID); err != nil {
		t.Fatal(err)
	}
	unread, err = svc.UnreadByGroup(ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if unread[group.ID] != 0 {
		t.Fatalf("unread after mark-read = %v", unread)
	}

	// 水位之后的新消息重新计数
	time.Sleep(5 * time.Millisecond)
	if _, err := svc.SendGroup(ctx, request.SendGroupMessageRequest{
		Content: "relance", SentById: alice.ID, GroupId: group.ID,
	}, nil); err != nil {
		t.Fatal(err)
	}
	unread, err = svc.UnreadByGroup(ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if unread[group.ID] != 1 {
		t.Fatalf("unread after new message = %v", unread)
	}
}

func TestSendGroupRequiresMembership(t *testing.T) {
	repos, provider, notifier := newFixture(t)
	svc := message.NewMessageService(repos, nil, provider, nil, notifier)
	ctx := context.Background()

	alice := seedUser(t, repos, "k-alice")
	outsider := seedUser(t, repos, "k-out")
	group := seedGroupWithMembers(t, repos, "ventes", alice.ID)

	_, err := svc.SendGroup(ctx, request.SendGroupMessageRequest{
		Content: "hi", SentById: outsider.ID, GroupId: group.ID,
	}, nil)
	if errorx.GetCode(err) != errorx.CodeInvalidParam {
		t.Fatalf("expected membership rejection, got %v", err)
	}
}

func TestDeleteTombstoneAndEditRefusal(t *testing.T) {
	repos, provider, notifier := newFixture(t)
	svc := message.NewMessageService(repos, nil, provider, nil, notifier)
	ctx := context.Background()

	alice := seedUser(t, repos, "k-alice")
	bob := seedUser(t, repos, "k-bob")

	rsp, err := svc.SendPrivate(ctx, request.SendPrivateMessageRequest{
		Content: "brouillon", SentById: alice.ID, ReceivedById: bob.ID,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	edited, err := svc.UpdateContent(ctx, rsp.Id, "version corrigée")
	if err != nil {
		t.Fatal(err)
	}
	if !edited.IsUpdated || edited.Content != "version corrigée" {
		t.Fatalf("edited = %+v", edited)
	}

	deleted, err := svc.Delete(ctx, rsp.Id)
	if err != nil {
		t.Fatal(err)
	}
	if !deleted.IsDeleted || deleted.Content != constants.TOMBSTONE_CONTENT {
		t.Fatalf("deleted = %+v", deleted)
	}

	// 已删除的消息拒绝再编辑
	if _, err := svc.UpdateContent(ctx, rsp.Id, "trop tard"); errorx.GetCode(err) != errorx.CodeInvalidParam {
		t.Fatalf("expected edit refusal on deleted message, got %v", err)
	}
}

func TestConversationListOrdering(t *testing.T) {
	repos, provider, notifier := newFixture(t)
	svc := message.NewMessageService(repos, nil, provider, nil, notifier)
	ctx := context.Background()

	alice := seedUser(t, repos, "k-alice")
	bob := seedUser(t, repos, "k-bob")
	carol := seedUser(t, repos, "k-carol")
	provider.profiles["k-bob"] = idp.User{Id: "k-bob", FirstName: "Bob", LastName: "Durand"}

	if _, err := svc.SendPrivate(ctx, request.SendPrivateMessageRequest{
		Content: "premier", SentById: alice.ID, ReceivedById: bob.ID,
	}, nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := svc.SendPrivate(ctx, request.SendPrivateMessageRequest{
		Content: "second", SentById: carol.ID, ReceivedById: alice.ID,
	}, nil); err != nil {
		t.Fatal(err)
	}

	list, err := svc.ConversationList(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	// 最近活跃的会话排在前面
	if list[0].PostgresId != carol.ID || list[1].PostgresId != bob.ID {
		t.Fatalf("order = %v then %v", list[0].PostgresId, list[1].PostgresId)
	}
	if list[1].FirstName != "Bob" || list[1].LastName != "Durand" {
		t.Fatalf("profile not resolved: %+v", list[1])
	}
	if list[0].Type != "user" {
		t.Fatalf("type = %s", list[0].Type)
	}
}

func TestGroupMessagesSenderNameFallback(t *testing.T) {
	repos, provider, notifier := newFixture(t)
	svc := message.NewMessageService(repos, nil, provider, nil, notifier)
	ctx := context.Background()

	alice := seedUser(t, repos, "k-alice")
	group := seedGroupWithMembers(t, repos, "ventes", alice.ID)

	// 发送时 IdP 在线，快照写入
	provider.profiles["k-alice"] = idp.User{Id: "k-alice", FirstName: "Alice", LastName: "Martin"}
	if _, err := svc.SendGroup(ctx, request.SendGroupMessageRequest{
		Content: "avec profil", SentById: alice.ID, GroupId: group.ID,
	}, nil); err != nil {
		t.Fatal(err)
	}

	// IdP 随后不可达：实时解析失败，渲染退回快照
	delete(provider.profiles, "k-alice")
	msgs, err := svc.GetGroupMessages(ctx, group.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].SenderName != "Alice Martin" {
		t.Fatalf("senderName = %q", msgs[0].SenderName)
	}

	// 既无画像又无快照：占位姓名
	if err := repos.Message.Create(&model.Message{
		Content:   "sans rien",
		Timestamp: time.Now(),
		SenderId:  alice.ID,
		GroupId:   &group.ID,
	}); err != nil {
		t.Fatal(err)
	}
	msgs, err = svc.GetGroupMessages(ctx, group.ID)
	if err != nil {
		t.Fatal(err)
	}
	last := msgs[len(msgs)-1]
	want := constants.PLACEHOLDER_FIRST_NAME + " " + constants.PLACEHOLDER_LAST_NAME
	if last.SenderName != want {
		t.Fatalf("senderName = %q, want %q", last.SenderName, want)
	}
}

// listCache 内存版缓存，任务同步执行
type listCache struct {
	store map[string]string
}

func newListCache() *listCache {
	return &listCache{store: map[string]string{}}
}

func (c *listCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.store[key] = value
	return nil
}

func (c *listCache) Get(ctx context.Context, key string) (string, error) {
	return c.store[key], nil
}

func (c *listCache) GetOrError(ctx context.Context, key string) (string, error) {
	if v, ok := c.store[key]; ok {
		return v, nil
	}
	return "", errorx.Newf(errorx.CodeNotFound, "clé %s absente", key)
}

func (c *listCache) Delete(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}

func (c *listCache) DeleteByPattern(ctx context.Context, pattern string) error     { return nil }
func (c *listCache) DeleteByPatterns(ctx context.Context, patterns []string) error { return nil }
func (c *listCache) AddToSet(ctx context.Context, key string, members ...interface{}) error {
	return nil
}
func (c *listCache) GetSetMembers(ctx context.Context, key string) ([]string, error) {
	return nil, nil
}
func (c *listCache) RemoveFromSet(ctx context.Context, key string, members ...interface{}) error {
	return nil
}
func (c *listCache) SubmitTask(action func()) { action() }

func TestGroupMessagesNameCurrentDespiteCache(t *testing.T) {
	repos, provider, notifier := newFixture(t)
	cache := newListCache()
	svc := message.NewMessageService(repos, cache, provider, nil, notifier)
	ctx := context.Background()

	alice := seedUser(t, repos, "k-alice")
	group := seedGroupWithMembers(t, repos, "ventes", alice.ID)
	provider.profiles["k-alice"] = idp.User{Id: "k-alice", FirstName: "Alice", LastName: "Martin"}

	if _, err := svc.SendGroup(ctx, request.SendGroupMessageRequest{
		Content: "salut", SentById: alice.ID, GroupId: group.ID,
	}, nil); err != nil {
		t.Fatal(err)
	}

	// 第一次读取回填缓存
	msgs, err := svc.GetGroupMessages(ctx, group.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].SenderName != "Alice Martin" {
		t.Fatalf("msgs = %+v", msgs)
	}
	if len(cache.store) != 1 {
		t.Fatalf("expected cached list, store = %v", cache.store)
	}

	// IdP 侧改名后再读取：命中缓存也要返回当前姓名
	provider.profiles["k-alice"] = idp.User{Id: "k-alice", FirstName: "Alicia", LastName: "Martin"}
	msgs, err = svc.GetGroupMessages(ctx, group.ID)
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].SenderName != "Alicia Martin" {
		t.Fatalf("senderName = %q, want %q", msgs[0].SenderName, "Alicia Martin")
	}
}
