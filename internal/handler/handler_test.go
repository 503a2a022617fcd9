package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"qu2data_server/internal/dto/request"
	"qu2data_server/internal/dto/respond"
	"qu2data_server/internal/handler"
	"qu2data_server/internal/router"
	"qu2data_server/internal/service"
	"qu2data_server/internal/service/push"
	"qu2data_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// stubMessageService 返回预置结果的消息服务桩
type stubMessageService struct {
	unread map[uint]int
	err    error
}

func (s *stubMessageService) SendPrivate(ctx context.Context, req request.SendPrivateMessageRequest, upload *service.Upload) (*respond.MessageRespond, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &respond.MessageRespond{Id: 1, Content: req.Content, SentById: req.SentById}, nil
}

func (s *stubMessageService) SendGroup(ctx context.Context, req request.SendGroupMessageRequest, upload *service.Upload) (*respond.MessageRespond, error) {
	return &respond.MessageRespond{Id: 2, Content: req.Content, SentById: req.SentById}, nil
}

func (s *stubMessageService) UpdateContent(ctx context.Context, messageId uint, content string) (*respond.MessageRespond, error) {
	return &respond.MessageRespond{Id: messageId, Content: content, IsUpdated: true}, nil
}

func (s *stubMessageService) Delete(ctx context.Context, messageId uint) (*respond.MessageRespond, error) {
	return &respond.MessageRespond{Id: messageId, IsDeleted: true}, nil
}

func (s *stubMessageService) GetBetween(ctx context.Context, userOneId, userTwoId uint) ([]respond.MessageRespond, error) {
	return []respond.MessageRespond{}, nil
}

func (s *stubMessageService) GetGroupMessages(ctx context.Context, groupId uint) ([]respond.MessageRespond, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []respond.MessageRespond{}, nil
}

func (s *stubMessageService) ConversationList(ctx context.Context, userId uint) ([]respond.ConversationEntry, error) {
	return []respond.ConversationEntry{}, nil
}

func (s *stubMessageService) MarkPrivateRead(ctx context.Context, currentUserId uint, peerSubjectId string) error {
	return nil
}

func (s *stubMessageService) MarkGroupRead(ctx context.Context, currentUserId, groupId uint) error {
	return nil
}

func (s *stubMessageService) MarkMessagesSeen(ctx context.Context, currentUserId, otherUserId uint) error {
	return nil
}

func (s *stubMessageService) UnreadBySender(ctx context.Context, userId uint) (map[uint]int, error) {
	return s.unread, nil
}

func (s *stubMessageService) UnseenByReceiver(ctx context.Context, userId uint) (map[uint]int, error) {
	return s.unread, nil
}

func (s *stubMessageService) UnreadByGroup(ctx context.Context, userId uint) (map[uint]int, error) {
	return s.unread, nil
}

// stubUserService 与 stubGroupService 仅满足路由装配
// localId 是令牌主体解析出的本地用户ID，零值时取 1
type stubUserService struct {
	localId    uint
	resolveErr error
}

func (stubUserService) CreateUser(ctx context.Context, req request.CreateUserRequest) (*respond.UserRespond, error) {
	return &respond.UserRespond{Id: 1, IdKeycloak: "k-1", UserName: req.UserName}, nil
}
func (stubUserService) GetUser(ctx context.Context, id uint) (*respond.UserRespond, error) {
	return nil, errorx.Newf(errorx.CodeNotFound, "utilisateur %d introuvable", id)
}
func (stubUserService) GetUserBySubject(ctx context.Context, subjectId string) (*respond.UserRespond, error) {
	return &respond.UserRespond{Id: 1, IdKeycloak: subjectId}, nil
}
func (s stubUserService) ResolveLocalId(ctx context.Context, subjectId string) (uint, error) {
	if s.resolveErr != nil {
		return 0, s.resolveErr
	}
	if s.localId != 0 {
		return s.localId, nil
	}
	return 1, nil
}
func (stubUserService) ListUsers(ctx context.Context) ([]respond.UserRespond, error) {
	return nil, nil
}
func (stubUserService) UpdateUser(ctx context.Context, id uint, req request.UpdateUserRequest) (*respond.UserRespond, error) {
	return &respond.UserRespond{Id: id}, nil
}
func (stubUserService) DisableUser(ctx context.Context, id uint) error { return nil }
func (stubUserService) DeleteUser(ctx context.Context, id uint) error  { return nil }

type stubGroupService struct{}

func (stubGroupService) CreateGroup(ctx context.Context, req request.CreateGroupRequest) (*respond.GroupRespond, error) {
	return &respond.GroupRespond{Id: 1, Name: req.Name}, nil
}
func (stubGroupService) GetGroup(ctx context.Context, id uint) (*respond.GroupRespond, error) {
	return &respond.GroupRespond{Id: id}, nil
}
func (stubGroupService) ListGroups(ctx context.Context) ([]respond.GroupRespond, error) {
	return nil, nil
}
func (stubGroupService) GroupsForUser(ctx context.Context, userId uint) ([]respond.GroupRespond, error) {
	return nil, nil
}
func (stubGroupService) UpdateGroup(ctx context.Context, id uint, req request.UpdateGroupRequest) (*respond.GroupRespond, error) {
	return &respond.GroupRespond{Id: id}, nil
}
func (stubGroupService) AddMember(ctx context.Context, groupId uint, operatorId uint, req request.AddGroupMemberRequest) error {
	return nil
}
func (stubGroupService) RemoveMember(ctx context.Context, groupId, userId uint) error { return nil }
func (stubGroupService) DeleteGroup(ctx context.Context, id uint) error               { return nil }

func newEngine(t *testing.T, msgSvc service.MessageService) *gin.Engine {
	return newEngineWithUsers(t, msgSvc, stubUserService{})
}

func newEngineWithUsers(t *testing.T, msgSvc service.MessageService, userSvc service.UserService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if err := handler.InitTrans("fr"); err != nil {
		t.Fatal(err)
	}
	handlers := handler.NewHandlers(&service.Services{
		Message: msgSvc,
		User:    userSvc,
		Group:   stubGroupService{},
	}, push.NewGateway(push.NewHub(), nil, nil))
	engine := gin.New()
	router.NewRouter(handlers).RegisterRoutes(engine)
	return engine
}

// bearerToken 构造一个带 sub 和 exp 的测试令牌
func bearerToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "k-caller",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + signed
}

func TestUnreadCountsSerializeAsObject(t *testing.T) {
	engine := newEngine(t, &stubMessageService{unread: map[uint]int{10: 1, 20: 3}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/messages/unread/private/5", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var body map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["10"] != 1 || body["20"] != 3 {
		t.Fatalf("body = %v", body)
	}
}

func TestBadQueryParamReturns400WithErrorBody(t *testing.T) {
	engine := newEngine(t, &stubMessageService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/messages/between?user1=abc&user2=2", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["message"] == "" || body["error"] != http.StatusText(http.StatusBadRequest) {
		t.Fatalf("body = %v", body)
	}
}

func TestSendWithoutTokenReturns401(t *testing.T) {
	engine := newEngine(t, &stubMessageService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages",
		strings.NewReader(`{"content":"hi","sentById":1,"receivedById":2}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["message"] == "" || body["error"] != http.StatusText(http.StatusUnauthorized) {
		t.Fatalf("body = %v", body)
	}
}

func TestSendValidReturns201(t *testing.T) {
	engine := newEngine(t, &stubMessageService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages",
		strings.NewReader(`{"content":"bonjour","sentById":1,"receivedById":2}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t))
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var body respond.MessageRespond
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Id != 1 || body.Content != "bonjour" {
		t.Fatalf("body = %+v", body)
	}
}

func TestSendRejectsSenderMismatchingToken(t *testing.T) {
	// 令牌主体解析到本地用户 1，请求体却声明 99
	engine := newEngine(t, &stubMessageService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages",
		strings.NewReader(`{"content":"bonjour","sentById":99,"receivedById":2}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t))
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != http.StatusText(http.StatusUnauthorized) {
		t.Fatalf("body = %v", body)
	}
}

func TestSendAllowedWhenSubjectHasNoLocalRow(t *testing.T) {
	// 服务账号等没有影子行的主体放行
	engine := newEngineWithUsers(t, &stubMessageService{}, stubUserService{
		resolveErr: errorx.New(errorx.CodeNotFound, "utilisateur introuvable"),
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages",
		strings.NewReader(`{"content":"bonjour","sentById":42,"receivedById":2}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t))
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestMarkAsSeenRejectsForeignCurrentUser(t *testing.T) {
	engine := newEngine(t, &stubMessageService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut,
		"/api/messages/mark-as-seen?currentUserId=99&otherUserId=2", nil)
	req.Header.Set("Authorization", bearerToken(t))
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestOnlineUsersEmptyWithoutCache(t *testing.T) {
	engine := newEngine(t, &stubMessageService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users/online", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var ids []uint
	if err := json.Unmarshal(w.Body.Bytes(), &ids); err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Fatalf("ids = %v", ids)
	}
}

func TestValidationErrorTranslated(t *testing.T) {
	engine := newEngine(t, &stubMessageService{})

	// receivedById 缺失
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages",
		strings.NewReader(`{"content":"hi","sentById":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t))
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body["message"], "receivedById") {
		t.Fatalf("message = %q", body["message"])
	}
}

func TestServiceNotFoundMapsTo404(t *testing.T) {
	engine := newEngine(t, &stubMessageService{
		err: errorx.New(errorx.CodeNotFound, "groupe introuvable"),
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/messages/group/7", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["message"] != "groupe introuvable" || body["error"] != http.StatusText(http.StatusNotFound) {
		t.Fatalf("body = %v", body)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	engine := newEngine(t, &stubMessageService{})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "k-caller",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/messages/mark-read/group?currentUserId=1&groupId=2", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}
