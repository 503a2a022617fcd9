package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"qu2data_server/internal/config"
	"qu2data_server/pkg/constants"
	"qu2data_server/pkg/errorx"

	"go.uber.org/zap"
)

// KeycloakProvider Provider 接口的 Keycloak Admin REST 实现
// 服务端走 client_credentials 持有自己的管理令牌，令牌缓存到过期前60秒
type KeycloakProvider struct {
	baseUrl      string
	realm        string
	clientId     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewKeycloakProvider 根据配置创建 Keycloak 客户端
func NewKeycloakProvider(cfg *config.KeycloakConfig) *KeycloakProvider {
	return &KeycloakProvider{
		baseUrl:      strings.TrimRight(cfg.BaseUrl, "/"),
		realm:        cfg.Realm,
		clientId:     cfg.ClientId,
		clientSecret: cfg.ClientSecret,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// token 返回有效的管理令牌，过期则重新申请
func (p *KeycloakProvider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.clientId)
	form.Set("client_secret", p.clientSecret)

	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", p.baseUrl, p.realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errorx.Wrap(err, errorx.CodeIdpUnavailable, "构造令牌请求")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", errorx.Wrap(err, errorx.CodeIdpUnavailable, "请求管理令牌")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", errorx.Newf(errorx.CodeIdpUnavailable, "keycloak token endpoint status=%d body=%s", resp.StatusCode, body)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", errorx.Wrap(err, errorx.CodeIdpUnavailable, "解析令牌响应")
	}

	p.accessToken = tokenResp.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return p.accessToken, nil
}

// invalidateToken 令牌失效（收到401后调用，强制下次重新申请）
func (p *KeycloakProvider) invalidateToken() {
	p.mu.Lock()
	p.accessToken = ""
	p.mu.Unlock()
}

// doAdmin 执行一次 Admin REST 请求
// 401 时刷新令牌重试一次，其余状态码原样返回给调用方判断
func (p *KeycloakProvider) doAdmin(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var lastResp *http.Response
	for attempt := 0; attempt < 2; attempt++ {
		tok, err := p.token(ctx)
		if err != nil {
			return nil, err
		}

		var body io.Reader
		if payload != nil {
			raw, err := json.Marshal(payload)
			if err != nil {
				return nil, errorx.Wrap(err, errorx.CodeIdpUnavailable, "序列化请求体")
			}
			body = bytes.NewReader(raw)
		}

		endpoint := fmt.Sprintf("%s/admin/realms/%s%s", p.baseUrl, p.realm, path)
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return nil, errorx.Wrap(err, errorx.CodeIdpUnavailable, "构造管理请求")
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return nil, errorx.Wrapf(err, errorx.CodeIdpUnavailable, "keycloak %s %s", method, path)
		}
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			p.invalidateToken()
			continue
		}
		lastResp = resp
		break
	}
	return lastResp, nil
}

// GetUser 按主体ID查找用户画像
// 任何失败都降级为占位画像，消息渲染不因 IdP 故障中断
func (p *KeycloakProvider) GetUser(ctx context.Context, subjectId string) User {
	placeholder := User{
		Id:        subjectId,
		FirstName: constants.PLACEHOLDER_FIRST_NAME,
		LastName:  constants.PLACEHOLDER_LAST_NAME,
	}
	resp, err := p.doAdmin(ctx, http.MethodGet, "/users/"+url.PathEscape(subjectId), nil)
	if err != nil {
		zap.L().Warn("keycloak get user failed", zap.String("subjectId", subjectId), zap.Error(err))
		return placeholder
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		zap.L().Warn("keycloak get user non-200", zap.String("subjectId", subjectId), zap.Int("status", resp.StatusCode))
		return placeholder
	}
	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		zap.L().Warn("keycloak get user decode failed", zap.String("subjectId", subjectId), zap.Error(err))
		return placeholder
	}
	return user
}

// FindUserByEmail 按邮箱查找用户
// search 参数是模糊匹配，结果里再做忽略大小写的精确筛选
func (p *KeycloakProvider) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	path := fmt.Sprintf("/users?search=%s&first=0&max=50", url.QueryEscape(email))
	resp, err := p.doAdmin(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errorx.Newf(errorx.CodeIdpUnavailable, "keycloak search users status=%d", resp.StatusCode)
	}
	var users []User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeIdpUnavailable, "解析用户搜索结果")
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, errorx.Newf(errorx.CodeNotFound, "utilisateur introuvable pour l'email %s", email)
}

// ListUsers 列出 IdP 中的所有用户
func (p *KeycloakProvider) ListUsers(ctx context.Context) ([]User, error) {
	resp, err := p.doAdmin(ctx, http.MethodGet, "/users", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errorx.Newf(errorx.CodeIdpUnavailable, "keycloak list users status=%d", resp.StatusCode)
	}
	var users []User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeIdpUnavailable, "解析用户列表")
	}
	return users, nil
}

// CreateUser 创建用户并返回主体ID
// 密码设为永久密码，邮箱直接标记已验证（注册即用，不走验证邮件流程）
func (p *KeycloakProvider) CreateUser(ctx context.Context, input CreateUserInput) (string, error) {
	payload := map[string]any{
		"username":      input.Username,
		"email":         input.Email,
		"firstName":     input.FirstName,
		"lastName":      input.LastName,
		"enabled":       true,
		"emailVerified": true,
		"credentials": []map[string]any{{
			"type":      "password",
			"temporary": false,
			"value":     input.Password,
		}},
	}
	resp, err := p.doAdmin(ctx, http.MethodPost, "/users", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusConflict:
		return "", errorx.New(errorx.CodeIdpConflict, "nom d'utilisateur ou email déjà utilisé")
	default:
		body, _ := io.ReadAll(resp.Body)
		return "", errorx.Newf(errorx.CodeIdpUnavailable, "keycloak create user status=%d body=%s", resp.StatusCode, body)
	}

	// 新用户的主体ID在 Location 头的末段
	location := resp.Header.Get("Location")
	if location == "" {
		return "", errorx.New(errorx.CodeIdpUnavailable, "keycloak create user: missing Location header")
	}
	subjectId := location[strings.LastIndex(location, "/")+1:]

	if input.Role != "" {
		if err := p.AssignRole(ctx, subjectId, input.Role); err != nil {
			zap.L().Warn("assign role after create failed",
				zap.String("subjectId", subjectId), zap.String("role", input.Role), zap.Error(err))
		}
	}
	return subjectId, nil
}

// AssignRole 为用户授予角色
// 先按 Realm 角色查找，不存在再退到 Client 角色
func (p *KeycloakProvider) AssignRole(ctx context.Context, subjectId, role string) error {
	realmRole, err := p.fetchRole(ctx, "/roles/"+url.PathEscape(role))
	if err == nil {
		return p.addRoleMapping(ctx, fmt.Sprintf("/users/%s/role-mappings/realm", url.PathEscape(subjectId)), realmRole)
	}

	clientUuid, err := p.clientUuid(ctx)
	if err != nil {
		return err
	}
	clientRole, err := p.fetchRole(ctx, fmt.Sprintf("/clients/%s/roles/%s", clientUuid, url.PathEscape(role)))
	if err != nil {
		return errorx.Newf(errorx.CodeNotFound, "le rôle %s n'existe ni au niveau realm ni au niveau client", role)
	}
	return p.addRoleMapping(ctx, fmt.Sprintf("/users/%s/role-mappings/clients/%s", url.PathEscape(subjectId), clientUuid), clientRole)
}

// fetchRole 查询角色表示
func (p *KeycloakProvider) fetchRole(ctx context.Context, path string) (map[string]any, error) {
	resp, err := p.doAdmin(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errorx.Newf(errorx.CodeNotFound, "role lookup status=%d", resp.StatusCode)
	}
	var role map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&role); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeIdpUnavailable, "解析角色")
	}
	return role, nil
}

// addRoleMapping 提交角色映射
func (p *KeycloakProvider) addRoleMapping(ctx context.Context, path string, role map[string]any) error {
	resp, err := p.doAdmin(ctx, http.MethodPost, path, []map[string]any{role})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return errorx.Newf(errorx.CodeIdpUnavailable, "keycloak role mapping status=%d", resp.StatusCode)
	}
	return nil
}

// clientUuid 查询配置的 clientId 对应的内部 UUID
func (p *KeycloakProvider) clientUuid(ctx context.Context) (string, error) {
	resp, err := p.doAdmin(ctx, http.MethodGet, "/clients?clientId="+url.QueryEscape(p.clientId), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errorx.Newf(errorx.CodeIdpUnavailable, "keycloak lookup client status=%d", resp.StatusCode)
	}
	var clients []struct {
		Id string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&clients); err != nil {
		return "", errorx.Wrap(err, errorx.CodeIdpUnavailable, "解析客户端列表")
	}
	if len(clients) == 0 {
		return "", errorx.Newf(errorx.CodeNotFound, "client %s introuvable", p.clientId)
	}
	return clients[0].Id, nil
}

// UpdateUser 更新用户画像
// Keycloak 的 PUT 是整体替换，先取当前表示再覆盖字段
func (p *KeycloakProvider) UpdateUser(ctx context.Context, subjectId string, input UpdateUserInput) error {
	resp, err := p.doAdmin(ctx, http.MethodGet, "/users/"+url.PathEscape(subjectId), nil)
	if err != nil {
		return err
	}
	var current map[string]any
	func() {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			_ = json.NewDecoder(resp.Body).Decode(&current)
		}
	}()
	if current == nil {
		return errorx.Newf(errorx.CodeNotFound, "utilisateur %s introuvable", subjectId)
	}

	current["firstName"] = input.FirstName
	current["lastName"] = input.LastName
	current["email"] = input.Email
	current["username"] = input.Username

	updateResp, err := p.doAdmin(ctx, http.MethodPut, "/users/"+url.PathEscape(subjectId), current)
	if err != nil {
		return err
	}
	defer updateResp.Body.Close()
	if updateResp.StatusCode != http.StatusNoContent && updateResp.StatusCode != http.StatusOK {
		return errorx.Newf(errorx.CodeIdpUnavailable, "keycloak update user status=%d", updateResp.StatusCode)
	}
	return nil
}

// SetEnabled 启用或停用用户
// 同样走先取后改的整体替换
func (p *KeycloakProvider) SetEnabled(ctx context.Context, subjectId string, enabled bool) error {
	resp, err := p.doAdmin(ctx, http.MethodGet, "/users/"+url.PathEscape(subjectId), nil)
	if err != nil {
		return err
	}
	var current map[string]any
	func() {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			_ = json.NewDecoder(resp.Body).Decode(&current)
		}
	}()
	if current == nil {
		return errorx.Newf(errorx.CodeNotFound, "utilisateur %s introuvable", subjectId)
	}

	current["enabled"] = enabled
	updateResp, err := p.doAdmin(ctx, http.MethodPut, "/users/"+url.PathEscape(subjectId), current)
	if err != nil {
		return err
	}
	defer updateResp.Body.Close()
	if updateResp.StatusCode != http.StatusNoContent && updateResp.StatusCode != http.StatusOK {
		return errorx.Newf(errorx.CodeIdpUnavailable, "keycloak set enabled status=%d", updateResp.StatusCode)
	}
	return nil
}

// DeleteUser 删除用户
func (p *KeycloakProvider) DeleteUser(ctx context.Context, subjectId string) error {
	resp, err := p.doAdmin(ctx, http.MethodDelete, "/users/"+url.PathEscape(subjectId), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return errorx.Newf(errorx.CodeNotFound, "utilisateur %s introuvable", subjectId)
	default:
		return errorx.Newf(errorx.CodeIdpUnavailable, "keycloak delete user status=%d", resp.StatusCode)
	}
}

var _ Provider = (*KeycloakProvider)(nil)
