package push

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	myredis "qu2data_server/internal/dao/redis"
	"qu2data_server/pkg/constants"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// onlineUsersKey 在线用户集合的缓存键
const onlineUsersKey = "online:users"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	// 跨域校验交给前置的 CORS 层
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client 一条 WebSocket 连接
type Client struct {
	conn   *websocket.Conn
	userId uint
	send   chan []byte

	closeOnce sync.Once
}

// closeSend 关闭下行通道，幂等
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// controlFrame 客户端上行控制帧
// 连接建立后客户端通过 subscribe/unsubscribe 管理群主题
type controlFrame struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// GroupMembership 群成员校验，订阅群主题前确认订阅者在群中
type GroupMembership interface {
	IsMember(groupId, userId uint) (bool, error)
}

// Gateway WebSocket 接入层
// 负责连接升级、读写协程和订阅指令转发，分发逻辑在 Hub
type Gateway struct {
	hub        *Hub
	cache      myredis.AsyncCacheService
	membership GroupMembership
}

// NewGateway 创建接入层
func NewGateway(hub *Hub, cache myredis.AsyncCacheService, membership GroupMembership) *Gateway {
	return &Gateway{hub: hub, cache: cache, membership: membership}
}

// HandleConnection 升级连接并接管其生命周期
// 每个连接自动订阅本人消息主题和通知主题，群主题由客户端按需订阅
func (g *Gateway) HandleConnection(c *gin.Context, userId uint) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		userId: userId,
		send:   make(chan []byte, constants.CHANNEL_SIZE),
	}
	g.hub.Register(client)
	g.hub.Subscribe(client, UserTopic(userId))
	g.hub.Subscribe(client, NotificationTopic(userId))

	g.markOnline(userId, true)

	go g.writeLoop(client)
	go g.readLoop(client)
	zap.L().Info("websocket connected", zap.Uint("userId", userId))
}

// readLoop 读协程，处理订阅控制帧，连接断开时负责注销
func (g *Gateway) readLoop(client *Client) {
	defer func() {
		g.hub.Unregister(client)
		g.markOnline(client.userId, false)
		client.conn.Close()
	}()
	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Warn("websocket read failed", zap.Uint("userId", client.userId), zap.Error(err))
			}
			return
		}
		var ctrl controlFrame
		if err := json.Unmarshal(raw, &ctrl); err != nil {
			zap.L().Warn("websocket control frame decode failed", zap.Uint("userId", client.userId), zap.Error(err))
			continue
		}
		g.handleControl(client, ctrl)
	}
}

// handleControl 处理订阅指令
// 群主题以外的主题不允许客户端自行订阅
func (g *Gateway) handleControl(client *Client, ctrl controlFrame) {
	switch ctrl.Action {
	case "subscribe":
		if !strings.HasPrefix(ctrl.Topic, "/topic/group/") {
			return
		}
		groupId, err := strconv.ParseUint(strings.TrimPrefix(ctrl.Topic, "/topic/group/"), 10, 64)
		if err != nil {
			zap.L().Warn("websocket subscribe with bad group topic",
				zap.Uint("userId", client.userId), zap.String("topic", ctrl.Topic))
			return
		}
		if g.membership != nil {
			ok, err := g.membership.IsMember(uint(groupId), client.userId)
			if err != nil {
				zap.L().Warn("group membership check failed",
					zap.Uint("userId", client.userId), zap.Uint64("groupId", groupId), zap.Error(err))
				return
			}
			if !ok {
				return
			}
		}
		g.hub.Subscribe(client, ctrl.Topic)
	case "unsubscribe":
		g.hub.Unsubscribe(client, ctrl.Topic)
	}
}

// writeLoop 写协程，把 Hub 分发来的帧写给客户端
func (g *Gateway) writeLoop(client *Client) {
	for data := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			zap.L().Warn("websocket write failed", zap.Uint("userId", client.userId), zap.Error(err))
			client.conn.Close()
			return
		}
	}
	// send 通道被 Hub 关闭，连接随之关闭
	client.conn.Close()
}

// OnlineUserIds 当前在线用户的ID列表，升序
// 集合在连接建立与断开时维护，未配置缓存时视为没人在线
func (g *Gateway) OnlineUserIds(ctx context.Context) ([]uint, error) {
	if g.cache == nil {
		return []uint{}, nil
	}
	members, err := g.cache.GetSetMembers(ctx, onlineUsersKey)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(members))
	for _, member := range members {
		v, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			zap.L().Warn("online set holds non-numeric member", zap.String("member", member))
			continue
		}
		ids = append(ids, uint(v))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// markOnline 异步维护在线用户集合
func (g *Gateway) markOnline(userId uint, online bool) {
	if g.cache == nil {
		return
	}
	g.cache.SubmitTask(func() {
		ctx := context.Background()
		var err error
		if online {
			err = g.cache.AddToSet(ctx, onlineUsersKey, userId)
		} else {
			err = g.cache.RemoveFromSet(ctx, onlineUsersKey, userId)
		}
		if err != nil {
			zap.L().Warn("update online set failed", zap.Uint("userId", userId), zap.Error(err))
		}
	})
}
