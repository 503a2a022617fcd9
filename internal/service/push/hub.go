package push

import (
	"qu2data_server/pkg/constants"

	"go.uber.org/zap"
)

// commandKind 指令类型
type commandKind int

const (
	cmdRegister commandKind = iota
	cmdUnregister
	cmdSubscribe
	cmdUnsubscribe
	cmdBroadcast
)

// command 投给事件循环的指令
// 注册、订阅和分发走同一条通道，先注册后订阅的顺序得以保证
type command struct {
	kind   commandKind
	client *Client
	topic  string
	data   []byte
}

// Hub 进程内推送中枢
// 所有状态只在 Start 的事件循环里读写，外部通过通道投递指令，无锁
type Hub struct {
	commands chan command
	done     chan struct{}

	// topics 主题到订阅者集合的映射，仅事件循环内访问
	topics map[string]map[*Client]struct{}
	// clients 在线客户端及其订阅集合，仅事件循环内访问
	clients map[*Client]map[string]struct{}
}

// NewHub 创建推送中枢
func NewHub() *Hub {
	return &Hub{
		commands: make(chan command, constants.CHANNEL_SIZE),
		done:     make(chan struct{}),
		topics:   make(map[string]map[*Client]struct{}),
		clients:  make(map[*Client]map[string]struct{}),
	}
}

// Start 事件循环，处理注册、订阅与分发
// 在独立协程中运行，Close 后退出
func (h *Hub) Start() {
	for {
		select {
		case cmd := <-h.commands:
			h.handle(cmd)
		case <-h.done:
			for client := range h.clients {
				h.removeClient(client)
			}
			return
		}
	}
}

func (h *Hub) handle(cmd command) {
	switch cmd.kind {
	case cmdRegister:
		if cmd.client == nil {
			return
		}
		h.clients[cmd.client] = make(map[string]struct{})
		zap.L().Info("push client online", zap.Uint("userId", cmd.client.userId))
	case cmdUnregister:
		if cmd.client == nil {
			return
		}
		h.removeClient(cmd.client)
	case cmdSubscribe:
		h.addSubscription(cmd.client, cmd.topic)
	case cmdUnsubscribe:
		h.removeSubscription(cmd.client, cmd.topic)
	case cmdBroadcast:
		h.dispatch(cmd.topic, cmd.data)
	}
}

// Close 停止事件循环并断开所有客户端
func (h *Hub) Close() {
	close(h.done)
}

// Publish 向主题发布事件
// 指令通道满时丢弃并告警，推送属尽力而为，不反压业务
func (h *Hub) Publish(topic string, payload any) {
	data := encodeEnvelope(topic, payload)
	if data == nil {
		return
	}
	select {
	case h.commands <- command{kind: cmdBroadcast, topic: topic, data: data}:
	default:
		zap.L().Warn("push command channel full, frame dropped", zap.String("topic", topic))
	}
}

// Register 客户端上线
func (h *Hub) Register(client *Client) {
	h.submit(command{kind: cmdRegister, client: client})
}

// Unregister 客户端下线
func (h *Hub) Unregister(client *Client) {
	h.submit(command{kind: cmdUnregister, client: client})
}

// Subscribe 订阅主题
func (h *Hub) Subscribe(client *Client, topic string) {
	h.submit(command{kind: cmdSubscribe, client: client, topic: topic})
}

// Unsubscribe 退订主题
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.submit(command{kind: cmdUnsubscribe, client: client, topic: topic})
}

// submit 投递生命周期指令，Hub 已关闭时直接放弃
func (h *Hub) submit(cmd command) {
	select {
	case h.commands <- cmd:
	case <-h.done:
	}
}

func (h *Hub) addSubscription(client *Client, topic string) {
	if client == nil || topic == "" {
		return
	}
	topics, ok := h.clients[client]
	if !ok {
		// 未注册的客户端不接受订阅
		return
	}
	topics[topic] = struct{}{}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][client] = struct{}{}
}

func (h *Hub) removeSubscription(client *Client, topic string) {
	if client == nil {
		return
	}
	if topics, ok := h.clients[client]; ok {
		delete(topics, topic)
	}
	if members, ok := h.topics[topic]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	topics, ok := h.clients[client]
	if !ok {
		return
	}
	for topic := range topics {
		if members, exists := h.topics[topic]; exists {
			delete(members, client)
			if len(members) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	delete(h.clients, client)
	client.closeSend()
	zap.L().Info("push client offline", zap.Uint("userId", client.userId))
}

// dispatch 把帧投给主题的所有订阅者
// 单个客户端发送缓冲满时只丢该客户端的帧，慢客户端不拖累他人
func (h *Hub) dispatch(topic string, data []byte) {
	members, ok := h.topics[topic]
	if !ok {
		return
	}
	for client := range members {
		select {
		case client.send <- data:
		default:
			zap.L().Warn("push client send buffer full, frame dropped",
				zap.Uint("userId", client.userId), zap.String("topic", topic))
		}
	}
}

var _ Notifier = (*Hub)(nil)
