// Package push 实现实时推送子系统
// 消息落库成功后由 Service 层向主题发布事件，在线客户端经 WebSocket 收取
// 单机部署走进程内 Hub，多实例部署通过 Kafka 中转后再由各节点本地分发
package push

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// 主题命名沿用前端订阅约定
const (
	userTopicFmt         = "/topic/user/%d"
	groupTopicFmt        = "/topic/group/%d"
	notificationTopicFmt = "/topic/notification/user/%d"
)

// UserTopic 用户私聊消息主题
func UserTopic(userId uint) string {
	return fmt.Sprintf(userTopicFmt, userId)
}

// GroupTopic 群聊消息主题
func GroupTopic(groupId uint) string {
	return fmt.Sprintf(groupTopicFmt, groupId)
}

// NotificationTopic 用户通知主题（新消息提醒横幅）
func NotificationTopic(userId uint) string {
	return fmt.Sprintf(notificationTopicFmt, userId)
}

// Envelope 推送事件信封，WebSocket 下行帧即其 JSON 序列化
type Envelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// Notifier 推送接口
// Service 层只依赖此接口，推送失败绝不影响已完成的落库操作
type Notifier interface {
	// Publish 向主题发布一个事件，payload 会被 JSON 序列化
	Publish(topic string, payload any)
}

// encodeEnvelope 序列化推送事件，payload 不可序列化时返回 nil 并记日志
func encodeEnvelope(topic string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("push payload marshal failed", zap.String("topic", topic), zap.Error(err))
		return nil
	}
	frame, err := json.Marshal(Envelope{Topic: topic, Data: data})
	if err != nil {
		zap.L().Error("push envelope marshal failed", zap.String("topic", topic), zap.Error(err))
		return nil
	}
	return frame
}
