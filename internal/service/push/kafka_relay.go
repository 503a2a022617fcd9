package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"qu2data_server/internal/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaRelay Kafka 中转推送
// 发布端把信封写入 Kafka 主题，各实例的消费循环读回后交给本地 Hub 分发，
// 多实例部署下用户连到哪个节点都能收到推送
type KafkaRelay struct {
	hub      *Hub
	producer *kafka.Writer
	consumer *kafka.Reader
	cancel   context.CancelFunc
}

// NewKafkaRelay 创建 Kafka 中转
func NewKafkaRelay(hub *Hub, cfg *config.KafkaConfig) *KafkaRelay {
	producer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.HostPort),
		Topic:                  cfg.PushTopic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireNone,
		AllowAutoTopicCreation: false,
	}
	// 不挂消费组：每个实例全量收取主题上的事件，各自本地分发
	consumer := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.HostPort},
		Topic:    cfg.PushTopic,
		MinBytes: 1,
		MaxBytes: 10 << 20,
	})
	// 无消费组的 Reader 默认从 FirstOffset 读起，重启会重放整个保留窗口
	// 定位到末尾，只收取本实例上线后的新事件
	if err := consumer.SetOffset(kafka.LastOffset); err != nil {
		zap.L().Error("kafka push reader seek failed", zap.Error(err))
	}
	return &KafkaRelay{
		hub:      hub,
		producer: producer,
		consumer: consumer,
	}
}

// Publish 把事件写入 Kafka，本地不直接分发
// 写入失败只记日志，推送不反压业务
func (r *KafkaRelay) Publish(topic string, payload any) {
	data := encodeEnvelope(topic, payload)
	if data == nil {
		return
	}
	err := r.producer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(topic),
		Value: data,
	})
	if err != nil {
		zap.L().Error("kafka push publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// Start 消费循环，读回信封交给本地 Hub
func (r *KafkaRelay) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go func() {
		for {
			msg, err := r.consumer.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					return
				}
				zap.L().Error("kafka push consume failed", zap.Error(err))
				continue
			}
			var env Envelope
			if err := json.Unmarshal(msg.Value, &env); err != nil {
				zap.L().Error("kafka push envelope decode failed", zap.Error(err))
				continue
			}
			r.hub.Publish(env.Topic, env.Data)
		}
	}()
}

// Close 关闭生产与消费端
func (r *KafkaRelay) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	if err := r.producer.Close(); err != nil {
		zap.L().Error(err.Error())
	}
	if err := r.consumer.Close(); err != nil {
		zap.L().Error(err.Error())
	}
}

var _ Notifier = (*KafkaRelay)(nil)
