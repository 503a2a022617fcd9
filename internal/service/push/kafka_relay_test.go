package push

import (
	"testing"

	"qu2data_server/internal/config"

	"github.com/segmentio/kafka-go"
)

// 无消费组的 Reader 默认从 FirstOffset 起读，
// 中转必须显式定位到末尾，否则每次重启都会重放整个保留窗口
func TestKafkaRelayReaderStartsAtLatest(t *testing.T) {
	relay := NewKafkaRelay(NewHub(), &config.KafkaConfig{
		HostPort:  "localhost:9092",
		PushTopic: "chat-push",
	})
	defer relay.Close()

	if got := relay.consumer.Offset(); got != kafka.LastOffset {
		t.Fatalf("reader offset = %d, want %d", got, kafka.LastOffset)
	}
}
