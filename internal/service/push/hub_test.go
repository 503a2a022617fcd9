package push

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestClient(userId uint, buffer int) *Client {
	return &Client{userId: userId, send: make(chan []byte, buffer)}
}

// receive 带超时读取客户端下行帧
func receive(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case data, ok := <-client.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return nil
}

func TestPublishReachesSubscriber(t *testing.T) {
	hub := NewHub()
	go hub.Start()
	defer hub.Close()

	client := newTestClient(10, 4)
	hub.Register(client)
	hub.Subscribe(client, UserTopic(10))
	hub.Publish(UserTopic(10), map[string]string{"content": "bonjour"})

	var env Envelope
	if err := json.Unmarshal(receive(t, client), &env); err != nil {
		t.Fatal(err)
	}
	if env.Topic != UserTopic(10) {
		t.Fatalf("topic = %s", env.Topic)
	}
	var payload map[string]string
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["content"] != "bonjour" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestPublishToOtherTopicNotDelivered(t *testing.T) {
	hub := NewHub()
	go hub.Start()
	defer hub.Close()

	client := newTestClient(10, 4)
	hub.Register(client)
	hub.Subscribe(client, UserTopic(10))

	hub.Publish(UserTopic(99), "pas pour lui")
	hub.Publish(UserTopic(10), "pour lui")

	// 指令按序处理：收到的第一帧必须是自己主题的
	var env Envelope
	if err := json.Unmarshal(receive(t, client), &env); err != nil {
		t.Fatal(err)
	}
	if env.Topic != UserTopic(10) {
		t.Fatalf("received frame for wrong topic: %s", env.Topic)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Start()
	defer hub.Close()

	client := newTestClient(10, 4)
	hub.Register(client)
	hub.Subscribe(client, GroupTopic(7))
	hub.Unsubscribe(client, GroupTopic(7))
	hub.Publish(GroupTopic(7), "après désabonnement")
	hub.Publish(NotificationTopic(10), "jamais abonné")

	select {
	case data := <-client.send:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSlowClientFramesDroppedNotBlocking(t *testing.T) {
	hub := NewHub()
	go hub.Start()
	defer hub.Close()

	slow := newTestClient(10, 1)
	hub.Register(slow)
	hub.Subscribe(slow, UserTopic(10))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(UserTopic(10), i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow client")
	}

	// 缓冲里最多一帧，其余被丢弃
	receive(t, slow)
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub()
	go hub.Start()
	defer hub.Close()

	client := newTestClient(10, 1)
	hub.Register(client)
	hub.Unregister(client)

	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected closed channel, got frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed after unregister")
	}
}
