//go:build integration

package mqtt

import (
	"testing"
	"time"
)

// Integration tests against a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_CommandRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "onkyod-int-roundtrip"
	cfg.TopicPrefix = "onkyod-int"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	err = client.Subscribe(client.Topics().AllReceiverCommands(), 1, func(topic string, payload []byte) error {
		if name, ok := client.Topics().ReceiverFromCommandTopic(topic); ok && name == "living" {
			received <- string(payload)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if client.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", client.SubscriptionCount())
	}

	time.Sleep(100 * time.Millisecond)

	if err := client.Publish(client.Topics().ReceiverCommand("living"), []byte("volume 25"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != "volume 25" {
			t.Errorf("payload = %q, want %q", got, "volume 25")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command not received")
	}
}

func TestIntegration_RetainedState(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "onkyod-int-retained"
	cfg.TopicPrefix = "onkyod-int"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := client.Topics().ReceiverState("living", "volume")
	if err := client.PublishRetained(topic, []byte(`{"value":"30"}`)); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}

	got := make(chan []byte, 1)
	if err := client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		got <- payload
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case p := <-got:
		if string(p) != `{"value":"30"}` {
			t.Errorf("retained payload = %s", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retained state not delivered")
	}
}
