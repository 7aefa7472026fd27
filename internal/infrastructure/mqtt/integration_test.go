//go:build integration

package mqtt

import (
	"errors"
	"testing"
	"time"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func connectTest(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

func TestIntegration_ConnectInvalidBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999

	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_HealthAndClose(t *testing.T) {
	client := connectTest(t, "lpwan-int-health")

	if err := client.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

func TestIntegration_IPUplinkRoundtrip(t *testing.T) {
	client := connectTest(t, "lpwan-int-uplink")

	received := make(chan string, 1)
	err := client.Subscribe(Topics{}.AllIPUplinks(), 1, func(topic string, _ []byte) error {
		devEUI, err := ParseIPUplinkTopic(topic)
		if err != nil {
			return err
		}
		received <- devEUI
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(Topics{}.AllIPUplinks()) {
		t.Fatal("subscription not tracked")
	}

	time.Sleep(100 * time.Millisecond)
	if err := client.PublishJSON(Topics{}.IPUplink("0011223344556677"), map[string]float64{"t": 21.5}); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case devEUI := <-received:
		if devEUI != "0011223344556677" {
			t.Errorf("devEUI = %q", devEUI)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("uplink not received")
	}

	if err := client.Unsubscribe(Topics{}.AllIPUplinks()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestIntegration_OnConnectCallback(t *testing.T) {
	client := connectTest(t, "lpwan-int-callback")

	called := make(chan struct{}, 1)
	client.SetOnConnect(func() { called <- struct{}{} })
	client.handleConnect()

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Error("OnConnect callback not invoked")
	}
}
