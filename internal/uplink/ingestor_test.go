package uplink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/lpwan-core/internal/infrastructure/mqtt"
)

type mockSubscriber struct {
	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
	err      error
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockSubscriber) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *mockSubscriber) deliver(t *testing.T, pattern, topic string, payload []byte) error {
	t.Helper()
	m.mu.Lock()
	h, ok := m.handlers[pattern]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for %s", pattern)
	}
	return h(topic, payload)
}

type routed struct {
	networkID, device string
	payload           string
}

type mockRouter struct {
	ip     []routed
	bridge []routed
	err    error
}

func (m *mockRouter) ReceiveIPDeviceUplink(_ context.Context, devEUI string, payload json.RawMessage) error {
	m.ip = append(m.ip, routed{device: devEUI, payload: string(payload)})
	return m.err
}

func (m *mockRouter) ReceiveNetworkUplink(_ context.Context, networkID, deviceID string, payload json.RawMessage) error {
	m.bridge = append(m.bridge, routed{networkID: networkID, device: deviceID, payload: string(payload)})
	return m.err
}

type mockResolver map[string]string

func (m mockResolver) ResolveDevice(_ context.Context, networkID, remoteID string) (string, error) {
	if id, ok := m[networkID+"/"+remoteID]; ok {
		return id, nil
	}
	return "", errors.New("not registered")
}

type mockRecorder struct {
	counts map[string]int
}

func (m *mockRecorder) ObserveUplink(networkType string, err error) {
	key := networkType + "/ok"
	if err != nil {
		key = networkType + "/error"
	}
	m.counts[key]++
}

func TestIngestor_IPUplinks(t *testing.T) {
	sub := newMockSubscriber()
	router := &mockRouter{}
	rec := &mockRecorder{counts: map[string]int{}}
	ing := New(sub, router, 1, nil, rec)
	if err := ing.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	pattern := mqtt.Topics{}.AllIPUplinks()

	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr bool
	}{
		{name: "valid", topic: "lpwan/uplink/ip/0011223344556677", payload: `{"t":21.5}`},
		{name: "not JSON", topic: "lpwan/uplink/ip/0011223344556677", payload: `t=21.5`, wantErr: true},
		{name: "bad topic", topic: "lpwan/uplink/ip/", payload: `{}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sub.deliver(t, pattern, tt.topic, []byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("handler error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if len(router.ip) != 1 || router.ip[0].device != "0011223344556677" || router.ip[0].payload != `{"t":21.5}` {
		t.Errorf("routed = %+v", router.ip)
	}
	if rec.counts["ip/ok"] != 1 || rec.counts["ip/error"] != 2 {
		t.Errorf("recorded = %v", rec.counts)
	}
}

func TestIngestor_RouterErrorIsReturned(t *testing.T) {
	sub := newMockSubscriber()
	router := &mockRouter{err: errors.New("store closed")}
	ing := New(sub, router, 1, nil, nil)
	if err := ing.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := sub.deliver(t, mqtt.Topics{}.AllIPUplinks(), "lpwan/uplink/ip/AA", []byte(`{}`)); err == nil {
		t.Error("handler error = nil, want router error")
	}
}

func TestIngestor_BridgeUplinks(t *testing.T) {
	sub := newMockSubscriber()
	router := &mockRouter{}
	ing := New(sub, router, 1, nil, nil)
	if err := ing.AddBridge("net-eu", mockResolver{"net-eu/remote-77": "dev-1"}); err != nil {
		t.Fatalf("AddBridge() error = %v", err)
	}
	pattern := mqtt.Topics{}.AllBridgeUplinks("net-eu")

	if err := sub.deliver(t, pattern, "lpwan/bridge/net-eu/uplink/remote-77", []byte(`{"lat":51.5}`)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if err := sub.deliver(t, pattern, "lpwan/bridge/net-eu/uplink/remote-99", []byte(`{}`)); err == nil {
		t.Error("unregistered remote id: expected error")
	}

	if len(router.bridge) != 1 {
		t.Fatalf("routed %d bridge uplinks, want 1", len(router.bridge))
	}
	if got := router.bridge[0]; got.networkID != "net-eu" || got.device != "dev-1" {
		t.Errorf("routed = %+v", got)
	}
}

func TestIngestor_StopUnsubscribes(t *testing.T) {
	sub := newMockSubscriber()
	ing := New(sub, &mockRouter{}, 1, nil, nil)
	if err := ing.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := ing.AddBridge("net-eu", mockResolver{}); err != nil {
		t.Fatalf("AddBridge() error = %v", err)
	}
	if err := ing.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(sub.handlers) != 0 {
		t.Errorf("subscriptions left = %d", len(sub.handlers))
	}
}

func TestIngestor_SubscribeFailure(t *testing.T) {
	sub := newMockSubscriber()
	sub.err = mqtt.ErrNotConnected
	ing := New(sub, &mockRouter{}, 1, nil, nil)
	if err := ing.Start(); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
}
