package ip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/lpwan-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/lpwan-core/internal/mailbox"
	"github.com/nerrad567/lpwan-core/internal/network"
	"github.com/nerrad567/lpwan-core/internal/protocoldata"
	"github.com/nerrad567/lpwan-core/internal/store"
	"github.com/nerrad567/lpwan-core/internal/testutil"
)

type mockResolver struct {
	devEUIs map[string]string
	err     error
}

func (m *mockResolver) DevEUI(_ context.Context, deviceID, networkTypeID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.devEUIs[deviceID+"/"+networkTypeID]
	if !ok {
		return "", fmt.Errorf("no link for %s: %w", deviceID, store.ErrNotFound)
	}
	return v, nil
}

type published struct {
	topic string
	body  []byte
}

type mockPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (m *mockPublisher) PublishJSON(topic string, v any) error {
	if m.err != nil {
		return m.err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, published{topic: topic, body: b})
	return nil
}

type mockTelemetry struct {
	points    []influxdb.Uplink
	downlinks []bool
}

func (m *mockTelemetry) WriteUplink(up influxdb.Uplink) { m.points = append(m.points, up) }

func (m *mockTelemetry) WriteDownlink(_, _, _ string, ok bool) {
	m.downlinks = append(m.downlinks, ok)
}

var (
	ipProtocol = network.Protocol{ID: "proto-ip", Name: "IP v1", NetworkTypeID: "type-ip", Handler: HandlerID}
	ipNetwork  = network.Network{ID: "net-ip", NetworkTypeID: "type-ip", ProtocolID: "proto-ip", Enabled: true}
)

type fixture struct {
	handler   network.Handler
	mailbox   *mailbox.Mailbox
	data      *protocoldata.Store
	publisher *mockPublisher
	telemetry *mockTelemetry
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	f := &fixture{
		mailbox:   mailbox.New(db.DB, nil, 0, nil),
		data:      protocoldata.New(db.DB),
		publisher: &mockPublisher{},
		telemetry: &mockTelemetry{},
	}
	h, err := Factory(Deps{
		Mailbox:      f.mailbox,
		Devices:      &mockResolver{devEUIs: map[string]string{"dev-1/type-ip": "0011223344556677"}},
		ProtocolData: f.data,
		Publisher:    f.publisher,
		Telemetry:    f.telemetry,
	})(ipProtocol)
	if err != nil {
		t.Fatalf("Factory() error = %v", err)
	}
	f.handler = h
	return f
}

func TestFactory_RequiresDeps(t *testing.T) {
	if _, err := Factory(Deps{})(ipProtocol); err == nil {
		t.Fatal("Factory() with no deps: expected error")
	}
}

func TestSendDownlink_QueuesAndRecordsFCnt(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i, fcnt := range []int{4, 5} {
		receipt, err := f.handler.SendDownlink(ctx, ipNetwork, "app-1", "dev-1",
			network.NewJSONDownlink(fcnt, 1, map[string]any{"led": "on"}))
		if err != nil {
			t.Fatalf("SendDownlink() error = %v", err)
		}
		if receipt.Handler != HandlerID || receipt.NetworkID != ipNetwork.ID {
			t.Errorf("receipt = %+v", receipt)
		}
		if got := receipt.Detail["queueLength"]; got != i+1 {
			t.Errorf("queueLength = %v, want %d", got, i+1)
		}
		if got := receipt.Detail["devEUI"]; got != "0011223344556677" {
			t.Errorf("devEUI = %v", got)
		}
	}

	if len(f.telemetry.downlinks) != 2 || !f.telemetry.downlinks[0] || !f.telemetry.downlinks[1] {
		t.Errorf("downlink telemetry = %v, want two successful writes", f.telemetry.downlinks)
	}

	fcnt, err := f.data.LoadValue(ctx, ipNetwork, FCntKey("0011223344556677"))
	if err != nil {
		t.Fatalf("LoadValue() error = %v", err)
	}
	if fcnt != "5" {
		t.Errorf("fcnt = %q, want 5", fcnt)
	}

	msgs, err := f.mailbox.Drain(ctx, "0011223344556677")
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("drained %d messages, want 2", len(msgs))
	}
	var first network.Downlink
	if err := json.Unmarshal(msgs[0], &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first.FCnt == nil || *first.FCnt != 4 || first.JSONData["led"] != "on" {
		t.Errorf("first message = %s", msgs[0])
	}
}

func TestSendDownlink_UnknownDevice(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.handler.SendDownlink(ctx, ipNetwork, "app-1", "dev-unknown", network.NewDownlink(1, 1, []byte{1}))
	if err == nil {
		t.Fatal("SendDownlink() expected error for unlinked device")
	}
	if n, _ := f.mailbox.Len(ctx, "0011223344556677"); n != 0 {
		t.Errorf("queue length = %d, want 0", n)
	}
}

func TestReceiveUplink_ReportsAndRecords(t *testing.T) {
	f := setup(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := f.handler.ReceiveUplink(context.Background(), network.Uplink{
		ApplicationID:   "app-1",
		ApplicationName: "Weather",
		DeviceID:        "dev-1",
		DeviceName:      "roof",
		DevEUI:          "0011223344556677",
		Payload:         json.RawMessage(`{"temperature":21.5}`),
		ReceivedAt:      at,
	})
	if err != nil {
		t.Fatalf("ReceiveUplink() error = %v", err)
	}

	if len(f.publisher.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(f.publisher.msgs))
	}
	msg := f.publisher.msgs[0]
	if msg.topic != "lpwan/application/app-1/uplink" {
		t.Errorf("topic = %q", msg.topic)
	}
	var body map[string]any
	if err := json.Unmarshal(msg.body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["deviceName"] != "roof" || body["protocol"] != "IP v1" {
		t.Errorf("body = %s", msg.body)
	}
	if data, ok := body["data"].(map[string]any); !ok || data["temperature"] != 21.5 {
		t.Errorf("data = %v", body["data"])
	}

	if len(f.telemetry.points) != 1 {
		t.Fatalf("telemetry points = %d, want 1", len(f.telemetry.points))
	}
	if p := f.telemetry.points[0]; p.NetworkType != "type-ip" || !p.ReceivedAt.Equal(at) {
		t.Errorf("point = %+v", p)
	}
}

func TestReceiveUplink_PublishFailure(t *testing.T) {
	f := setup(t)
	f.publisher.err = errors.New("not connected")

	err := f.handler.ReceiveUplink(context.Background(), network.Uplink{ApplicationID: "app-1"})
	if err == nil {
		t.Fatal("ReceiveUplink() expected error")
	}
	if len(f.telemetry.points) != 0 {
		t.Errorf("telemetry written despite publish failure")
	}
}

func TestDecommission_ClearsDeviceRecords(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.handler.SendDownlink(ctx, ipNetwork, "app-1", "dev-1", network.NewDownlink(9, 1, []byte{1})); err != nil {
		t.Fatalf("SendDownlink() error = %v", err)
	}
	if _, err := f.data.Upsert(ctx, ipNetwork, "dev:FFEEDDCCBBAA9988:fcnt", "3"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	dc, ok := f.handler.(network.Decommissioner)
	if !ok {
		t.Fatal("IP handler does not implement network.Decommissioner")
	}
	removed, err := dc.Decommission(ctx, ipNetwork, "dev-1")
	if err != nil {
		t.Fatalf("Decommission() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := f.data.Load(ctx, ipNetwork, FCntKey("0011223344556677")); !errors.Is(err, protocoldata.ErrNotFound) {
		t.Errorf("Load() after Decommission error = %v, want ErrNotFound", err)
	}
	if _, err := f.data.Load(ctx, ipNetwork, "dev:FFEEDDCCBBAA9988:fcnt"); err != nil {
		t.Errorf("other device record removed: %v", err)
	}
}

func TestDecommission_UnlinkedDevice(t *testing.T) {
	f := setup(t)

	removed, err := f.handler.(network.Decommissioner).Decommission(context.Background(), ipNetwork, "dev-unknown")
	if err != nil || removed != 0 {
		t.Errorf("Decommission() = (%d, %v), want (0, nil)", removed, err)
	}
}
