package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/lpwan-core/internal/infrastructure/config"
	"github.com/nerrad567/lpwan-core/internal/infrastructure/logging"
	"github.com/nerrad567/lpwan-core/internal/infrastructure/metrics"
	"github.com/nerrad567/lpwan-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/lpwan-core/internal/network"
	"github.com/nerrad567/lpwan-core/internal/protocols/bridge"
	"github.com/nerrad567/lpwan-core/internal/protocols/ip"
	"github.com/nerrad567/lpwan-core/internal/testutil"
	"github.com/nerrad567/lpwan-core/internal/uplink"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("LPWAN_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails validation on an empty database path.
func TestRun_MissingDatabasePath(t *testing.T) {
	t.Setenv("LPWAN_CONFIG", writeConfig(t, `
instance:
  id: test-instance
database:
  path: ""
logging:
  level: error
  format: text
`))
	t.Setenv("LPWAN_DATABASE_PATH", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_UnreachableBroker verifies run fails when MQTT cannot connect.
func TestRun_UnreachableBroker(t *testing.T) {
	t.Setenv("LPWAN_CONFIG", writeConfig(t, `
instance:
  id: test-instance
database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"
mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "test-unreachable"
  reconnect:
    initial_delay: 1
    max_delay: 2
logging:
  level: error
  format: text
`))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail without a reachable broker")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("LPWAN_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("LPWAN_CONFIG", "/custom/path/config.yaml")
	if got := getConfigPath(); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want override", got)
	}
}

// TestBuildCore_AttachesOnlyEnabledBridges builds the core over an
// in-memory database and attaches uplink ingestion.
func TestBuildCore_AttachesOnlyEnabledBridges(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	cfg := &config.Config{
		Mailbox: config.MailboxConfig{NotifyTopicPrefix: "lpwan/downlink_received"},
		Sync:    config.SyncConfig{PageSize: 10, IPNetworkType: "IP"},
	}
	log := logging.NewWithWriter(io.Discard, config.LoggingConfig{Level: "error"}, "test")

	svc, handlers, catalog, err := buildCore(db, cfg, nil, nil, metrics.New("test"), log)
	if err != nil {
		t.Fatalf("buildCore() error = %v", err)
	}
	if svc == nil {
		t.Fatal("buildCore() returned nil service")
	}

	ipType, err := catalog.Types.Create(ctx, network.NetworkType{Name: "IP"})
	if err != nil {
		t.Fatal(err)
	}
	loraType, err := catalog.Types.Create(ctx, network.NetworkType{Name: "LoRa"})
	if err != nil {
		t.Fatal(err)
	}
	ipProto, err := catalog.Protocols.Create(ctx, network.Protocol{Name: "IP", NetworkTypeID: ipType.ID, Handler: ip.HandlerID})
	if err != nil {
		t.Fatal(err)
	}
	loraProto, err := catalog.Protocols.Create(ctx, network.Protocol{Name: "LoRa bridge", NetworkTypeID: loraType.ID, Handler: bridge.HandlerID})
	if err != nil {
		t.Fatal(err)
	}
	var loraEU network.Network
	for _, n := range []network.Network{
		{Name: "ip", NetworkTypeID: ipType.ID, ProtocolID: ipProto.ID, Enabled: true},
		{Name: "lora-eu", NetworkTypeID: loraType.ID, ProtocolID: loraProto.ID, Enabled: true},
		{Name: "lora-off", NetworkTypeID: loraType.ID, ProtocolID: loraProto.ID, Enabled: false},
	} {
		created, err := catalog.Networks.Create(ctx, n)
		if err != nil {
			t.Fatal(err)
		}
		if created.Name == "lora-eu" {
			loraEU = created
		}
	}

	sub := &fakeSubscriber{}
	ingestor := uplink.New(sub, svc, 1, nil, nil)
	attached, err := attachBridges(ctx, catalog, handlers, ingestor, 2)
	if err != nil {
		t.Fatalf("attachBridges() error = %v", err)
	}
	if attached != 1 {
		t.Errorf("attached = %d, want 1", attached)
	}
	if len(sub.topics) != 1 || sub.topics[0] != (mqtt.Topics{}).AllBridgeUplinks(loraEU.ID) {
		t.Errorf("subscriptions = %v", sub.topics)
	}

	if _, err := handlers.ForProtocol(ctx, ipProto.ID); err != nil {
		t.Errorf("IP handler: %v", err)
	}
}

type fakeSubscriber struct {
	topics []string
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, _ mqtt.MessageHandler) error {
	f.topics = append(f.topics, topic)
	return nil
}

func (f *fakeSubscriber) Unsubscribe(string) error { return nil }
