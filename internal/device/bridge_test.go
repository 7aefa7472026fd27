package device

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/nerrad567/lpwan-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/lpwan-core/internal/mailbox"
	"github.com/nerrad567/lpwan-core/internal/model"
	"github.com/nerrad567/lpwan-core/internal/network"
	"github.com/nerrad567/lpwan-core/internal/protocoldata"
	"github.com/nerrad567/lpwan-core/internal/protocols/bridge"
	"github.com/nerrad567/lpwan-core/internal/store"
	"github.com/nerrad567/lpwan-core/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) PublishJSON(topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

type bridgeFixture struct {
	svc      *Service
	stores   *Stores
	data     *protocoldata.Store
	pub      *recordingPublisher
	resolver *bridge.Handler
	lns      network.Network
	loraType network.NetworkType
	device   Device
}

// setupBridgeFixture wires the device models to a real bridge handler on
// one LoRa network.
func setupBridgeFixture(t *testing.T) *bridgeFixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.OpenDB(t)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}

	f := &bridgeFixture{
		stores: NewStores(db.DB),
		data:   protocoldata.New(db.DB),
		pub:    &recordingPublisher{},
	}
	catalog := network.NewCatalog(db.DB)

	var err error
	f.loraType, err = catalog.Types.Create(ctx, network.NetworkType{Name: "LoRa"})
	must(err)
	proto, err := catalog.Protocols.Create(ctx, network.Protocol{Name: "LNS bridge", NetworkTypeID: f.loraType.ID, Handler: bridge.HandlerID})
	must(err)
	f.lns, err = catalog.Networks.Create(ctx, network.Network{Name: "lns", NetworkTypeID: f.loraType.ID, ProtocolID: proto.ID, Enabled: true})
	must(err)
	f.resolver = bridge.New(proto, f.data, f.pub)

	handlers := network.NewHandlerRegistry(catalog.Protocols)
	must(handlers.Register(bridge.HandlerID, bridge.Factory(f.data, f.pub)))

	reg := model.NewRegistry()
	must(Register(reg, Deps{
		Stores:        f.stores,
		Catalog:       catalog,
		Engine:        network.NewEngine(catalog.Networks, network.NewDeployments(db.DB), 10, nil),
		Handlers:      handlers,
		Mailbox:       mailbox.New(db.DB, nil, 0, nil),
		IPNetworkType: "IP",
		PageSize:      10,
	}))
	f.svc, err = NewService(reg)
	must(err)

	app, err := f.stores.Applications.Create(ctx, Application{Name: "Metering", Running: true})
	must(err)
	f.device, err = f.stores.Devices.Create(ctx, Device{Name: "meter", ApplicationID: app.ID})
	must(err)
	return f
}

func TestLinkDevice_RegistersRemoteIDWithBridge(t *testing.T) {
	f := setupBridgeFixture(t)
	ctx := context.Background()

	if _, err := f.svc.LinkDevice(ctx, Link{
		DeviceID:        f.device.ID,
		NetworkTypeID:   f.loraType.ID,
		Enabled:         true,
		NetworkSettings: map[string]any{"devEUI": "0102", "remoteId": "lns-77"},
	}); err != nil {
		t.Fatalf("LinkDevice() error = %v", err)
	}

	got, err := f.resolver.ResolveDevice(ctx, f.lns.ID, "lns-77")
	if err != nil {
		t.Fatalf("ResolveDevice() error = %v", err)
	}
	if got != f.device.ID {
		t.Errorf("ResolveDevice() = %q, want %q", got, f.device.ID)
	}

	outcomes, err := f.svc.PassDataToDevice(ctx, f.device.ID, network.NewDownlink(1, 2, []byte{0x01}))
	if err != nil {
		t.Fatalf("PassDataToDevice() error = %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(outcomes))
	}
	if outcomes[0].Err != nil {
		t.Fatalf("outcome error = %v", outcomes[0].Err)
	}
	want := (mqtt.Topics{}).BridgeCommand(f.lns.ID, "lns-77")
	if topics := f.pub.published(); len(topics) != 1 || topics[0] != want {
		t.Errorf("published = %v, want [%s]", topics, want)
	}
}

func TestUpdateLink_ReregistersRemoteID(t *testing.T) {
	f := setupBridgeFixture(t)
	ctx := context.Background()

	link, err := f.svc.LinkDevice(ctx, Link{
		DeviceID:        f.device.ID,
		NetworkTypeID:   f.loraType.ID,
		Enabled:         true,
		NetworkSettings: map[string]any{"devEUI": "0102", "remoteId": "lns-77"},
	})
	if err != nil {
		t.Fatalf("LinkDevice() error = %v", err)
	}

	updated, err := f.svc.UpdateLink(ctx, link.ID, store.Fields{
		"network_settings": map[string]any{"devEUI": "0A0B", "remoteId": "lns-78"},
	})
	if err != nil {
		t.Fatalf("UpdateLink() error = %v", err)
	}
	if updated.DevEUI != "0A0B" {
		t.Errorf("DevEUI = %q, want 0A0B", updated.DevEUI)
	}

	remoteID, err := f.data.LoadValue(ctx, f.lns, bridge.RemoteIDKey(f.device.ID))
	if err != nil {
		t.Fatalf("LoadValue() error = %v", err)
	}
	if remoteID != "lns-78" {
		t.Errorf("remote id = %q, want lns-78", remoteID)
	}
}

func TestLinkDevice_WithoutRemoteIDLeavesBridgeUnregistered(t *testing.T) {
	f := setupBridgeFixture(t)
	ctx := context.Background()

	if _, err := f.svc.LinkDevice(ctx, Link{
		DeviceID:        f.device.ID,
		NetworkTypeID:   f.loraType.ID,
		Enabled:         true,
		NetworkSettings: map[string]any{"devEUI": "0102"},
	}); err != nil {
		t.Fatalf("LinkDevice() error = %v", err)
	}

	outcomes, err := f.svc.PassDataToDevice(ctx, f.device.ID, network.NewJSONDownlink(1, 2, map[string]any{"on": true}))
	if err != nil {
		t.Fatalf("PassDataToDevice() error = %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Err == nil {
		t.Fatalf("outcomes = %+v, want one failed outcome", outcomes)
	}
	if len(f.pub.published()) != 0 {
		t.Errorf("published = %v, want nothing", f.pub.published())
	}
}

func TestRemoveDevice_ForgetsBridgeRegistration(t *testing.T) {
	f := setupBridgeFixture(t)
	ctx := context.Background()

	if _, err := f.svc.LinkDevice(ctx, Link{
		DeviceID:        f.device.ID,
		NetworkTypeID:   f.loraType.ID,
		Enabled:         true,
		NetworkSettings: map[string]any{"remoteId": "lns-77"},
	}); err != nil {
		t.Fatalf("LinkDevice() error = %v", err)
	}
	if err := f.svc.RemoveDevice(ctx, f.device.ID); err != nil {
		t.Fatalf("RemoveDevice() error = %v", err)
	}

	records, err := f.data.ReverseLookup(ctx, f.lns.ID, ":remoteId", "lns-77")
	if err != nil {
		t.Fatalf("ReverseLookup() error = %v", err)
	}
	if len(records) != 0 {
		raw, _ := json.Marshal(records)
		t.Errorf("records after removal = %s, want none", raw)
	}
}
