package bridge

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/lpwan-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/lpwan-core/internal/network"
	"github.com/nerrad567/lpwan-core/internal/protocoldata"
)

// HandlerID is the protocol handler identifier served by this package.
const HandlerID = "mqtt-bridge"

// remoteIDSuffix ends every remote id key.
const remoteIDSuffix = ":remoteId"

// ErrNotRegistered is returned when a device has no remote id on a network.
var ErrNotRegistered = errors.New("bridge: device not registered on network")

// ProtocolData is the subset of the protocol data store the bridge uses.
type ProtocolData interface {
	Upsert(ctx context.Context, n network.Network, key, value string) (protocoldata.Record, error)
	LoadValue(ctx context.Context, n network.Network, key string) (string, error)
	Clear(ctx context.Context, networkID, protocolID, keyPrefix string) (int64, error)
	ReverseLookup(ctx context.Context, networkID, keyPattern, value string) ([]protocoldata.Record, error)
}

// Publisher hands messages to the bridge process and to applications.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Handler is the MQTT bridge protocol handler.
type Handler struct {
	protocol  network.Protocol
	data      ProtocolData
	publisher Publisher
}

var (
	_ network.Handler        = (*Handler)(nil)
	_ network.Decommissioner = (*Handler)(nil)
	_ network.Registrar      = (*Handler)(nil)
)

// New creates a bridge handler for protocol p.
func New(p network.Protocol, data ProtocolData, publisher Publisher) *Handler {
	return &Handler{protocol: p, data: data, publisher: publisher}
}

// Factory returns a network.Factory building bridge handlers.
func Factory(data ProtocolData, publisher Publisher) network.Factory {
	return func(p network.Protocol) (network.Handler, error) {
		if data == nil || publisher == nil {
			return nil, fmt.Errorf("bridge handler for protocol %s: protocol data and publisher are required", p.ID)
		}
		return New(p, data, publisher), nil
	}
}

// RemoteIDKey is the protocol data key mapping a device to its remote id.
func RemoteIDKey(deviceID string) string {
	return "dev:" + deviceID + remoteIDSuffix
}

// Register records that deviceID is known as remoteID on network n.
func (h *Handler) Register(ctx context.Context, n network.Network, deviceID, remoteID string) error {
	if remoteID == "" {
		return fmt.Errorf("registering device %s: remote id is empty", deviceID)
	}
	if _, err := h.data.Upsert(ctx, n, RemoteIDKey(deviceID), remoteID); err != nil {
		return fmt.Errorf("registering device %s on network %s: %w", deviceID, n.ID, err)
	}
	return nil
}

// ResolveDevice returns the core device id registered as remoteID on a
// network.
func (h *Handler) ResolveDevice(ctx context.Context, networkID, remoteID string) (string, error) {
	records, err := h.data.ReverseLookup(ctx, networkID, remoteIDSuffix, remoteID)
	if err != nil {
		return "", err
	}
	for _, r := range records {
		deviceID, ok := strings.CutSuffix(strings.TrimPrefix(r.Key, "dev:"), remoteIDSuffix)
		if ok && deviceID != "" {
			return deviceID, nil
		}
	}
	return "", fmt.Errorf("%w: remote id %s on network %s", ErrNotRegistered, remoteID, networkID)
}

// Decommission forgets every protocol data record of a device on network n.
func (h *Handler) Decommission(ctx context.Context, n network.Network, deviceID string) (int64, error) {
	return h.data.Clear(ctx, n.ID, n.ProtocolID, "dev:"+deviceID+":")
}

// command is the downlink message handed to the bridge process.
type command struct {
	DeviceID string `json:"deviceId"`
	FCnt     int    `json:"fCnt"`
	FPort    int    `json:"fPort"`
	Data     string `json:"data"`
}

// SendDownlink publishes dl to the bridge process of network n.
func (h *Handler) SendDownlink(ctx context.Context, n network.Network, _, deviceID string, dl network.Downlink) (network.Receipt, error) {
	remoteID, err := h.data.LoadValue(ctx, n, RemoteIDKey(deviceID))
	if errors.Is(err, protocoldata.ErrNotFound) {
		return network.Receipt{}, fmt.Errorf("%w: device %s on network %s", ErrNotRegistered, deviceID, n.ID)
	}
	if err != nil {
		return network.Receipt{}, err
	}

	payload, err := dl.Payload()
	if err != nil {
		return network.Receipt{}, err
	}
	cmd := command{DeviceID: remoteID, Data: base64.StdEncoding.EncodeToString(payload)}
	if dl.FCnt != nil {
		cmd.FCnt = *dl.FCnt
	}
	if dl.FPort != nil {
		cmd.FPort = *dl.FPort
	}

	topic := mqtt.Topics{}.BridgeCommand(n.ID, remoteID)
	if err := h.publisher.PublishJSON(topic, cmd); err != nil {
		return network.Receipt{}, fmt.Errorf("%w: publishing to %s: %w", network.ErrUpstream, topic, err)
	}
	return network.Receipt{
		NetworkID: n.ID,
		Handler:   HandlerID,
		Detail:    map[string]any{"remoteId": remoteID, "topic": topic},
	}, nil
}

// ReceiveUplink reports device data to its application.
func (h *Handler) ReceiveUplink(_ context.Context, up network.Uplink) error {
	msg := map[string]any{
		"applicationId":   up.ApplicationID,
		"applicationName": up.ApplicationName,
		"deviceId":        up.DeviceID,
		"deviceName":      up.DeviceName,
		"devEUI":          up.DevEUI,
		"protocol":        h.protocol.Name,
		"data":            up.Payload,
		"receivedAt":      up.ReceivedAt,
	}
	if len(up.Payload) == 0 {
		msg["data"] = nil
	}
	if err := h.publisher.PublishJSON(mqtt.Topics{}.ApplicationUplink(up.ApplicationID), msg); err != nil {
		return fmt.Errorf("reporting uplink to application %s: %w", up.ApplicationID, err)
	}
	return nil
}
