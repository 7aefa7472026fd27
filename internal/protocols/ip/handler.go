package ip

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/lpwan-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/lpwan-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/lpwan-core/internal/network"
	"github.com/nerrad567/lpwan-core/internal/protocoldata"
	"github.com/nerrad567/lpwan-core/internal/store"
)

// HandlerID is the protocol handler identifier served by this package.
const HandlerID = "ip"

// Mailbox queues downlinks for IP devices.
type Mailbox interface {
	Push(ctx context.Context, devEUI string, payload any) (int, error)
}

// DevEUIResolver returns the devEUI a device uses on a network type.
type DevEUIResolver interface {
	DevEUI(ctx context.Context, deviceID, networkTypeID string) (string, error)
}

// ProtocolData stores per-network working data.
type ProtocolData interface {
	Upsert(ctx context.Context, n network.Network, key, value string) (protocoldata.Record, error)
	Clear(ctx context.Context, networkID, protocolID, keyPrefix string) (int64, error)
}

// Publisher reports uplinks to applications.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Telemetry records device traffic.
type Telemetry interface {
	WriteUplink(up influxdb.Uplink)
	WriteDownlink(networkID, deviceID, handler string, ok bool)
}

// Deps are the collaborators of the IP handler. Publisher and Telemetry
// are optional.
type Deps struct {
	Mailbox      Mailbox
	Devices      DevEUIResolver
	ProtocolData ProtocolData
	Publisher    Publisher
	Telemetry    Telemetry
}

// Handler is the IP protocol handler.
type Handler struct {
	protocol network.Protocol
	deps     Deps
}

var (
	_ network.Handler        = (*Handler)(nil)
	_ network.Decommissioner = (*Handler)(nil)
)

// Factory returns a network.Factory building IP handlers over deps.
func Factory(deps Deps) network.Factory {
	return func(p network.Protocol) (network.Handler, error) {
		if deps.Mailbox == nil || deps.Devices == nil || deps.ProtocolData == nil {
			return nil, fmt.Errorf("ip handler for protocol %s: mailbox, devices and protocol data are required", p.ID)
		}
		return &Handler{protocol: p, deps: deps}, nil
	}
}

// FCntKey is the protocol data key holding the last downlink frame counter
// queued for a device.
func FCntKey(devEUI string) string {
	return devicePrefix(devEUI) + "fcnt"
}

// devicePrefix is the protocol data key prefix of every record kept for a
// device.
func devicePrefix(devEUI string) string {
	return "dev:" + devEUI + ":"
}

// Decommission forgets the protocol data kept for a device on network n.
// A device without a devEUI on the network has nothing to forget.
func (h *Handler) Decommission(ctx context.Context, n network.Network, deviceID string) (int64, error) {
	devEUI, err := h.deps.Devices.DevEUI(ctx, deviceID, n.NetworkTypeID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return h.deps.ProtocolData.Clear(ctx, n.ID, n.ProtocolID, devicePrefix(devEUI))
}

// SendDownlink queues dl in the device's mailbox.
func (h *Handler) SendDownlink(ctx context.Context, n network.Network, _, deviceID string, dl network.Downlink) (network.Receipt, error) {
	devEUI, err := h.deps.Devices.DevEUI(ctx, deviceID, n.NetworkTypeID)
	if err != nil {
		return network.Receipt{}, err
	}

	queued, err := h.deps.Mailbox.Push(ctx, devEUI, dl)
	if h.deps.Telemetry != nil {
		h.deps.Telemetry.WriteDownlink(n.ID, deviceID, HandlerID, err == nil)
	}
	if err != nil {
		return network.Receipt{}, fmt.Errorf("queueing downlink for %s: %w", devEUI, err)
	}

	if dl.FCnt != nil {
		if _, err := h.deps.ProtocolData.Upsert(ctx, n, FCntKey(devEUI), strconv.Itoa(*dl.FCnt)); err != nil {
			return network.Receipt{}, fmt.Errorf("recording frame counter for %s: %w", devEUI, err)
		}
	}

	return network.Receipt{
		NetworkID: n.ID,
		Handler:   HandlerID,
		Detail: map[string]any{
			"devEUI":      devEUI,
			"queueLength": queued,
		},
	}, nil
}

// applicationUplink is the message published to applications.
type applicationUplink struct {
	ApplicationID   string    `json:"applicationId"`
	ApplicationName string    `json:"applicationName"`
	DeviceID        string    `json:"deviceId"`
	DeviceName      string    `json:"deviceName"`
	DevEUI          string    `json:"devEUI"`
	Protocol        string    `json:"protocol"`
	Data            any       `json:"data"`
	ReceivedAt      time.Time `json:"receivedAt"`
}

// ReceiveUplink reports up to its application and records it.
func (h *Handler) ReceiveUplink(_ context.Context, up network.Uplink) error {
	if h.deps.Publisher != nil {
		msg := applicationUplink{
			ApplicationID:   up.ApplicationID,
			ApplicationName: up.ApplicationName,
			DeviceID:        up.DeviceID,
			DeviceName:      up.DeviceName,
			DevEUI:          up.DevEUI,
			Protocol:        h.protocol.Name,
			Data:            up.Payload,
			ReceivedAt:      up.ReceivedAt,
		}
		if len(up.Payload) == 0 {
			msg.Data = nil
		}
		if err := h.deps.Publisher.PublishJSON(mqtt.Topics{}.ApplicationUplink(up.ApplicationID), msg); err != nil {
			return fmt.Errorf("reporting uplink to application %s: %w", up.ApplicationID, err)
		}
	}

	if h.deps.Telemetry != nil {
		h.deps.Telemetry.WriteUplink(influxdb.Uplink{
			ApplicationID: up.ApplicationID,
			DeviceID:      up.DeviceID,
			DevEUI:        up.DevEUI,
			NetworkType:   h.protocol.NetworkTypeID,
			Payload:       up.Payload,
			ReceivedAt:    up.ReceivedAt,
		})
	}
	return nil
}
