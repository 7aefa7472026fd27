package device

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/lpwan-core/internal/model"
	"github.com/nerrad567/lpwan-core/internal/network"
	"github.com/nerrad567/lpwan-core/internal/store"
)

// Service is a typed front for the device and application models.
type Service struct {
	devices      *model.Model
	applications *model.Model
	links        *model.Model
}

// NewService resolves the models registered by Register.
func NewService(reg *model.Registry) (*Service, error) {
	devices, err := reg.Get(RoleDevice)
	if err != nil {
		return nil, fmt.Errorf("resolving device model: %w", err)
	}
	applications, err := reg.Get(RoleApplication)
	if err != nil {
		return nil, fmt.Errorf("resolving application model: %w", err)
	}
	links, err := reg.Get(RoleLink)
	if err != nil {
		return nil, fmt.Errorf("resolving device link model: %w", err)
	}
	return &Service{devices: devices, applications: applications, links: links}, nil
}

// Device loads a device by id.
func (s *Service) Device(ctx context.Context, id string) (Device, error) {
	return model.Call[Device](ctx, s.devices, "load", store.ByID(id))
}

// UpdateDevice applies data to a device. origin is the network the change
// came from, or empty.
func (s *Service) UpdateDevice(ctx context.Context, id string, data store.Fields, origin string) (Device, error) {
	return model.Call[Device](ctx, s.devices, "update", model.UpdateArgs{Where: store.ByID(id), Data: data, Origin: origin})
}

// RemoveDevice deletes a device and its network type links.
func (s *Service) RemoveDevice(ctx context.Context, id string) error {
	_, err := s.devices.Call(ctx, "remove", id)
	return err
}

// LinkDevice attaches a device to a network type. A "remoteId" network
// setting is registered with the handlers of that type that keep one.
func (s *Service) LinkDevice(ctx context.Context, link Link) (Link, error) {
	return model.Call[Link](ctx, s.links, "create", link)
}

// UpdateLink applies data to a device network type link.
func (s *Service) UpdateLink(ctx context.Context, id string, data store.Fields) (Link, error) {
	return model.Call[Link](ctx, s.links, "update", model.UpdateArgs{Where: store.ByID(id), Data: data})
}

// PassDataToDevice sends dl to every network the device is linked to.
func (s *Service) PassDataToDevice(ctx context.Context, deviceID string, dl network.Downlink) ([]network.Outcome[network.Receipt], error) {
	return model.Call[[]network.Outcome[network.Receipt]](ctx, s.devices, "passDataToDevice", DownlinkArgs{DeviceID: deviceID, Downlink: dl})
}

// ReceiveIPDeviceUplink routes an uplink from an IP device.
func (s *Service) ReceiveIPDeviceUplink(ctx context.Context, devEUI string, payload json.RawMessage) error {
	_, err := s.devices.Call(ctx, "receiveIpDeviceUplink", UplinkArgs{DevEUI: devEUI, Payload: payload})
	return err
}

// ReceiveNetworkUplink routes an uplink a bridged network reported for a
// device.
func (s *Service) ReceiveNetworkUplink(ctx context.Context, networkID, deviceID string, payload json.RawMessage) error {
	_, err := s.devices.Call(ctx, "receiveNetworkUplink", NetworkUplinkArgs{NetworkID: networkID, DeviceID: deviceID, Payload: payload})
	return err
}

// PushIPDeviceDownlink queues a downlink for an IP device and returns the
// queue length.
func (s *Service) PushIPDeviceDownlink(ctx context.Context, devEUI string, payload any) (int, error) {
	return model.Call[int](ctx, s.devices, "pushIpDeviceDownlink", MailboxArgs{DevEUI: devEUI, Payload: payload})
}

// ListIPDeviceDownlinks drains the pending downlinks of an IP device.
func (s *Service) ListIPDeviceDownlinks(ctx context.Context, devEUI string) ([]json.RawMessage, error) {
	return model.Call[[]json.RawMessage](ctx, s.devices, "listIpDeviceDownlinks", devEUI)
}

// ImportDevices bulk creates IP devices.
func (s *Service) ImportDevices(ctx context.Context, args ImportArgs) ([]ImportResult, error) {
	return model.Call[[]ImportResult](ctx, s.devices, "importDevices", args)
}

// RemoveApplication deletes an application with its devices and links.
func (s *Service) RemoveApplication(ctx context.Context, id string) error {
	_, err := s.applications.Call(ctx, "remove", id)
	return err
}

// StartApplication lets uplinks reach an application.
func (s *Service) StartApplication(ctx context.Context, id string) (Application, error) {
	return model.Call[Application](ctx, s.applications, "start", id)
}

// StopApplication makes uplinks to an application be dropped.
func (s *Service) StopApplication(ctx context.Context, id string) (Application, error) {
	return model.Call[Application](ctx, s.applications, "stop", id)
}
