package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/lpwan-core/internal/model"
	"github.com/nerrad567/lpwan-core/internal/network"
	"github.com/nerrad567/lpwan-core/internal/store"
)

// UpsertArgs are the arguments of the device upsert operation.
type UpsertArgs struct {
	Device Device
	Origin string
}

// DownlinkArgs are the arguments of passDataToDevice.
type DownlinkArgs struct {
	DeviceID string
	Downlink network.Downlink
}

// UplinkArgs are the arguments of receiveIpDeviceUplink.
type UplinkArgs struct {
	DevEUI  string
	Payload json.RawMessage
}

// NetworkUplinkArgs are the arguments of receiveNetworkUplink.
type NetworkUplinkArgs struct {
	NetworkID string
	DeviceID  string
	Payload   json.RawMessage
}

// MailboxArgs are the arguments of pushIpDeviceDownlink.
type MailboxArgs struct {
	DevEUI  string
	Payload any
}

// ImportArgs are the arguments of importDevices.
type ImportArgs struct {
	ApplicationID string
	ProfileID     string
	Devices       []ImportRow
}

func deviceOps(deps Deps) model.Ops {
	d := &deviceModel{deps: deps}
	return model.CRUD[Device](deps.PageSize).With(model.Ops{
		"update":                model.Op(d.update),
		"upsert":                model.Op(d.upsert),
		"remove":                model.Op(d.remove),
		"passDataToDevice":      model.Op(d.passDataToDevice),
		"receiveIpDeviceUplink": model.Op(d.receiveIPDeviceUplink),
		"receiveNetworkUplink":  model.Op(d.receiveNetworkUplink),
		"pushIpDeviceDownlink":  model.Op(d.pushIPDeviceDownlink),
		"listIpDeviceDownlinks": model.Op(d.listIPDeviceDownlinks),
		"importDevices":         model.Op(d.importDevices),
	})
}

type deviceModel struct {
	deps Deps
}

func (d *deviceModel) update(ctx context.Context, env *model.Env, args model.UpdateArgs) (Device, error) {
	if len(args.Where) == 0 {
		return Device{}, ErrMissingWhere
	}
	s, err := model.StoreOf[Device](env)
	if err != nil {
		return Device{}, err
	}
	rec, err := s.Update(ctx, args.Where, args.Data)
	if err != nil {
		return Device{}, err
	}

	if touchesIdentity(args.Data) {
		links, err := listAllFrom[Link](ctx, env, RoleLink, store.Where{"device_id": rec.ID})
		if err != nil {
			return Device{}, err
		}
		typeIDs := make([]string, len(links))
		for i, l := range links {
			typeIDs[i] = l.NetworkTypeID
		}
		entity := network.EntityRef{Kind: network.KindDevice, ID: rec.ID}
		if err := markStale(ctx, env, d.deps.Engine, entity, typeIDs, args.Origin); err != nil {
			return Device{}, err
		}
	}
	return rec, nil
}

func (d *deviceModel) upsert(ctx context.Context, env *model.Env, args UpsertArgs) (Device, error) {
	self := env.Self()
	in := args.Device

	existing, err := model.Call[Device](ctx, self, "loadByQuery", store.Query{Where: store.Where{"name": in.Name}})
	if errors.Is(err, store.ErrNotFound) {
		return model.Call[Device](ctx, self, "create", in)
	}
	if err != nil {
		return Device{}, err
	}

	changes := store.Fields{}
	if in.Description != existing.Description {
		changes["description"] = in.Description
	}
	if in.DeviceModel != existing.DeviceModel {
		changes["device_model"] = in.DeviceModel
	}
	if in.ApplicationID != "" && in.ApplicationID != existing.ApplicationID {
		changes["application_id"] = in.ApplicationID
	}
	if len(changes) == 0 {
		return existing, nil
	}
	return model.Call[Device](ctx, self, "update", model.UpdateArgs{
		Where:  store.ByID(existing.ID),
		Data:   changes,
		Origin: args.Origin,
	})
}

func (d *deviceModel) remove(ctx context.Context, env *model.Env, id string) (struct{}, error) {
	links, err := listAllFrom[Link](ctx, env, RoleLink, store.Where{"device_id": id})
	if err != nil {
		return struct{}{}, err
	}
	for _, link := range links {
		if err := d.decommission(ctx, env, link.NetworkTypeID, id); err != nil {
			return struct{}{}, err
		}
	}

	if _, err := removeAllFrom[Link](ctx, env, RoleLink, store.Where{"device_id": id}); err != nil {
		env.Log().Error("removing device network type links", "device_id", id, "error", err)
		return struct{}{}, err
	}
	entity := network.EntityRef{Kind: network.KindDevice, ID: id}
	if _, err := d.deps.Engine.Deployments().Clear(ctx, entity); err != nil {
		return struct{}{}, fmt.Errorf("clearing deployments of device %s: %w", id, err)
	}

	s, err := model.StoreOf[Device](env)
	if err != nil {
		return struct{}{}, err
	}
	return struct{}{}, s.Remove(ctx, id)
}

// decommission drops the per-device state kept by the handlers of every
// network of a type. Per-network failures are logged.
func (d *deviceModel) decommission(ctx context.Context, env *model.Env, networkTypeID, deviceID string) error {
	outcomes, err := network.ForAllNetworks(ctx, d.deps.Engine, networkTypeID,
		func(ctx context.Context, n network.Network) (int64, error) {
			h, err := d.deps.Handlers.ForNetwork(ctx, n)
			if err != nil {
				return 0, err
			}
			dc, ok := h.(network.Decommissioner)
			if !ok {
				return 0, nil
			}
			return dc.Decommission(ctx, n, deviceID)
		})
	if err != nil {
		return fmt.Errorf("decommissioning device %s: %w", deviceID, err)
	}
	for _, failure := range network.Failures(outcomes) {
		env.Log().Warn("device not decommissioned", "device_id", deviceID, "error", failure)
	}
	return nil
}

// passDataToDevice sends a downlink to every network of each enabled link
// of a device. Per-network failures are reported in the outcomes.
func (d *deviceModel) passDataToDevice(ctx context.Context, env *model.Env, args DownlinkArgs) ([]network.Outcome[network.Receipt], error) {
	if err := args.Downlink.Validate(); err != nil {
		return nil, err
	}

	dev, err := model.Call[Device](ctx, env.Self(), "load", store.ByID(args.DeviceID))
	if err != nil {
		return nil, err
	}
	app, err := loadFrom[Application](ctx, env, RoleApplication, dev.ApplicationID)
	if err != nil {
		return nil, err
	}
	links, err := listAllFrom[Link](ctx, env, RoleLink, store.Where{"device_id": dev.ID, "enabled": true})
	if err != nil {
		return nil, err
	}

	var outcomes []network.Outcome[network.Receipt]
	for _, link := range links {
		res, err := network.ForAllNetworks(ctx, d.deps.Engine, link.NetworkTypeID,
			func(ctx context.Context, n network.Network) (network.Receipt, error) {
				h, err := d.deps.Handlers.ForNetwork(ctx, n)
				if err != nil {
					return network.Receipt{}, err
				}
				return h.SendDownlink(ctx, n, app.ID, dev.ID, args.Downlink)
			})
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, res...)
	}

	env.Log().Debug("downlink dispatched",
		"device_id", dev.ID,
		"networks", len(outcomes),
		"failed", len(network.Failures(outcomes)),
	)
	return outcomes, nil
}

// receiveIPDeviceUplink routes an IP uplink to the device's application.
// Unknown devices and stopped applications are dropped without error.
func (d *deviceModel) receiveIPDeviceUplink(ctx context.Context, env *model.Env, args UplinkArgs) (struct{}, error) {
	devEUI := NormalizeDevEUI(args.DevEUI)
	ipType, err := d.deps.Catalog.TypeByName(ctx, d.deps.IPNetworkType)
	if err != nil {
		return struct{}{}, err
	}

	linkModel, err := env.Model(RoleLink)
	if err != nil {
		return struct{}{}, err
	}
	link, err := model.Call[*Link](ctx, linkModel, "findByDevEUI", FindArgs{DevEUI: devEUI, NetworkTypeID: ipType.ID})
	if err != nil {
		return struct{}{}, err
	}
	if link == nil {
		env.Log().Debug("uplink from unknown device dropped", "dev_eui", devEUI)
		return struct{}{}, nil
	}

	protocol, err := d.deps.Catalog.FirstProtocol(ctx, ipType.ID)
	if err != nil {
		return struct{}{}, err
	}
	h, err := d.deps.Handlers.ForProtocol(ctx, protocol.ID)
	if err != nil {
		return struct{}{}, err
	}
	return struct{}{}, d.deliverUplink(ctx, env, h, link.DeviceID, devEUI, args.Payload)
}

// receiveNetworkUplink routes device data reported by a bridged network.
func (d *deviceModel) receiveNetworkUplink(ctx context.Context, env *model.Env, args NetworkUplinkArgs) (struct{}, error) {
	n, err := d.deps.Catalog.Networks.Load(ctx, store.ByID(args.NetworkID))
	if err != nil {
		return struct{}{}, fmt.Errorf("loading network %s: %w", args.NetworkID, err)
	}
	if !n.Enabled {
		env.Log().Debug("uplink from disabled network dropped", "network_id", n.ID)
		return struct{}{}, nil
	}
	h, err := d.deps.Handlers.ForNetwork(ctx, n)
	if err != nil {
		return struct{}{}, err
	}

	devEUI, err := d.deps.Stores.DevEUI(ctx, args.DeviceID, n.NetworkTypeID)
	if err != nil && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, ErrInvalidDevEUI) {
		return struct{}{}, err
	}
	return struct{}{}, d.deliverUplink(ctx, env, h, args.DeviceID, devEUI, args.Payload)
}

// deliverUplink hands payload to h unless the device's application is stopped.
func (d *deviceModel) deliverUplink(ctx context.Context, env *model.Env, h network.Handler, deviceID, devEUI string, payload json.RawMessage) error {
	dev, err := model.Call[Device](ctx, env.Self(), "load", store.ByID(deviceID))
	if err != nil {
		return err
	}
	app, err := loadFrom[Application](ctx, env, RoleApplication, dev.ApplicationID)
	if err != nil {
		return err
	}
	if !app.Running {
		env.Log().Debug("uplink for stopped application dropped", "application_id", app.ID, "device_id", dev.ID)
		return nil
	}
	return h.ReceiveUplink(ctx, network.Uplink{
		ApplicationID:   app.ID,
		ApplicationName: app.Name,
		DeviceID:        dev.ID,
		DeviceName:      dev.Name,
		DevEUI:          devEUI,
		Payload:         payload,
		ReceivedAt:      time.Now().UTC(),
	})
}

func (d *deviceModel) pushIPDeviceDownlink(ctx context.Context, _ *model.Env, args MailboxArgs) (int, error) {
	return d.deps.Mailbox.Push(ctx, NormalizeDevEUI(args.DevEUI), args.Payload)
}

func (d *deviceModel) listIPDeviceDownlinks(ctx context.Context, _ *model.Env, devEUI string) ([]json.RawMessage, error) {
	return d.deps.Mailbox.Drain(ctx, NormalizeDevEUI(devEUI))
}

// importDevices creates one device and IP link per row. Rows are
// independent: a failing row is reported and the others proceed.
func (d *deviceModel) importDevices(ctx context.Context, env *model.Env, args ImportArgs) ([]ImportResult, error) {
	app, err := loadFrom[Application](ctx, env, RoleApplication, args.ApplicationID)
	if err != nil {
		return nil, err
	}
	profile, err := loadFrom[Profile](ctx, env, RoleProfile, args.ProfileID)
	if err != nil {
		return nil, err
	}
	nwkType, err := d.deps.Catalog.Types.Load(ctx, store.ByID(profile.NetworkTypeID))
	if err != nil {
		return nil, fmt.Errorf("loading network type of profile %s: %w", profile.ID, err)
	}
	if nwkType.Name != d.deps.IPNetworkType {
		return nil, fmt.Errorf("%w: profile %s is %s", ErrImportNotSupported, profile.ID, nwkType.Name)
	}

	linkModel, err := env.Model(RoleLink)
	if err != nil {
		return nil, err
	}

	results := make([]ImportResult, len(args.Devices))
	var wg sync.WaitGroup
	for i, row := range args.Devices {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.importRow(ctx, env, linkModel, app, profile, i, row)
		}()
	}
	wg.Wait()

	return results, nil
}

func (d *deviceModel) importRow(ctx context.Context, env *model.Env, linkModel *model.Model, app Application, profile Profile, i int, row ImportRow) ImportResult {
	fail := func(err error) ImportResult {
		return ImportResult{Status: ImportError, Error: err.Error(), DevEUI: row.DevEUI, Row: i}
	}
	if row.DevEUI == "" {
		return fail(ErrDevEUIRequired)
	}

	name := row.Name
	if name == "" {
		name = row.DevEUI
	}
	dev, err := model.Call[Device](ctx, env.Self(), "create", Device{
		Name:          name,
		Description:   row.Description,
		DeviceModel:   row.DeviceModel,
		ApplicationID: app.ID,
	})
	if err != nil {
		return fail(err)
	}

	_, err = model.Call[Link](ctx, linkModel, "create", Link{
		DeviceID:        dev.ID,
		NetworkTypeID:   profile.NetworkTypeID,
		ProfileID:       profile.ID,
		Enabled:         true,
		NetworkSettings: map[string]any{devEUISetting: row.DevEUI},
	}, model.WithSession(env.Session))
	if err != nil {
		return fail(err)
	}
	return ImportResult{Status: ImportOK, DeviceID: dev.ID, DevEUI: row.DevEUI, Row: i}
}
