// Package device implements the device and application entities and their
// synchronisation onto every linked network.
//
// Entities are driven through model.Model operation tables registered in a
// model.Registry under the roles below. Besides the generic CRUD
// operations, the device model offers:
//
//   - update: propagates name/description edits by marking every linked
//     network stale except the one the edit came from
//   - upsert: update-or-create by name
//   - remove: drains the device's network type links first
//   - passDataToDevice: validates a downlink and fans it out to every
//     network of every enabled link
//   - receiveIpDeviceUplink: routes IP uplinks to the owning application,
//     silently dropping unknown devices and stopped applications
//   - pushIpDeviceDownlink / listIpDeviceDownlinks: the IP mailbox
//   - importDevices: bulk create with per-row error reporting
//
// Service wraps the models with typed methods for callers outside the
// model layer.
package device
