// Package uplink feeds device data arriving over MQTT into the device
// models.
//
// IP devices publish on lpwan/uplink/ip/{devEUI}. Bridged networks publish
// on lpwan/bridge/{networkID}/uplink/{remoteID}; the remote id is resolved
// to a core device through the network's bridge handler.
package uplink
