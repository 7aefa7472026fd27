// Package bridge implements the protocol handler for networks run by an
// external network server reached over MQTT.
//
// The core does not speak the remote network's API. It hands downlinks to
// a bridge process on lpwan/command/{networkID}/{remoteID} and receives
// device data on lpwan/bridge/{networkID}/uplink/{remoteID}. The mapping
// between core device ids and remote ids is kept in protocol data under
// dev:{deviceID}:remoteId, one record per network.
package bridge
