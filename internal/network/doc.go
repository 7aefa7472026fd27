// Package network holds the network catalogue (types, protocols and
// operator-configured network instances) and the fan-out engine that runs
// an operation against every live network of a type.
//
// A NetworkType such as "IP" or "LoRa" can be served by several protocol
// versions and several concurrently running networks. ForAllNetworks
// resolves every enabled network of a type and runs the operation on each
// concurrently. One network failing never cancels or hides the others:
// every network's outcome is reported, and the call returns once all have
// settled. Nothing is retried here.
//
// Deployments record, per network and entity, whether the network holds
// the entity's current state (CURRENT) or is stale (UPDATED). MarkStale
// flags every network of a type except the one a change came from.
//
// Protocol handlers are resolved through a HandlerRegistry keyed by the
// protocol's handler identifier and cached per protocol.
package network
