// Package protocoldata is a small key/value store scoped to a
// (network, protocol) pair.
//
// Protocol handlers keep backend correlation data here, such as the remote
// id a network server assigned to a device, plus arbitrary sync markers.
// At most one record exists per (network, protocol, key): Upsert updates in
// place or creates. Concurrent upserts of the same key are serialised
// in-process, and the table's unique index turns a lost cross-process
// create race into an update.
package protocoldata
