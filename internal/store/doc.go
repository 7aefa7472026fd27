// Package store is the record layer every entity in LPWAN Core is persisted
// through.
//
// Store is the data-access contract consumed by the model and collection
// packages: create, list with offset/limit and an optional total count,
// load by filter, update by filter and remove by id. Table is the SQLite
// implementation, parameterised by a Schema that maps a Go struct onto a
// table's columns.
//
// Filters are expressed as Where maps. A key is a column name, optionally
// suffixed with an operator:
//
//	store.Where{"application_id": appID}          // equality
//	store.Where{"name_contains": "meter"}         // LIKE %meter%
//	store.Where{"data_identifier_starts_with": "dev:"}
//	store.Where{"id_in": []string{"a", "b"}}
//	store.Where{"status_not": "CURRENT"}
//
// Keys that do not resolve to a schema column are rejected with
// ErrInvalidFilter, so filters never reach SQL unvalidated.
package store
