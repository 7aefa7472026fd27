// Package model builds the per-entity operation tables every LPWAN Core
// entity is driven through.
//
// A Model pairs a role ("device", "application", ...) with a table of named
// operations and a shared Env. Every call:
//
//   - merges caller-supplied Env fields over the model's Env
//   - invokes the operation with the merged Env
//   - reports failures to the Env's Tracer, then returns the error unchanged
//
// Operations reach the other models through Env.Models and their own table
// through Env.Self. The self view layers the private operations over the
// public ones, so generic operations such as listAll and removeMany run
// against the entity's own list and remove, overrides included.
//
//	m := model.Build(model.Spec{
//	    Role:   "device",
//	    Env:    model.Env{Store: devices, Models: registry, Logger: log},
//	    Public: model.CRUD[device.Device](100).With(overrides),
//	})
//	d, err := model.Call[device.Device](ctx, m, "load", store.ByID(id))
package model
