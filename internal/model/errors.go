package model

import "errors"

var (
	// ErrUnknownOperation is returned when a model has no operation of the requested name.
	ErrUnknownOperation = errors.New("model: unknown operation")

	// ErrUnknownRole is returned when the registry has no model for a role.
	ErrUnknownRole = errors.New("model: unknown role")

	// ErrDuplicateRole is returned when a role is registered twice.
	ErrDuplicateRole = errors.New("model: role already registered")

	// ErrInvalidArgs is returned when an operation receives arguments of the wrong type.
	ErrInvalidArgs = errors.New("model: invalid arguments")

	// ErrUnexpectedResult is returned when an operation result has the wrong type.
	ErrUnexpectedResult = errors.New("model: unexpected result type")

	// ErrNoStore is returned when an operation needs a store the Env does not carry.
	ErrNoStore = errors.New("model: no store in env")

	// ErrNoRegistry is returned when an operation needs another model but the Env has no registry.
	ErrNoRegistry = errors.New("model: no registry in env")
)
