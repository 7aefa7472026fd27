package network

import "errors"

var (
	// ErrNetworkTypeNotFound is returned when a network type does not exist.
	ErrNetworkTypeNotFound = errors.New("network: type not found")

	// ErrNoProtocol is returned when a network type has no protocol configured.
	ErrNoProtocol = errors.New("network: no protocol for network type")

	// ErrUnknownHandler is returned when a protocol names a handler nobody registered.
	ErrUnknownHandler = errors.New("network: unknown protocol handler")

	// ErrDuplicateHandler is returned when a handler identifier is registered twice.
	ErrDuplicateHandler = errors.New("network: handler already registered")

	// ErrUpstream wraps a failure reported by an individual network.
	ErrUpstream = errors.New("network: upstream failure")

	// ErrInvalidDownlink is returned when a downlink payload fails validation.
	ErrInvalidDownlink = errors.New("network: invalid downlink")

	// ErrInvalidStatus is returned for a deployment status other than CURRENT or UPDATED.
	ErrInvalidStatus = errors.New("network: invalid deployment status")
)
