package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, store.ErrNotFound) {
//	    // the device, application or profile does not exist
//	}
var (
	// ErrMissingWhere is returned when an update has no record identifier.
	ErrMissingWhere = errors.New(`device: no record identifier "where"`)

	// ErrDevEUIRequired is reported for import rows without a devEUI.
	ErrDevEUIRequired = errors.New("devEUI required for each imported device.") //nolint:revive,stylecheck // message is part of the import result contract

	// ErrImportNotSupported is returned when the device profile is not of the IP network type.
	ErrImportNotSupported = errors.New("device: import currently only supports IP devices")

	// ErrInvalidDevEUI is returned when a devEUI has no hex digits.
	ErrInvalidDevEUI = errors.New("device: invalid devEUI")
)
