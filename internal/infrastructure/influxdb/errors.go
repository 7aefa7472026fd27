package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when the integration is switched off.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps a failed initial ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck and reported through the
	// error callback for points dropped while the client is closed.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps every asynchronous batch write failure handed to
	// the error callback.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
