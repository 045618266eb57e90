package value

import "errors"

// Sentinel errors for value operations.
var (
	// ErrDeviceNotFound indicates no device matches the plugin/address pair.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrValueNotFound indicates the value id is unknown.
	ErrValueNotFound = errors.New("value not found")

	// ErrControlTypeNotFound indicates the device has no control type set.
	ErrControlTypeNotFound = errors.New("control type not found")
)
