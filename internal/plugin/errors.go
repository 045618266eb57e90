package plugin

import "errors"

// Sentinel errors for plugin operations.
var (
	// ErrNotFound indicates the plugin does not exist.
	ErrNotFound = errors.New("plugin not found")

	// ErrDuplicateName indicates a plugin with that name already exists.
	ErrDuplicateName = errors.New("plugin name already exists")

	// ErrInvalidName indicates an empty or malformed plugin name.
	ErrInvalidName = errors.New("invalid plugin name")
)
