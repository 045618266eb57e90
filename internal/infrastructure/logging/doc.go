// Package logging provides structured logging for Hearth Core.
//
// It wraps log/slog with configuration-driven level and format selection
// and stamps every record with the service name and version. Packages
// that need logging declare their own minimal Logger interface and accept
// anything satisfying it, keeping them independent of this wrapper.
package logging
