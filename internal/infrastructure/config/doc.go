// Package config loads and validates Hearth Core configuration.
//
// Configuration is read from a YAML file, with defaults applied for any
// omitted values and selected settings overridable through HEARTH_*
// environment variables. A loaded Config is immutable by convention:
// packages receive the sections they need at construction time.
package config
