// Package value owns devices and their current values.
//
// Plugins report values over the wire; the store persists them and
// keeps an in-memory mirror keyed by value id. Rule triggers fire off
// the changes Apply returns, and rule conditions read the mirror.
package value
