package rules

import "errors"

// Sentinel errors for rule loading and evaluation.
var (
	// ErrUnknownOperator indicates an operator outside eq/ne/gt/lt.
	ErrUnknownOperator = errors.New("unknown comparison operator")

	// ErrNotComparable indicates a non-numeric operand for gt/lt.
	ErrNotComparable = errors.New("value not numeric")

	// ErrMissingParameter indicates a rule row lacks a required parameter.
	ErrMissingParameter = errors.New("missing rule parameter")

	// ErrUnknownTriggerType indicates an unrecognised trigger type.
	ErrUnknownTriggerType = errors.New("unknown trigger type")

	// ErrUnknownControlType indicates a device control type the engine
	// cannot map to a command.
	ErrUnknownControlType = errors.New("unknown control type")
)
