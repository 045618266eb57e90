package wire

import "errors"

// Sentinel errors for envelope decoding.
var (
	// ErrTruncated indicates the payload ended mid-frame or is missing frames.
	ErrTruncated = errors.New("wire: truncated envelope")

	// ErrEmptyAddress indicates a missing routing address frame.
	ErrEmptyAddress = errors.New("wire: empty routing address")

	// ErrBadDelimiter indicates the delimiter frame was not empty.
	ErrBadDelimiter = errors.New("wire: bad delimiter frame")

	// ErrBadTagFrame indicates the tag frame was not exactly one byte.
	ErrBadTagFrame = errors.New("wire: bad tag frame")

	// ErrUnknownTag indicates a tag outside the known message types.
	ErrUnknownTag = errors.New("wire: unknown tag")

	// ErrFrameTooLarge indicates a frame length prefix beyond the sane limit.
	ErrFrameTooLarge = errors.New("wire: frame too large")

	// ErrNotRPC indicates a correlation id was requested from a non-RPC envelope.
	ErrNotRPC = errors.New("wire: not an rpc envelope")
)
