package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Envelope layout on the wire, as a sequence of length-prefixed frames
// packed into a single transport payload:
//
//	frame 0: routing address (plugin identity, also the reply topic leaf)
//	frame 1: empty delimiter
//	frame 2: single tag byte
//	frame 3+: message payload frames
//
// Each frame is a big-endian uint32 length followed by that many bytes.
const (
	// frameLenSize is the size of the frame length prefix.
	frameLenSize = 4

	// fixedFrames is the number of header frames before the payload.
	fixedFrames = 3

	// maxFrameLen guards against corrupt length prefixes.
	maxFrameLen = 1 << 20
)

// Envelope is a decoded hub message.
type Envelope struct {
	// RoutingAddress identifies the sending (inbound) or receiving
	// (outbound) plugin.
	RoutingAddress string

	// Tag is the message type.
	Tag Tag

	// Payload holds the message payload frames, excluding the header.
	Payload [][]byte
}

// NewEnvelope builds an envelope, JSON-encoding each payload value
// into its own frame.
func NewEnvelope(routingAddress string, tag Tag, payloads ...any) (*Envelope, error) {
	if routingAddress == "" {
		return nil, ErrEmptyAddress
	}
	if !tag.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, byte(tag))
	}

	e := &Envelope{
		RoutingAddress: routingAddress,
		Tag:            tag,
		Payload:        make([][]byte, 0, len(payloads)),
	}
	for _, p := range payloads {
		frame, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encoding payload frame: %w", err)
		}
		e.Payload = append(e.Payload, frame)
	}
	return e, nil
}

// Encode serialises the envelope into a single transport payload.
func (e *Envelope) Encode() ([]byte, error) {
	if e.RoutingAddress == "" {
		return nil, ErrEmptyAddress
	}
	if !e.Tag.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, byte(e.Tag))
	}

	frames := make([][]byte, 0, fixedFrames+len(e.Payload))
	frames = append(frames, []byte(e.RoutingAddress), nil, []byte{byte(e.Tag)})
	frames = append(frames, e.Payload...)

	size := 0
	for _, f := range frames {
		size += frameLenSize + len(f)
	}

	buf := make([]byte, 0, size)
	for _, f := range frames {
		var lenPrefix [frameLenSize]byte
		binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(f)))
		buf = append(buf, lenPrefix[:]...)
		buf = append(buf, f...)
	}
	return buf, nil
}

// Decode parses a transport payload into an envelope.
//
// Malformed input returns an error wrapping one of the package
// sentinels; the hub logs and drops such messages rather than crashing.
func Decode(data []byte) (*Envelope, error) {
	frames, err := splitFrames(data)
	if err != nil {
		return nil, err
	}
	if len(frames) < fixedFrames {
		return nil, fmt.Errorf("%w: got %d frames, need at least %d",
			ErrTruncated, len(frames), fixedFrames)
	}

	if len(frames[0]) == 0 {
		return nil, ErrEmptyAddress
	}
	if len(frames[1]) != 0 {
		return nil, ErrBadDelimiter
	}
	if len(frames[2]) != 1 {
		return nil, fmt.Errorf("%w: tag frame is %d bytes", ErrBadTagFrame, len(frames[2]))
	}

	tag := Tag(frames[2][0])
	if !tag.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, frames[2][0])
	}

	return &Envelope{
		RoutingAddress: string(frames[0]),
		Tag:            tag,
		Payload:        frames[fixedFrames:],
	}, nil
}

// DecodePayload unmarshals payload frame i into v.
func (e *Envelope) DecodePayload(i int, v any) error {
	if i < 0 || i >= len(e.Payload) {
		return fmt.Errorf("%w: frame %d of %d", ErrTruncated, i, len(e.Payload))
	}
	if err := json.Unmarshal(e.Payload[i], v); err != nil {
		return fmt.Errorf("decoding payload frame %d: %w", i, err)
	}
	return nil
}

// splitFrames parses the length-prefixed frame sequence.
func splitFrames(data []byte) ([][]byte, error) {
	var frames [][]byte
	for len(data) > 0 {
		if len(data) < frameLenSize {
			return nil, fmt.Errorf("%w: %d trailing bytes", ErrTruncated, len(data))
		}
		n := binary.BigEndian.Uint32(data[:frameLenSize])
		if n > maxFrameLen {
			return nil, fmt.Errorf("%w: frame length %d", ErrFrameTooLarge, n)
		}
		data = data[frameLenSize:]
		if uint32(len(data)) < n {
			return nil, fmt.Errorf("%w: frame length %d exceeds remaining %d",
				ErrTruncated, n, len(data))
		}
		frames = append(frames, data[:n])
		data = data[n:]
	}
	return frames, nil
}
