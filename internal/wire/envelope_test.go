package wire

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	update := ValueUpdate{
		PluginID: "plug-1",
		Address:  "node-7",
		Values:   map[string]string{"temperature": "21.5"},
		Time:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	env, err := NewEnvelope("plug-1", TagValueUpdate, update)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.RoutingAddress != "plug-1" {
		t.Errorf("RoutingAddress = %q, want %q", decoded.RoutingAddress, "plug-1")
	}
	if decoded.Tag != TagValueUpdate {
		t.Errorf("Tag = %v, want %v", decoded.Tag, TagValueUpdate)
	}

	var got ValueUpdate
	if err := decoded.DecodePayload(0, &got); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if got.Address != update.Address || got.Values["temperature"] != "21.5" {
		t.Errorf("payload round trip mismatch: %+v", got)
	}
	if !got.Time.Equal(update.Time) {
		t.Errorf("Time = %v, want %v", got.Time, update.Time)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	valid, err := NewEnvelope("plug-1", TagHeartbeat, Heartbeat{PluginID: "plug-1"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	validBytes, err := valid.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty input", nil, ErrTruncated},
		{"truncated prefix", []byte{0, 0}, ErrTruncated},
		{"truncated frame", []byte{0, 0, 0, 9, 'x'}, ErrTruncated},
		{"only two frames", encodeFrames([]byte("addr"), nil), ErrTruncated},
		{"empty address", encodeFrames(nil, nil, []byte{byte(TagReady)}), ErrEmptyAddress},
		{"non-empty delimiter", encodeFrames([]byte("addr"), []byte("x"), []byte{byte(TagReady)}), ErrBadDelimiter},
		{"multi-byte tag frame", encodeFrames([]byte("addr"), nil, []byte{1, 2}), ErrBadTagFrame},
		{"unknown tag", encodeFrames([]byte("addr"), nil, []byte{99}), ErrUnknownTag},
		{"mangled valid envelope", validBytes[:len(validBytes)-2], ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, maxFrameLen+1)
	if _, err := Decode(data); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("Decode() error = %v, want %v", err, ErrFrameTooLarge)
	}
}

func TestNewEnvelopeValidation(t *testing.T) {
	if _, err := NewEnvelope("", TagReady); !errors.Is(err, ErrEmptyAddress) {
		t.Errorf("empty address: error = %v, want %v", err, ErrEmptyAddress)
	}
	if _, err := NewEnvelope("addr", Tag(200)); !errors.Is(err, ErrUnknownTag) {
		t.Errorf("bad tag: error = %v, want %v", err, ErrUnknownTag)
	}
}

func TestTagString(t *testing.T) {
	tests := []struct {
		tag  Tag
		want string
	}{
		{TagReady, "ready"},
		{TagHeartbeat, "heartbeat"},
		{TagValueUpdate, "value_update"},
		{TagRPCRequest, "rpc_request"},
		{TagRPCReply, "rpc_reply"},
		{TagCrudBroadcast, "crud_broadcast"},
		{Tag(42), "unknown(42)"},
	}
	for _, tt := range tests {
		if got := tt.tag.String(); got != tt.want {
			t.Errorf("Tag(%d).String() = %q, want %q", byte(tt.tag), got, tt.want)
		}
	}
}

// encodeFrames packs raw frames the way Envelope.Encode does, without
// any validation, for building malformed test inputs.
func encodeFrames(frames ...[]byte) []byte {
	var buf []byte
	for _, f := range frames {
		var lenPrefix [4]byte
		binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(f)))
		buf = append(buf, lenPrefix[:]...)
		buf = append(buf, f...)
	}
	return buf
}
