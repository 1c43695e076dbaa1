// Package wire implements the coffer protocol's framing: a fixed 9-byte
// header (8-byte big-endian payload length, 1-byte message type) followed
// by exactly that many payload bytes.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/arminfriedl/coffer/internal/coffererr"
	"github.com/arminfriedl/coffer/internal/limits"
)

// Message type codes, normative across the wire.
const (
	Hello uint8 = 0x00 // C->S, payload: client public key (32 bytes)
	Get   uint8 = 0x02 // C->S, empty payload
	OkGet uint8 = 0x05 // S->C, sealed CBOR-encoded shard
	Bye   uint8 = 0x99 // C->S, empty payload
)

// HeaderSize is the fixed length of a frame header: 8 bytes length + 1 byte
// type.
const HeaderSize = 9

// DefaultMaxPayloadSize bounds payload_length to prevent a peer from driving
// the receiver to allocate unbounded memory.
const DefaultMaxPayloadSize = limits.MaxFramePayload

// Frame is one logical message on the wire.
type Frame struct {
	Type    uint8
	Payload []byte
}

// WriteFrame emits header then payload as a single logical write.
func WriteFrame(w io.Writer, msgType uint8, payload []byte) error {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint64(buf[0:8], uint64(len(payload)))
	buf[8] = msgType
	copy(buf[9:], payload)

	if _, err := w.Write(buf); err != nil {
		return coffererr.Wrap(coffererr.IO, "wire.WriteFrame", err)
	}
	return nil
}

// ReadHeader reads exactly HeaderSize bytes and decodes them.
func ReadHeader(r io.Reader) (length uint64, msgType uint8, err error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, 0, coffererr.Wrap(coffererr.IO, "wire.ReadHeader", err)
	}

	length = binary.BigEndian.Uint64(header[0:8])
	msgType = header[8]
	return length, msgType, nil
}

// ReadPayload reads exactly length bytes into a freshly allocated,
// zero-initialized buffer. length must already have been checked against a
// maximum by the caller (see ReadFrame).
func ReadPayload(r io.Reader, length uint64) ([]byte, error) {
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, coffererr.Wrap(coffererr.IO, "wire.ReadPayload", err)
	}
	return payload, nil
}

// ReadFrame reads a full frame, rejecting any payload_length beyond
// maxPayload.
func ReadFrame(r io.Reader, maxPayload uint64) (Frame, error) {
	length, msgType, err := ReadHeader(r)
	if err != nil {
		return Frame{}, err
	}
	if err := limits.ValidateSizeU64(length, maxPayload); err != nil {
		return Frame{}, coffererr.Wrap(coffererr.Protocol, "wire.ReadFrame", err)
	}

	payload, err := ReadPayload(r, length)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: msgType, Payload: payload}, nil
}
