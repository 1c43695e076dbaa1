// Package limits centralizes the wire and bootstrap size ceilings the rest
// of coffer validates against, so every component enforces the same bounds
// instead of repeating magic numbers.
package limits

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

const (
	// HelloPayloadSize is the exact payload length a Hello message must
	// have: a raw Curve25519 public key.
	HelloPayloadSize = 32

	// MaxFramePayload bounds any single frame's payload, preventing a peer
	// from driving the receiver to allocate unbounded memory from an
	// attacker-controlled length header.
	MaxFramePayload = 16 * 1024 * 1024

	// SealedBoxOverhead is the byte cost a sealed box adds on top of the
	// plaintext: an ephemeral public key plus the NaCl box's Poly1305 tag.
	SealedBoxOverhead = 32 + box.Overhead

	// MaxBootstrapDocument bounds the sealed secrets file read at startup,
	// before it is ever opened or parsed.
	MaxBootstrapDocument = 8 * 1024 * 1024
)

// ErrTooLarge is wrapped by every size-ceiling violation; callers can test
// for it with errors.Is regardless of which limit was exceeded.
var ErrTooLarge = errors.New("size exceeds limit")

// ValidateSize reports an error wrapping ErrTooLarge if n exceeds max. A
// zero-length n is not itself an error: several coffer messages (Get, Bye)
// are legitimately empty.
func ValidateSize(n, max int) error {
	if n > max {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, n, max)
	}
	return nil
}

// ValidateSizeU64 is ValidateSize for a length read directly off the wire as
// a u64: the comparison happens in uint64 space before either value is ever
// narrowed to an int, so a peer-controlled length with the high bit set
// cannot wrap negative and slip past the check.
func ValidateSizeU64(n, max uint64) error {
	if n > max {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, n, max)
	}
	return nil
}

// ValidateExactSize reports an error if n is not exactly want, used for
// fixed-shape payloads like Hello's public key.
func ValidateExactSize(n, want int) error {
	if n != want {
		return fmt.Errorf("expected exactly %d bytes, got %d", want, n)
	}
	return nil
}
