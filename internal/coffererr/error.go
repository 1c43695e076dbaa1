// Package coffererr defines the typed error kinds shared across the coffer
// server and client: IO, Crypto, Parse, KeyExists, UnknownClient, Protocol
// and Config failures all carry one of these kinds so callers can branch on
// failure class without string matching.
package coffererr

import "fmt"

// Kind classifies a coffer error.
type Kind uint8

const (
	// IO covers file and socket failures.
	IO Kind = iota
	// Crypto covers seal/open failures and malformed keys.
	Crypto
	// Parse covers TOML, CBOR and hex decoding failures.
	Parse
	// KeyExists is returned when Put targets an occupied (shard, key).
	KeyExists
	// UnknownClient is returned when a seal is requested for an unregistered
	// public key.
	UnknownClient
	// Protocol covers unexpected messages, oversized frames and short reads.
	Protocol
	// Config covers bad CLI flags or environment values.
	Config
)

func (k Kind) String() string {
	switch k {
	case IO:
		return "io"
	case Crypto:
		return "crypto"
	case Parse:
		return "parse"
	case KeyExists:
		return "key_exists"
	case UnknownClient:
		return "unknown_client"
	case Protocol:
		return "protocol"
	case Config:
		return "config"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carried across package boundaries. Op
// names the failing operation (e.g. "certificate.Load", "store.Put") and Err
// is the underlying cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether the first *Error found along err's unwrap chain has the
// given Kind. Causes wrapped inside that *Error are not consulted.
func Is(err error, kind Kind) bool {
	var ce *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			ce = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return ce != nil && ce.Kind == kind
}

// New builds an *Error with no underlying cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap builds an Error around an existing cause. It returns a plain nil
// error (not a typed *Error nil) when err is nil, so callers can return its
// result directly without an interface wrapping a nil pointer.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
