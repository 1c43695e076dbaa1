// Package keyring owns the server's own certificate plus the registry of
// known client public keys. It is effectively immutable once bootstrap
// completes: keys are only ever inserted during startup.
package keyring

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"

	"github.com/arminfriedl/coffer/internal/bootstrap"
	"github.com/arminfriedl/coffer/internal/certificate"
	"github.com/arminfriedl/coffer/internal/coffererr"
)

// Keyring pairs the server's own Certificate with the set of client public
// keys it trusts.
type Keyring struct {
	cert *certificate.Certificate

	mu   sync.RWMutex
	keys map[[32]byte]struct{}
}

// New builds a Keyring around an already-constructed Certificate.
func New(cert *certificate.Certificate) *Keyring {
	return &Keyring{cert: cert, keys: make(map[[32]byte]struct{})}
}

// Load builds a Keyring by reading the owner's certificate from certPath.
func Load(certPath string) (*Keyring, error) {
	cert, err := certificate.Load(certPath)
	if err != nil {
		return nil, coffererr.Wrap(coffererr.IO, "keyring.Load", err)
	}
	return New(cert), nil
}

// AddKnownKey validates key as a well-formed 32-byte Curve25519 public point
// and stores it as trusted.
func (k *Keyring) AddKnownKey(key []byte) error {
	if len(key) != 32 {
		return coffererr.New(coffererr.Crypto, fmt.Sprintf("keyring.AddKnownKey: key must be 32 bytes, got %d", len(key)))
	}
	if !isValidCurvePoint(key) {
		return coffererr.New(coffererr.Crypto, "keyring.AddKnownKey: not a valid curve25519 point")
	}

	var pk [32]byte
	copy(pk[:], key)

	k.mu.Lock()
	k.keys[pk] = struct{}{}
	k.mu.Unlock()

	logrus.WithField("public_key", hex.EncodeToString(key[:8])).Debug("keyring: registered known key")
	return nil
}

// AddKnownKeysFromTOML walks the bootstrap TOML tree and registers each
// shard's id (hex-decoded) as a known client key. Group tables without an id
// are recursed into; shard tables with an id must not contain nested
// subtables.
func (k *Keyring) AddKnownKeysFromTOML(doc string) error {
	shards, err := bootstrap.Parse(doc)
	if err != nil {
		return err
	}

	for _, shard := range shards {
		key, err := hex.DecodeString(strings.ToLower(shard.ID))
		if err != nil {
			return coffererr.Wrap(coffererr.Parse, "keyring.AddKnownKeysFromTOML", err)
		}
		if err := k.AddKnownKey(key); err != nil {
			return err
		}
	}
	return nil
}

// Open delegates to the owned certificate.
func (k *Keyring) Open(ciphertext []byte) ([]byte, error) {
	return k.cert.Open(ciphertext)
}

// SealFor anonymously seals plaintext under a client's registered public
// key. It fails with an UnknownClient error if the key has not been
// registered.
func (k *Keyring) SealFor(clientPub []byte, plaintext []byte) ([]byte, error) {
	if len(clientPub) != 32 {
		return nil, coffererr.New(coffererr.Crypto, "keyring.SealFor: client key must be 32 bytes")
	}

	var pk [32]byte
	copy(pk[:], clientPub)

	k.mu.RLock()
	_, known := k.keys[pk]
	k.mu.RUnlock()

	if !known {
		return nil, coffererr.New(coffererr.UnknownClient, "keyring.SealFor: client not registered")
	}

	out, err := certificate.SealTo(pk, plaintext)
	if err != nil {
		return nil, coffererr.Wrap(coffererr.Crypto, "keyring.SealFor", err)
	}
	return out, nil
}

// isValidCurvePoint rejects obviously degenerate points (all-zero and
// low-order points that would produce a predictable shared secret), the
// same shape of check curve25519 implementations perform before accepting a
// peer key.
func isValidCurvePoint(key []byte) bool {
	var zero [32]byte
	if string(key) == string(zero[:]) {
		return false
	}
	// A basic sanity multiplication catches malformed (non-32-byte already
	// excluded) or all-zero points; curve25519.X25519 rejects low-order
	// points that collapse to an all-zero shared secret.
	var scalar [32]byte
	scalar[0] = 9
	var point [32]byte
	copy(point[:], key)
	out, err := curve25519.X25519(scalar[:], point[:])
	if err != nil {
		return false
	}
	return len(out) == 32
}
