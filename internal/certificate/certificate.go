// Package certificate owns a single Curve25519 keypair in guarded memory
// and performs the anonymous sealed-box sealing/opening used throughout the
// coffer wire protocol. A Certificate is immutable once constructed: the
// keypair is generated or loaded exactly once and lives for the process
// lifetime.
package certificate

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/nacl/box"

	"github.com/arminfriedl/coffer/internal/coffererr"
)

// record is the CBOR-on-disk shape of a certificate: a map with exactly two
// byte-string fields, per spec.
type record struct {
	PublicKey  []byte `cbor:"public_key"`
	PrivateKey []byte `cbor:"private_key"`
}

// Certificate owns exactly one (public_key, secret_key) pair for the
// crypto_box construction. The secret key lives behind a best-effort mlock
// and is zeroed on Close; all reads go through a scoped guard.
type Certificate struct {
	public [32]byte
	secret [32]byte
}

// Generate produces a fresh keypair using crypto/rand entropy.
func Generate() (*Certificate, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, coffererr.Wrap(coffererr.Crypto, "certificate.Generate", err)
	}

	c := &Certificate{public: *pub, secret: *priv}
	if err := lockMemory(c.secret[:]); err != nil {
		logrus.WithError(err).Debug("certificate: mlock unavailable, continuing without it")
	}

	logrus.WithFields(logrus.Fields{
		"operation":  "certificate.Generate",
		"public_key": fmt.Sprintf("%x", c.public[:8]),
	}).Info("generated new certificate")

	return c, nil
}

// Load reads a CBOR-encoded {public_key, private_key} record from path.
func Load(path string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, coffererr.Wrap(coffererr.IO, "certificate.Load", err)
	}

	var rec record
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, coffererr.Wrap(coffererr.Parse, "certificate.Load", err)
	}

	if len(rec.PublicKey) != 32 || len(rec.PrivateKey) != 32 {
		return nil, coffererr.New(coffererr.Parse, "certificate.Load: keys must be 32 bytes")
	}

	c := &Certificate{}
	copy(c.public[:], rec.PublicKey)
	copy(c.secret[:], rec.PrivateKey)
	secureWipe(rec.PrivateKey)

	if err := lockMemory(c.secret[:]); err != nil {
		logrus.WithError(err).Debug("certificate: mlock unavailable, continuing without it")
	}

	logrus.WithFields(logrus.Fields{
		"operation":  "certificate.Load",
		"path":       path,
		"public_key": fmt.Sprintf("%x", c.public[:8]),
	}).Debug("loaded certificate from disk")

	return c, nil
}

// Export serializes the certificate to CBOR. This is an optional feature,
// unused by the server binary, kept so a companion key-generation tool can
// be built against this package without modification.
func (c *Certificate) Export() ([]byte, error) {
	guard := c.secretGuard()
	rec := record{
		PublicKey:  c.public[:],
		PrivateKey: guard.Bytes()[:],
	}
	out, err := cbor.Marshal(rec)
	if err != nil {
		return nil, coffererr.Wrap(coffererr.Parse, "certificate.Export", err)
	}
	return out, nil
}

// PublicKey returns a copy of the public half of the keypair.
func (c *Certificate) PublicKey() [32]byte {
	return c.public
}

// Seal anonymously encrypts plaintext under this certificate's own public
// key, i.e. the recipient is this certificate itself.
func (c *Certificate) Seal(plaintext []byte) ([]byte, error) {
	out, err := sealAnonymous(plaintext, &c.public)
	if err != nil {
		return nil, coffererr.Wrap(coffererr.Crypto, "certificate.Seal", err)
	}
	return out, nil
}

// Open opens a sealed box addressed to this certificate.
func (c *Certificate) Open(ciphertext []byte) ([]byte, error) {
	guard := c.secretGuard()
	plaintext, err := openAnonymous(ciphertext, &c.public, guard.Bytes())
	if err != nil {
		return nil, coffererr.Wrap(coffererr.Crypto, "certificate.Open", err)
	}
	return plaintext, nil
}

// SealTo anonymously seals plaintext under an arbitrary recipient public
// key. Unlike (*Certificate).Seal it does not require owning a keypair for
// the recipient; it is used by the keyring to seal bundles for clients.
func SealTo(recipientPub [32]byte, plaintext []byte) ([]byte, error) {
	return sealAnonymous(plaintext, &recipientPub)
}

// Close zeroes and unlocks the secret key. The certificate must not be used
// afterward.
func (c *Certificate) Close() {
	unlockMemory(c.secret[:])
	secureWipe(c.secret[:])
}

// secretGuard returns a scoped guard over the secret key. Callers must not
// retain the returned guard or its bytes across suspension points.
func (c *Certificate) secretGuard() secretGuard {
	return secretGuard{key: &c.secret}
}
