package certificate

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/box"
)

// sealedBoxNonceSize is the nonce size required by nacl/box; libsodium's
// sealed box derives exactly this many bytes from the ephemeral and
// recipient public keys.
const sealedBoxNonceSize = 24

// sealAnonymous implements the libsodium "sealed box" construction on top of
// nacl/box: a fresh ephemeral keypair is generated per call, the nonce is
// derived deterministically as blake2b-24(ephemeral_pub || recipient_pub),
// and the ephemeral public key is prepended to the ciphertext so the
// recipient can recompute the same nonce on open. The sender is anonymous;
// only the recipient is authenticated.
func sealAnonymous(message []byte, recipientPub *[32]byte) ([]byte, error) {
	ephemeralPub, ephemeralPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral keypair: %w", err)
	}
	defer secureWipe(ephemeralPriv[:])

	nonce, err := sealedBoxNonce(ephemeralPub, recipientPub)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(ephemeralPub)+box.Overhead+len(message))
	out = append(out, ephemeralPub[:]...)
	out = box.Seal(out, message, &nonce, recipientPub, ephemeralPriv)
	return out, nil
}

// openAnonymous is the inverse of sealAnonymous: it recovers the sender's
// ephemeral public key from the front of the ciphertext, rederives the
// nonce, and opens the remainder against the recipient's own keypair.
func openAnonymous(sealed []byte, recipientPub, recipientPriv *[32]byte) ([]byte, error) {
	if len(sealed) < 32 {
		return nil, fmt.Errorf("sealed box too short: %d bytes", len(sealed))
	}

	var ephemeralPub [32]byte
	copy(ephemeralPub[:], sealed[:32])
	ciphertext := sealed[32:]

	nonce, err := sealedBoxNonce(&ephemeralPub, recipientPub)
	if err != nil {
		return nil, err
	}

	plaintext, ok := box.Open(nil, ciphertext, &nonce, &ephemeralPub, recipientPriv)
	if !ok {
		return nil, fmt.Errorf("sealed box authentication failed")
	}
	return plaintext, nil
}

func sealedBoxNonce(ephemeralPub, recipientPub *[32]byte) ([sealedBoxNonceSize]byte, error) {
	var nonce [sealedBoxNonceSize]byte

	h, err := blake2b.New(sealedBoxNonceSize, nil)
	if err != nil {
		return nonce, fmt.Errorf("build nonce hash: %w", err)
	}
	h.Write(ephemeralPub[:])
	h.Write(recipientPub[:])
	copy(nonce[:], h.Sum(nil))
	return nonce, nil
}
