package certificate

import (
	"crypto/subtle"
	"runtime"

	"golang.org/x/sys/unix"
)

// secureWipe overwrites data with zeros using a constant-time XOR so the
// compiler cannot optimize the write away, then pins the slice alive across
// the call so the wipe isn't reordered past it.
func secureWipe(data []byte) {
	if len(data) == 0 {
		return
	}
	subtle.XORBytes(data, data, data)
	runtime.KeepAlive(data)
}

// lockMemory best-effort mlocks data against swap. Failures are not fatal:
// mlock commonly fails for unprivileged processes on constrained systems,
// and the spec only requires a best-effort guard, not a hard guarantee.
func lockMemory(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Mlock(data)
}

func unlockMemory(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Munlock(data)
}

// secretGuard is a scoped read guard over the secret key. Its lifetime bounds
// any raw reference handed to a caller; it must not be retained across
// suspension points such as network I/O.
type secretGuard struct {
	key *[32]byte
}

// Bytes returns the guarded secret key. The returned pointer aliases the
// certificate's own key array and is only valid while the guard is in scope.
func (g secretGuard) Bytes() *[32]byte { return g.key }
