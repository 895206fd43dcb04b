package crypto

import (
	"crypto/subtle"
	"runtime"
)

// Zeroize overwrites b with zeros.
//
// The copy goes through crypto/subtle so the store is not treated as dead.
//
//go:noinline
func Zeroize(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
	runtime.KeepAlive(&b)
}
