// Package randutil provides small randomness helpers used throughout tests
// and fixtures.
package randutil

import (
	"crypto/rand"
	"fmt"
	mathrand "math/rand"
)

// Text returns n random alphanumeric bytes.
func Text(n uint64) []byte {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[mathrand.Intn(len(alphabet))]
	}
	return b
}

// IP returns a random loopback-range IPv4 address, suitable for fixtures.
func IP() string {
	var b [4]byte
	rand.Read(b[:])
	return fmt.Sprintf("127.%d.%d.%d", b[1], b[2], b[3])
}

// Port returns a random port in the ephemeral range.
func Port() int {
	return 10000 + mathrand.Intn(50000)
}
