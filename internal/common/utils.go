// Package common provides utility functions for random byte generation,
// secure memory wiping, and host normalization.
package common

import (
	"crypto/rand"
	"strings"
)

// GenerateRandByteArray returns size cryptographically random bytes.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// This is useful for removing sensitive data such as passwords or cryptographic
// keys from memory after use.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}

// NormalizeHost lower-cases and trims a host so permission records and
// lookups always compare the same representation.
func NormalizeHost(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}
