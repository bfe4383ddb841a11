package random

import (
	"context"
	"crypto/rand"
)

type SecureRandomHost struct{}

func NewSecureRandomHost() *SecureRandomHost {
	return &SecureRandomHost{}
}

// MaxRandomBytes limits single-call allocation to prevent DoS (1MB).
const MaxRandomBytes = 1 << 20

// GetRandomBytes returns up to MaxRandomBytes bytes from crypto/rand.
// Callers needing more call again. A nil result means the system source
// failed.
func (h *SecureRandomHost) GetRandomBytes(_ context.Context, len uint64) []byte {
	if len > MaxRandomBytes {
		len = MaxRandomBytes
	}
	buf := make([]byte, len)
	if _, err := rand.Read(buf); err != nil {
		return nil
	}
	return buf
}
