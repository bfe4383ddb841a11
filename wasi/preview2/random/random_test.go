package random

import (
	"bytes"
	"context"
	"testing"
)

func TestSecureRandomHost_GetRandomBytes(t *testing.T) {
	host := NewSecureRandomHost()
	ctx := context.Background()

	data := host.GetRandomBytes(ctx, 16)
	if len(data) != 16 {
		t.Errorf("expected 16 bytes, got %d", len(data))
	}

	allZero := true
	for _, b := range data {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Error("random bytes should not all be zero")
	}
}

func TestSecureRandomHost_Empty(t *testing.T) {
	host := NewSecureRandomHost()
	if data := host.GetRandomBytes(context.Background(), 0); len(data) != 0 {
		t.Errorf("expected no bytes, got %d", len(data))
	}
}

func TestSecureRandomHost_Cap(t *testing.T) {
	host := NewSecureRandomHost()
	data := host.GetRandomBytes(context.Background(), MaxRandomBytes+10)
	if len(data) != MaxRandomBytes {
		t.Errorf("expected %d bytes, got %d", MaxRandomBytes, len(data))
	}
}

func TestSecureRandom_Uniqueness(t *testing.T) {
	host := NewSecureRandomHost()
	ctx := context.Background()

	a := host.GetRandomBytes(ctx, 32)
	b := host.GetRandomBytes(ctx, 32)
	if bytes.Equal(a, b) {
		t.Error("two 32-byte draws are identical")
	}
}
