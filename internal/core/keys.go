package core

import (
	"context"
	"crypto/ed25519"
	"time"
)

// KeyState tracks the lifecycle of tenant key material.
// Rotated keys are never deleted; their public half is needed to
// verify historically signed evidence.
type KeyState string

const (
	KeyActive  KeyState = "active"
	KeyRotated KeyState = "rotated"
)

// KeyHandle is in-memory tenant key material. The private half is
// plaintext only for the cache TTL and is zeroed on eviction; it is
// never logged and never persisted unencrypted.
type KeyHandle struct {
	KeyID    string
	TenantID string
	State    KeyState

	Private ed25519.PrivateKey
	Public  ed25519.PublicKey

	CreatedAt time.Time
}

// KeyProvider is the narrow contract to the external key-management
// provider. All plaintexts are raw key seeds; ciphertexts are opaque.
type KeyProvider interface {
	// GenerateDataKey creates new key material for the tenant and
	// returns both the plaintext seed and its encrypted form.
	GenerateDataKey(ctx context.Context, tenantID string) (plaintext, ciphertext []byte, err error)

	// Encrypt seals a plaintext under the tenant's context.
	Encrypt(ctx context.Context, plaintext []byte, context string) ([]byte, error)

	// Decrypt opens a ciphertext previously produced for the context.
	Decrypt(ctx context.Context, ciphertext []byte, context string) ([]byte, error)
}
