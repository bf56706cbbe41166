package keycache

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/mitchellh/mapstructure"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

const seedSize = 32

// LocalProviderConfig is the mapstructure-decoded config block for
// the local provider.
type LocalProviderConfig struct {
	// MasterKey is the hex-encoded 32-byte wrapping key. When empty,
	// an ephemeral key is generated (wrapped keys then do not survive
	// a restart).
	MasterKey string `mapstructure:"master_key"`
}

var _ core.KeyProvider = (*LocalProvider)(nil)

// LocalProvider implements the key-management contract with an
// in-process AES-GCM wrapping key. The tenant id is bound into the
// ciphertext as associated data, so a ciphertext decrypts only for
// the tenant it was created for.
type LocalProvider struct {
	aead cipher.AEAD
}

func NewLocalProvider(raw map[string]any) (*LocalProvider, error) {
	var cfg LocalProviderConfig
	if err := mapstructure.Decode(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decoding local provider config: %w", err)
	}

	var master []byte
	if cfg.MasterKey != "" {
		decoded, err := hex.DecodeString(cfg.MasterKey)
		if err != nil {
			return nil, fmt.Errorf("master_key must be hex: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("master_key must be 32 bytes, got %d", len(decoded))
		}
		master = decoded
	} else {
		master = make([]byte, 32)
		if _, err := rand.Read(master); err != nil {
			return nil, fmt.Errorf("generating ephemeral master key: %w", err)
		}
	}

	block, err := aes.NewCipher(master)
	if err != nil {
		return nil, fmt.Errorf("initializing wrapping cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing GCM: %w", err)
	}
	return &LocalProvider{aead: aead}, nil
}

func (p *LocalProvider) GenerateDataKey(ctx context.Context, tenantID string) ([]byte, []byte, error) {
	seed := make([]byte, seedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", core.ErrKeyProviderUnavailable, err)
	}
	ciphertext, err := p.Encrypt(ctx, seed, tenantID)
	if err != nil {
		return nil, nil, err
	}
	return seed, ciphertext, nil
}

func (p *LocalProvider) Encrypt(_ context.Context, plaintext []byte, context string) ([]byte, error) {
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrKeyProviderUnavailable, err)
	}
	sealed := p.aead.Seal(nil, nonce, plaintext, []byte(context))
	return append(nonce, sealed...), nil
}

func (p *LocalProvider) Decrypt(_ context.Context, ciphertext []byte, context string) ([]byte, error) {
	if len(ciphertext) < p.aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce := ciphertext[:p.aead.NonceSize()]
	sealed := ciphertext[p.aead.NonceSize():]

	plaintext, err := p.aead.Open(nil, nonce, sealed, []byte(context))
	if err != nil {
		return nil, fmt.Errorf("unwrapping key: %w", err)
	}
	return plaintext, nil
}

// BuildProvider constructs a key provider from its config block,
// mirroring how other pluggable backends are registered.
func BuildProvider(providerType string, raw map[string]any) (core.KeyProvider, error) {
	switch providerType {
	case "local", "":
		return NewLocalProvider(raw)
	default:
		return nil, fmt.Errorf("unknown key provider type %q", providerType)
	}
}
