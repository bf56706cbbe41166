package keycache

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"
)

func TestLocalProviderRoundTrip(t *testing.T) {
	p, err := NewLocalProvider(nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	seed, ciphertext, err := p.GenerateDataKey(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(seed) != seedSize {
		t.Fatalf("seed = %d bytes, want %d", len(seed), seedSize)
	}
	if bytes.Contains(ciphertext, seed) {
		t.Fatal("ciphertext contains the plaintext seed")
	}

	plaintext, err := p.Decrypt(ctx, ciphertext, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plaintext, seed) {
		t.Error("decrypt did not recover the seed")
	}
}

func TestLocalProviderBindsTenant(t *testing.T) {
	p, err := NewLocalProvider(nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	_, ciphertext, err := p.GenerateDataKey(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Decrypt(ctx, ciphertext, "globex"); err == nil {
		t.Fatal("ciphertext decrypted for a different tenant")
	}
}

func TestLocalProviderMasterKey(t *testing.T) {
	master := hex.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
	ctx := context.Background()

	first, err := NewLocalProvider(map[string]any{"master_key": master})
	if err != nil {
		t.Fatal(err)
	}
	seed, ciphertext, err := first.GenerateDataKey(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}

	// The same master key in a fresh provider unwraps, as it would
	// after a restart.
	second, err := NewLocalProvider(map[string]any{"master_key": master})
	if err != nil {
		t.Fatal(err)
	}
	plaintext, err := second.Decrypt(ctx, ciphertext, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plaintext, seed) {
		t.Error("restarted provider did not recover the seed")
	}
}

func TestLocalProviderRejectsBadMasterKey(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"not hex", map[string]any{"master_key": "zz"}},
		{"wrong length", map[string]any{"master_key": "deadbeef"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLocalProvider(tt.raw); err == nil {
				t.Fatal("want config error")
			}
		})
	}
}

func TestBuildProvider(t *testing.T) {
	if _, err := BuildProvider("local", nil); err != nil {
		t.Errorf("local: %v", err)
	}
	if _, err := BuildProvider("", nil); err != nil {
		t.Errorf("default: %v", err)
	}
	if _, err := BuildProvider("vault", nil); err == nil {
		t.Error("unknown provider accepted")
	}
}
