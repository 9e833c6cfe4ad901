package seal

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeyEnv is the env var name for the sealing key.
	// #nosec G101 -- not a credential; it's an environment variable name.
	KeyEnv = "MEZON_SESSION_SEAL_KEY"

	// MinKeyBytes is the minimum accepted raw key length.
	MinKeyBytes = 32
)

var magic = []byte("mzs1")

// Sealer encrypts and decrypts small blobs. A nil *Sealer passes data through.
type Sealer struct {
	key []byte
}

// New builds a Sealer from raw key material.
// A 64-char hex string is decoded; anything else of at least MinKeyBytes is hashed to 32 bytes.
func New(material []byte) (*Sealer, error) {
	raw := bytes.TrimSpace(material)
	if len(raw) == 0 {
		return nil, ErrKeyMissing
	}
	if len(raw) == 2*chacha20poly1305.KeySize {
		if k, err := hex.DecodeString(string(raw)); err == nil {
			return &Sealer{key: k}, nil
		}
	}
	if len(raw) < MinKeyBytes {
		return nil, ErrKeyTooShort
	}
	sum := sha256.Sum256(raw)
	return &Sealer{key: sum[:]}, nil
}

// FromEnv returns a Sealer using MEZON_SESSION_SEAL_KEY.
// If the env var is missing/blank -> ErrKeyMissing.
func FromEnv() (*Sealer, error) {
	raw := strings.TrimSpace(os.Getenv(KeyEnv))
	if raw == "" {
		return nil, ErrKeyMissing
	}
	return New([]byte(raw))
}

// Enabled reports whether the env key is present (non-empty after trim).
// Note: This does not validate the key. Use FromEnv for policy checks.
func Enabled() bool {
	return strings.TrimSpace(os.Getenv(KeyEnv)) != ""
}

// Seal encrypts plain. With a nil receiver it returns plain unchanged.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	if s == nil {
		return plain, nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := append([]byte{}, magic...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, magic), nil
}

// Open reverses Seal. Blobs without the magic prefix are returned as-is.
func (s *Sealer) Open(blob []byte) ([]byte, error) {
	if !IsSealed(blob) {
		return blob, nil
	}
	if s == nil {
		return nil, fmt.Errorf("%w: sealed blob but no key configured", ErrKeyMissing)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}

	body := blob[len(magic):]
	if len(body) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrCorrupt
	}
	nonce, ct := body[:aead.NonceSize()], body[aead.NonceSize():]

	plain, err := aead.Open(nil, nonce, ct, magic)
	if err != nil {
		return nil, ErrCorrupt
	}
	return plain, nil
}

// IsSealed reports whether blob carries the sealed prefix.
func IsSealed(blob []byte) bool {
	return bytes.HasPrefix(blob, magic)
}
