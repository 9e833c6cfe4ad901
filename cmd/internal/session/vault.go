package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mezon/cmd/security/seal"
)

// Vault keeps the durable copy of a remembered session.
type Vault interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context) error
}

// MemoryVault is a process-local Vault.
type MemoryVault struct {
	mu sync.Mutex
	s  *Session
}

// NewMemoryVault returns an empty MemoryVault.
func NewMemoryVault() *MemoryVault { return &MemoryVault{} }

func (v *MemoryVault) Load(_ context.Context) (*Session, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.s == nil {
		return nil, ErrNoStoredSession
	}
	return v.s.Clone(), nil
}

func (v *MemoryVault) Save(_ context.Context, s *Session) error {
	if !s.Valid() {
		return ErrInvalidSession
	}
	v.mu.Lock()
	v.s = s.Clone()
	v.mu.Unlock()
	return nil
}

func (v *MemoryVault) Delete(_ context.Context) error {
	v.mu.Lock()
	v.s = nil
	v.mu.Unlock()
	return nil
}

// FileVault stores the session as JSON in a single file, sealed when a Sealer is set.
//
// Writes go to a temp file in the same directory followed by a rename, so a
// crash never leaves a half-written session behind.
type FileVault struct {
	path   string
	sealer *seal.Sealer
	mu     sync.Mutex
}

// NewFileVault returns a FileVault at path. A nil sealer stores plaintext JSON.
func NewFileVault(path string, sealer *seal.Sealer) *FileVault {
	return &FileVault{path: path, sealer: sealer}
}

func (v *FileVault) Load(_ context.Context) (*Session, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	blob, err := os.ReadFile(v.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoStoredSession
	}
	if err != nil {
		return nil, fmt.Errorf("read vault: %w", err)
	}

	plain, err := v.sealer.Open(blob)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}

	var s Session
	if err := json.Unmarshal(plain, &s); err != nil {
		return nil, fmt.Errorf("decode vault: %w", err)
	}
	if !s.Valid() {
		return nil, ErrInvalidSession
	}
	return &s, nil
}

func (v *FileVault) Save(_ context.Context, s *Session) error {
	if !s.Valid() {
		return ErrInvalidSession
	}

	plain, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode vault: %w", err)
	}
	blob, err := v.sealer.Seal(plain)
	if err != nil {
		return fmt.Errorf("seal vault: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	dir := filepath.Dir(v.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("vault dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".vault-*")
	if err != nil {
		return fmt.Errorf("vault temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("vault write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault close: %w", err)
	}
	if err := os.Rename(tmp.Name(), v.path); err != nil {
		return fmt.Errorf("vault rename: %w", err)
	}
	return nil
}

func (v *FileVault) Delete(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := os.Remove(v.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("vault delete: %w", err)
	}
	return nil
}
