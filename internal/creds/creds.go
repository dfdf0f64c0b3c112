package creds

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Tokens holds the session token pair. Both are cleared together on any
// authentication failure.
type Tokens struct {
	Access  string `json:"accessToken"`
	Refresh string `json:"refreshToken"`
}

func (t Tokens) Empty() bool { return t.Access == "" && t.Refresh == "" }

// Store persists the token pair. The transport only sees this interface, so
// it carries no dependency on any particular persistence mechanism.
type Store interface {
	Load() (Tokens, error)
	Save(Tokens) error
	Clear() error
}

// Memory is a process-local store, used by tests and throwaway sessions.
type Memory struct {
	mu sync.Mutex
	t  Tokens
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load() (Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t, nil
}

func (m *Memory) Save(t Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = t
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = Tokens{}
	return nil
}

// File persists tokens as JSON under a fixed name in the given directory.
type File struct {
	mu   sync.Mutex
	path string
}

const tokenFileName = "session.json"

func NewFile(dir string) *File {
	return &File{path: filepath.Join(dir, tokenFileName)}
}

func (f *File) Load() (Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Tokens{}, nil
	}
	if err != nil {
		return Tokens{}, err
	}

	var t Tokens
	if err := json.Unmarshal(raw, &t); err != nil {
		// Corrupt token file is the same as no tokens.
		return Tokens{}, nil
	}
	return t, nil
}

func (f *File) Save(t Tokens) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.path, raw, 0o600)
}

func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
