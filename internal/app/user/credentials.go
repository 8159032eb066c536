package user

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// TokenKey is the well-known key the session credential is stored under.
const TokenKey = "user-token"

// CredentialStore persists the session credential.
// Load returns "" with a nil error when nothing is stored.
type CredentialStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileCredentials stores the credential in a TOML file. Other keys in the file are preserved.
type FileCredentials struct {
	path string
	mu   sync.Mutex
}

// NewFileCredentials returns a CredentialStore backed by the TOML file at path.
func NewFileCredentials(path string) *FileCredentials {
	return &FileCredentials{path: path}
}

// Path returns the backing file path.
func (f *FileCredentials) Path() string { return f.path }

func (f *FileCredentials) read() (map[string]any, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse credential file %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *FileCredentials) write(doc map[string]any) error {
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal credential file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	return os.WriteFile(f.path, data, 0o600)
}

// Load implements CredentialStore.
func (f *FileCredentials) Load() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return "", err
	}
	token, _ := doc[TokenKey].(string)
	return token, nil
}

// Save implements CredentialStore.
func (f *FileCredentials) Save(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	doc[TokenKey] = token
	return f.write(doc)
}

// Clear implements CredentialStore.
func (f *FileCredentials) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := doc[TokenKey]; !ok {
		return nil
	}
	delete(doc, TokenKey)
	return f.write(doc)
}

// MemoryCredentials is an in-process CredentialStore.
type MemoryCredentials struct {
	mu    sync.Mutex
	token string
}

func (m *MemoryCredentials) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryCredentials) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryCredentials) Clear() error {
	return m.Save("")
}
