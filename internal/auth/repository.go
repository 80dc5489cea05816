package auth

import (
	"sync"

	"github.com/c1advanced/c1prep/internal/config"
)

// Credentials are the persisted identity tokens.
type Credentials = config.Secrets

// CredentialStore persists credentials.
type CredentialStore interface {
	Load() (*Credentials, error)
	Save(*Credentials) error
	Clear() error
}

// FileStore keeps credentials in ~/.c1prep/secrets.yaml.
type FileStore struct{}

func (FileStore) Load() (*Credentials, error) { return config.LoadSecrets() }
func (FileStore) Save(c *Credentials) error   { return config.SaveSecrets(c) }
func (FileStore) Clear() error                { return config.ClearSecrets() }

// MemoryStore keeps credentials in memory.
type MemoryStore struct {
	mu    sync.Mutex
	creds *Credentials
}

func (m *MemoryStore) Load() (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return &Credentials{}, nil
	}
	c := *m.creds
	return &c, nil
}

func (m *MemoryStore) Save(c *Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.creds = &cp
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	return nil
}

var (
	_ CredentialStore = FileStore{}
	_ CredentialStore = (*MemoryStore)(nil)
)
