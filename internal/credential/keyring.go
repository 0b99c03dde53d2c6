package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// tokenKey is the keyring item holding the API access token.
const tokenKey = "access-token"

var (
	// ErrNotFound is returned by Get when no token is stored.
	ErrNotFound = errors.New("credential not found")

	// ErrEmpty is returned by Set for blank secrets.
	ErrEmpty = errors.New("credential is empty")
)

// TokenStore is an opaque get/set/delete store for the access token.
type TokenStore interface {
	Get() (string, error)
	Set(secret string) error
	Delete() error
}

// KeyringStore keeps the token in the OS keyring.
type KeyringStore struct {
	cfg keyring.Config

	mu   sync.Mutex
	ring keyring.Keyring
}

// NewKeyringStore returns a keyring-backed store for the given service.
// The encrypted file backend under dir is used when no OS keyring is
// available.
func NewKeyringStore(service, dir string) *KeyringStore {
	return &KeyringStore{
		cfg: keyring.Config{
			ServiceName: service,
			AllowedBackends: []keyring.BackendType{
				keyring.KeychainBackend,
				keyring.SecretServiceBackend,
				keyring.WinCredBackend,
				keyring.PassBackend,
				keyring.FileBackend,
			},
			FileDir:                  filepath.Join(dir, "credentials"),
			FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
			KeychainTrustApplication: true,
		},
	}
}

// NewFileStore returns a store restricted to the encrypted file backend in
// dir, for hosts without a usable OS keyring.
func NewFileStore(service, dir string) *KeyringStore {
	s := NewKeyringStore(service, dir)
	s.cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	s.cfg.FileDir = dir
	return s
}

// open returns the configured keyring, opening it on first use.
func (s *KeyringStore) open() (keyring.Keyring, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ring != nil {
		return s.ring, nil
	}
	ring, err := keyring.Open(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	s.ring = ring
	return ring, nil
}

// Get retrieves the token from the keyring.
func (s *KeyringStore) Get() (string, error) {
	ring, err := s.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", tokenKey, err)
	}
	if len(item.Data) == 0 {
		return "", ErrNotFound
	}

	return string(item.Data), nil
}

// Set stores the token in the keyring.
func (s *KeyringStore) Set(secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrEmpty
	}

	ring, err := s.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   tokenKey,
		Data:  []byte(secret),
		Label: s.cfg.ServiceName + " access token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", tokenKey, err)
	}

	return nil
}

// Delete removes the token. Deleting an absent token is not an error.
func (s *KeyringStore) Delete() error {
	ring, err := s.open()
	if err != nil {
		return err
	}

	err = ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !isNotExist(err) {
		return fmt.Errorf("deleting credential %q: %w", tokenKey, err)
	}

	return nil
}

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	secret string
}

// NewMemoryStore returns a store preloaded with secret, which may be empty.
func NewMemoryStore(secret string) *MemoryStore {
	return &MemoryStore{secret: strings.TrimSpace(secret)}
}

func (m *MemoryStore) Get() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.secret == "" {
		return "", ErrNotFound
	}
	return m.secret, nil
}

func (m *MemoryStore) Set(secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrEmpty
	}
	m.mu.Lock()
	m.secret = secret
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete() error {
	m.mu.Lock()
	m.secret = ""
	m.mu.Unlock()
	return nil
}

// HasToken reports whether a token is stored. Lookup errors count as absent.
func HasToken(s TokenStore) bool {
	tok, err := s.Get()
	return err == nil && tok != ""
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
