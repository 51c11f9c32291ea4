package credential

import (
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"
)

const serviceName = "email-assistant"

// Keys of the secrets the assistant looks up
const (
	KeyOpenAI       = "openai_api_key"
	KeyGemini       = "gemini_api_key"
	KeyIMAPPassword = "imap_password"
	KeySMTPPassword = "smtp_password"
)

// Store reads and writes secrets in the system keyring. The keyring is
// opened on first use.
type Store struct {
	open func() (keyring.Keyring, error)

	once sync.Once
	ring keyring.Keyring
	err  error
}

// Open returns a store backed by the platform keyring
func Open() *Store {
	return &Store{open: openPlatformKeyring}
}

// NewStore wraps an existing keyring
func NewStore(ring keyring.Keyring) *Store {
	return &Store{open: func() (keyring.Keyring, error) { return ring, nil }}
}

func openPlatformKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/email-assistant/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("email-assistant-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

func (s *Store) backend() (keyring.Keyring, error) {
	s.once.Do(func() {
		s.ring, s.err = s.open()
	})
	return s.ring, s.err
}

// Get retrieves a secret by key
func (s *Store) Get(key string) (string, error) {
	ring, err := s.backend()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a secret
func (s *Store) Set(key, value string) error {
	ring, err := s.backend()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a secret
func (s *Store) Delete(key string) error {
	ring, err := s.backend()
	if err != nil {
		return err
	}
	if err := ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// Resolve returns the configured value when it is set, otherwise the keyring
// entry. A missing entry, or a platform without any keyring, resolves to the
// empty string.
func (s *Store) Resolve(configured, key string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if s == nil {
		return "", nil
	}
	v, err := s.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, keyring.ErrNoAvailImpl) {
		return "", nil
	}
	return v, err
}
