// Package credentials keeps the user's API key between runs, sealed with
// NaCl secretbox under a key derived from a passphrase with scrypt.
//
// File layout: salt (16 bytes) | nonce (24 bytes) | sealed key.
package credentials

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

var (
	ErrNoCredentials = errors.New("no saved credentials")
	ErrCorrupt       = errors.New("saved credentials are corrupt or the passphrase is wrong")
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

// scrypt cost parameters
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Store saves one API key to a file
type Store struct {
	path       string
	passphrase []byte
}

// New creates a store. With an empty passphrase the host name is used, which
// keeps the key from being readable at a glance but does not protect it from
// someone with access to the machine.
func New(path, passphrase string) *Store {
	if passphrase == "" {
		passphrase, _ = os.Hostname()
	}
	return &Store{
		path:       path,
		passphrase: []byte(passphrase),
	}
}

// Path returns the file the key is kept in
func (s *Store) Path() string {
	return s.path
}

// Save seals key and writes it, replacing any previous key
func (s *Store) Save(apiKey string) error {
	if apiKey == "" {
		return errors.New("refusing to save an empty key")
	}

	var salt [saltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	key, err := s.deriveKey(salt[:])
	if err != nil {
		return err
	}

	out := make([]byte, 0, saltSize+nonceSize+len(apiKey)+secretbox.Overhead)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, []byte(apiKey), &nonce, key)

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(s.path, out, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// Load returns the saved key
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoCredentials
		}
		return "", fmt.Errorf("failed to read key file: %w", err)
	}
	if len(data) < saltSize+nonceSize+secretbox.Overhead {
		return "", ErrCorrupt
	}

	salt := data[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], data[saltSize:saltSize+nonceSize])

	key, err := s.deriveKey(salt)
	if err != nil {
		return "", err
	}

	plain, ok := secretbox.Open(nil, data[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return "", ErrCorrupt
	}
	return string(plain), nil
}

// Clear forgets the saved key. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove key file: %w", err)
	}
	return nil
}

func (s *Store) deriveKey(salt []byte) (*[keySize]byte, error) {
	derived, err := scrypt.Key(s.passphrase, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	var key [keySize]byte
	copy(key[:], derived)
	return &key, nil
}
