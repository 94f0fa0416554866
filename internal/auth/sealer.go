package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSealedValue is returned when a sealed value cannot be opened.
var ErrSealedValue = errors.New("sealed value is corrupt or was sealed with another key")

// Sealer encrypts credentials at rest with XChaCha20-Poly1305.
type Sealer struct {
	key []byte
}

// NewSealer returns a sealer using the key at keyPath, creating the key
// (mode 0600) when the file does not exist. Creation holds an exclusive lock
// on keyPath+".lock" so concurrent processes agree on one key.
func NewSealer(keyPath string) (*Sealer, error) {
	key, err := readKey(keyPath)
	if err != nil {
		return nil, err
	}
	if key != nil {
		return &Sealer{key: key}, nil
	}

	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return nil, err
	}
	lock := flock.New(keyPath + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock credential key: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	// another process may have won the race
	if key, err = readKey(keyPath); err != nil {
		return nil, err
	}
	if key != nil {
		return &Sealer{key: key}, nil
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate credential key: %w", err)
	}
	if err := os.WriteFile(keyPath, key, 0600); err != nil {
		return nil, fmt.Errorf("write credential key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// readKey returns nil, nil when the key file does not exist.
func readKey(keyPath string) ([]byte, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credential key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("credential key %s has wrong size %d", keyPath, len(key))
	}
	return key, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
func (s *Sealer) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < aead.NonceSize() {
		return "", ErrSealedValue
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrSealedValue
	}
	return string(plaintext), nil
}
