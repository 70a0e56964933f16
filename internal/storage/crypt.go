package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	keyringService = "tabcell"
	keyringField   = "record-key"
)

// Sealer encrypts persisted record payloads with a key held in the OS
// keyring. It is attached to the sqlite tier only when the active tier
// policy grants encryption at rest.
type Sealer struct {
	key []byte
}

// NewSealer loads the record key from the keyring, generating and storing
// a fresh 32-byte key on first use.
func NewSealer() (*Sealer, error) {
	stored, err := keyring.Get(keyringService, keyringField)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			return nil, fmt.Errorf("keyring get: %w", err)
		}
		key := make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		if err := keyring.Set(keyringService, keyringField, hex.EncodeToString(key)); err != nil {
			return nil, fmt.Errorf("keyring set: %w", err)
		}
		return &Sealer{key: key}, nil
	}
	key, err := hex.DecodeString(stored)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("keyring holds malformed record key")
	}
	return &Sealer{key: key}, nil
}

// NewSealerWithKey builds a sealer around an explicit key. Used by tests.
func NewSealerWithKey(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("record key must be %d bytes", chacha20poly1305.KeySize)
	}
	return &Sealer{key: append([]byte(nil), key...)}, nil
}

// Seal encrypts plaintext as nonce||ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a payload produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("sealed payload too short")
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, nil)
}

// DeleteStoredKey removes the record key from the keyring. Used by the
// destructive clear-all path.
func DeleteStoredKey() error {
	err := keyring.Delete(keyringService, keyringField)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
