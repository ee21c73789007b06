// Package phi provides password-derived field-level encryption for patient
// data. A Vault starts locked; unlocking it with the practice's master
// password derives the AES-256 key that all field operations use.
package phi

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// ErrLocked is returned by field operations while no key is loaded.
var ErrLocked = errors.New("phi: vault is locked")

const (
	// marker prefixes every ciphertext so stored values are self-describing.
	// Values without it are treated as legacy plaintext.
	marker = "enc:v1:"

	kdfIterations = 100_000
	kdfSalt       = "visitplan.fieldkey.v1"
	keyLen        = 32
)

// FieldCipher is the encryption surface repositories depend on.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(value string) (string, error)
}

// Vault holds the session's field-encryption key. It is safe for concurrent
// use; Lock and Unlock may race with field operations from request handlers.
type Vault struct {
	mu   sync.RWMutex
	aead cipher.AEAD
}

// NewVault returns a locked vault.
func NewVault() *Vault {
	return &Vault{}
}

func deriveAEAD(password string) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), []byte(kdfSalt), kdfIterations, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return aead, nil
}

// Unlock derives the AES-256 key from the master password (PBKDF2-SHA256,
// fixed salt) and arms the vault. Unlocking an unlocked vault replaces the
// key.
func (v *Vault) Unlock(password string) error {
	aead, err := deriveAEAD(password)
	if err != nil {
		return fmt.Errorf("phi unlock: %w", err)
	}

	v.mu.Lock()
	v.aead = aead
	v.mu.Unlock()
	return nil
}

// Lock discards the key. Subsequent field operations fail with ErrLocked.
func (v *Vault) Lock() {
	v.mu.Lock()
	v.aead = nil
	v.mu.Unlock()
}

// IsUnlocked reports whether a key is currently loaded.
func (v *Vault) IsUnlocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.aead != nil
}

// Encrypt seals a field value. The empty string passes through unchanged so
// optional columns stay optional. Output is the format marker followed by
// base64(nonce + ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	v.mu.RLock()
	aead := v.aead
	v.mu.RUnlock()
	if aead == nil {
		return "", ErrLocked
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("phi encrypt: generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return marker + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a field value. Values without the format marker, with broken
// base64, or that fail authentication are returned unchanged: rows written
// before encryption was enabled must stay readable. Only a locked vault is
// an error.
func (v *Vault) Decrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}

	v.mu.RLock()
	aead := v.aead
	v.mu.RUnlock()
	if aead == nil {
		return "", ErrLocked
	}

	return openValue(aead, value), nil
}

// openValue applies the tolerant-decrypt contract with the given key.
func openValue(aead cipher.AEAD, value string) string {
	if !strings.HasPrefix(value, marker) {
		return value
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, marker))
	if err != nil {
		return value
	}
	if len(data) < aead.NonceSize() {
		return value
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return value
	}
	return string(plaintext)
}

// DecryptWithPassword opens a value with a key derived from password,
// without reading or writing any vault state. It follows the same tolerant
// contract as Decrypt. Callers use it to verify a candidate password before
// loading it into a shared vault.
func DecryptWithPassword(password, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	aead, err := deriveAEAD(password)
	if err != nil {
		return "", fmt.Errorf("phi decrypt: %w", err)
	}
	return openValue(aead, value), nil
}

// IsEncrypted reports whether a stored value carries the ciphertext marker.
// The plaintext migration uses this to find rows that still need sealing.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, marker)
}
