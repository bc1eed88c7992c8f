// Package crypto provides AES-256-GCM encryption for credential material
// stored at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// KeySize is the required AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
)

var (
	ErrInvalidKey        = errors.New("crypto: key must be 32 bytes")
	ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext format")
	ErrDecryptionFailed  = errors.New("crypto: decryption failed")
)

// Encryptor seals and opens credential secrets. Output format is
// "ENC[vN]:" followed by base64(nonce || ciphertext), where N is the key
// version, so rotated keys can coexist during migration.
type Encryptor struct {
	key     []byte
	version int
}

func NewEncryptor(key []byte, version int) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	if version < 1 {
		version = 1
	}
	return &Encryptor{key: key, version: version}, nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return fmt.Sprintf("ENC[v%d]:%s", e.version, base64.StdEncoding.EncodeToString(sealed)), nil
}

// Decrypt opens a value produced by Encrypt.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	encoded, ok := stripVersionPrefix(ciphertext)
	if !ok {
		return "", ErrInvalidCiphertext
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: bad base64", ErrInvalidCiphertext)
	}
	if len(data) < NonceSize {
		return "", ErrInvalidCiphertext
	}

	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, data[:NonceSize], data[NonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// Version returns the key version this encryptor seals with.
func (e *Encryptor) Version() int {
	return e.version
}

// ParseVersion extracts the key version from an encrypted value, or 0
// when the format is unrecognized.
func ParseVersion(ciphertext string) int {
	var version int
	if _, err := fmt.Sscanf(ciphertext, "ENC[v%d]:", &version); err != nil {
		return 0
	}
	return version
}

func (e *Encryptor) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func stripVersionPrefix(s string) (string, bool) {
	if !strings.HasPrefix(s, "ENC[v") {
		return "", false
	}
	idx := strings.Index(s, "]:")
	if idx == -1 {
		return "", false
	}
	return s[idx+2:], true
}
