package misc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Encryptor handles encryption and decryption of database server secrets
type Encryptor interface {
	Encrypt(data string) (string, error)
	Decrypt(data string) (string, error)
}

const keySize = 32

type encryptor struct {
	key []byte
}

// NewEncryptor builds an AES-256-GCM encryptor from a hex encoded 32 byte key
func NewEncryptor(hexKey string) (Encryptor, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}

	if len(key) != keySize {
		return nil, fmt.Errorf("invalid encryption key: expected %d bytes, got %d", keySize, len(key))
	}
	return &encryptor{key: key}, nil
}

// LoadOrCreateKey returns the hex key stored in path, generating and storing a random one
// when the file does not exist yet. The generated key should be kept safe outside of this
// server in case of data loss, encrypted secrets cannot be recovered without it.
func LoadOrCreateKey(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err == nil {
		return strings.TrimSpace(string(content)), nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %v", err)
	}

	keyHex := hex.EncodeToString(key)
	if err := os.WriteFile(path, []byte(keyHex), 0o600); err != nil {
		return "", err
	}
	return keyHex, nil
}

func (e *encryptor) Encrypt(data string) (string, error) {
	aesGCM, err := e.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := aesGCM.Seal(nonce, nonce, []byte(data), nil)
	return hex.EncodeToString(ciphertext), nil
}

func (e *encryptor) Decrypt(data string) (string, error) {
	ciphertext, err := hex.DecodeString(data)
	if err != nil {
		return "", err
	}

	aesGCM, err := e.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := aesGCM.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

func (e *encryptor) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
