package statsdb

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Encrypted dump format:
//   magic (5 bytes): "CSTB\x01"
//   salt  (32 bytes): random, for Argon2id
//   nonce (12 bytes): random, for AES-256-GCM
//   ciphertext (rest): AES-256-GCM encrypted JSON dump (includes 16-byte auth tag)

var encryptedMagic = []byte("CSTB\x01")

const (
	saltSize  = 32
	nonceSize = 12
)

// ErrWrongPassword is returned when an encrypted dump fails authentication.
var ErrWrongPassword = errors.New("statsdb: decryption failed (wrong password?)")

// deriveKey derives a 32-byte AES key from password and salt using Argon2id.
func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, 3, 64*1024, 4, 32)
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("statsdb: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("statsdb: gcm: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext with a key derived from password.
func Encrypt(plaintext []byte, password string) ([]byte, error) {
	header := make([]byte, len(encryptedMagic)+saltSize+nonceSize)
	copy(header, encryptedMagic)
	salt := header[len(encryptedMagic) : len(encryptedMagic)+saltSize]
	nonce := header[len(encryptedMagic)+saltSize:]
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("statsdb: generate salt: %w", err)
	}
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("statsdb: generate nonce: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(header, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt.
func Decrypt(data []byte, password string) ([]byte, error) {
	header := len(encryptedMagic) + saltSize + nonceSize
	if len(data) < header || !IsEncrypted(data) {
		return nil, fmt.Errorf("statsdb: not an encrypted dump")
	}

	salt := data[len(encryptedMagic) : len(encryptedMagic)+saltSize]
	nonce := data[len(encryptedMagic)+saltSize : header]

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, data[header:], nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}

// IsEncrypted checks whether data starts with the encrypted dump magic header.
func IsEncrypted(data []byte) bool {
	return len(data) >= len(encryptedMagic) && bytes.Equal(data[:len(encryptedMagic)], encryptedMagic)
}
