package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/scrypt"
)

var (
	ErrWrongPassword   = errors.New("wrong password or corrupted category file")
	ErrMissingPassword = errors.New("no cached password for this category")
	ErrNotEncrypted    = errors.New("file is not an encrypted category file")
)

// Encrypted category files start with a short magic so a plain-JSON file
// is never mistaken for ciphertext.
var encMagic = []byte("KLENC1")

const (
	saltSize  = 16
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	keyLength = 32 // AES-256
)

func deriveKey(password string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keyLength)
}

// Encrypt seals plaintext with AES-256-GCM under a scrypt-derived key.
// Layout: magic || salt || nonce || ciphertext.
func Encrypt(plaintext []byte, password string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	key, err := deriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(encMagic)+saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, encMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// IsEncrypted reports whether data carries the encrypted-file magic.
func IsEncrypted(data []byte) bool {
	return len(data) > len(encMagic) && string(data[:len(encMagic)]) == string(encMagic)
}

// Decrypt reverses Encrypt. A GCM authentication failure is reported as
// ErrWrongPassword; the two cases are indistinguishable by design.
func Decrypt(data []byte, password string) ([]byte, error) {
	if !IsEncrypted(data) {
		return nil, ErrNotEncrypted
	}
	data = data[len(encMagic):]
	if len(data) < saltSize {
		return nil, ErrWrongPassword
	}
	salt, data := data[:saltSize], data[saltSize:]

	key, err := deriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, ErrWrongPassword
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}
