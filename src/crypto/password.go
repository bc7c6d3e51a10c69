// Package crypto obfuscates the login password the way the AlphaTRAK app
// does: AES-256 in ECB mode with PKCS#7 padding under a fixed key.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// DefaultPasswordKey is the symmetric key shipped with the mobile app.
var DefaultPasswordKey = []byte("AlphaTrakZoetisMobileApp2019Key!")

const saltSize = 16

var errInvalidPadding = errors.New("invalid padding")

// EncryptPassword encrypts plaintext under DefaultPasswordKey and returns
// base64 ciphertext.
func EncryptPassword(plaintext string) (string, error) {
	return EncryptPasswordWithKey(DefaultPasswordKey, plaintext)
}

// EncryptPasswordWithKey is EncryptPassword with an explicit 32-byte key.
func EncryptPasswordWithKey(key []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	bs := block.BlockSize()
	data := pad([]byte(plaintext), bs)
	out := make([]byte, len(data))
	// ECB: every block on its own, no IV, no chaining.
	for i := 0; i < len(data); i += bs {
		block.Encrypt(out[i:i+bs], data[i:i+bs])
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptPassword reverses EncryptPasswordWithKey.
func DecryptPassword(key []byte, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	bs := block.BlockSize()
	if len(raw) == 0 || len(raw)%bs != 0 {
		return "", fmt.Errorf("ciphertext length %d is not a multiple of %d", len(raw), bs)
	}
	out := make([]byte, len(raw))
	for i := 0; i < len(raw); i += bs {
		block.Decrypt(out[i:i+bs], raw[i:i+bs])
	}
	plain, err := unpad(out, bs)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// RandomSalt returns 16 random bytes, base64 encoded. The server wants a
// fresh one per login.
func RandomSalt() (string, error) {
	buf := make([]byte, saltSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}
