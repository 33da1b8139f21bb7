package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// HashPassword derives a credential from a plain password. The salt/hash
// pair is opaque to everything but VerifyPassword.
func HashPassword(password string) (salt, hash string, err error) {
	if password == "" {
		return "", "", fmt.Errorf("password is required for hashing")
	}

	rawSalt := make([]byte, saltLength)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", fmt.Errorf("generating salt: %w", err)
	}

	derived := argon2.IDKey([]byte(password), rawSalt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return hex.EncodeToString(rawSalt), hex.EncodeToString(derived), nil
}

// VerifyPassword reports whether password matches the stored credential.
// Comparison is constant-time.
func VerifyPassword(password, salt, hash string) bool {
	if password == "" || salt == "" || hash == "" {
		return false
	}

	rawSalt, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}

	derived := argon2.IDKey([]byte(password), rawSalt, argonTime, argonMemory, argonThreads, argonKeyLen)
	if len(derived) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare(derived, expected) == 1
}
