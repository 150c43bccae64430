package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for credential hashing.
const (
	passwordMemory      = 64 * 1024
	passwordIterations  = 3
	passwordParallelism = 2
	passwordSaltLength  = 16
	passwordKeyLength   = 32
)

// ErrInvalidHashFormat is returned when an encoded hash cannot be parsed.
var ErrInvalidHashFormat = errors.New("invalid password hash format")

// HashPassword creates an Argon2id hash of the password with a random salt.
// The salt is embedded in the encoded result.
func HashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return hashPasswordWithSalt(password, salt), nil
}

// HashPasswordWithSalt hashes a password under a caller-supplied salt.
// Used when reproducing a hash for comparison against stored material.
func HashPasswordWithSalt(password string, salt []byte) string {
	return hashPasswordWithSalt(password, salt)
}

func hashPasswordWithSalt(password string, salt []byte) string {
	hash := argon2.IDKey([]byte(password), salt, passwordIterations, passwordMemory, passwordParallelism, passwordKeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)
	return "$argon2id$v=19$m=65536,t=3,p=2$" + b64Salt + "$" + b64Hash
}

// VerifyPassword checks a password against an encoded hash using a
// constant-time comparison.
func VerifyPassword(password, encodedHash string) (bool, error) {
	salt, hash, err := decodePasswordHash(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt, passwordIterations, passwordMemory, passwordParallelism, passwordKeyLength)
	return subtle.ConstantTimeCompare(hash, computed) == 1, nil
}

func decodePasswordHash(encodedHash string) ([]byte, []byte, error) {
	// Expected format: $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, ErrInvalidHashFormat
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, ErrInvalidHashFormat
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, ErrInvalidHashFormat
	}
	return salt, hash, nil
}
