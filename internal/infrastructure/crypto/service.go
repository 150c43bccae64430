package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/shared"
)

const (
	// AlgorithmAESGCM identifies the authenticated cipher used for
	// reversible field encryption.
	AlgorithmAESGCM = "aes-256-gcm"

	nonceLength = 12
	tagLength   = 16
)

// EncryptedData is a self-describing ciphertext envelope. It carries enough
// metadata to locate the correct key even after rotation.
type EncryptedData struct {
	Ciphertext  string    `json:"ciphertext"`
	IV          string    `json:"iv"`
	AuthTag     string    `json:"auth_tag"`
	KeyID       string    `json:"key_id"`
	KeyVersion  int       `json:"key_version"`
	Algorithm   string    `json:"algorithm"`
	EncryptedAt time.Time `json:"encrypted_at"`
}

// Service encrypts and decrypts field values and produces searchable
// hashes. All methods are safe for concurrent use.
type Service struct {
	keyring *Keyring
}

// NewService creates a Service over the given keyring.
func NewService(keyring *Keyring) *Service {
	return &Service{keyring: keyring}
}

// Keyring exposes the underlying keyring for lifecycle management.
func (s *Service) Keyring() *Keyring {
	return s.keyring
}

// Encrypt protects plaintext under the active version of keyID using
// AES-256-GCM with the key identifier bound as associated data.
func (s *Service) Encrypt(plaintext string, keyID string) (*EncryptedData, error) {
	rec, err := s.keyring.active(keyID)
	if err != nil {
		encryptFailures.WithLabelValues(keyID).Inc()
		return nil, fmt.Errorf("%w: %v", shared.ErrEncryptionFailed, err)
	}

	gcm, err := newGCM(rec.derived)
	if err != nil {
		encryptFailures.WithLabelValues(keyID).Inc()
		return nil, fmt.Errorf("%w: %v", shared.ErrEncryptionFailed, err)
	}

	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		encryptFailures.WithLabelValues(keyID).Inc()
		return nil, fmt.Errorf("%w: failed to generate nonce: %v", shared.ErrEncryptionFailed, err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), []byte(keyID))
	ct, tag := sealed[:len(sealed)-tagLength], sealed[len(sealed)-tagLength:]

	encryptOps.WithLabelValues(keyID).Inc()
	return &EncryptedData{
		Ciphertext:  base64.StdEncoding.EncodeToString(ct),
		IV:          base64.StdEncoding.EncodeToString(nonce),
		AuthTag:     base64.StdEncoding.EncodeToString(tag),
		KeyID:       keyID,
		KeyVersion:  rec.Version,
		Algorithm:   AlgorithmAESGCM,
		EncryptedAt: time.Now(),
	}, nil
}

// Decrypt reverses Encrypt. Ciphertext produced under a rotated key version
// decrypts with the archived material; a version mismatch is logged but not
// an error. Authentication-tag mismatch means the data was tampered with.
func (s *Service) Decrypt(data *EncryptedData) (string, error) {
	if data == nil || data.Ciphertext == "" {
		return "", fmt.Errorf("%w: empty envelope", shared.ErrInvalidEncryptedFormat)
	}
	if data.Algorithm != AlgorithmAESGCM {
		return "", fmt.Errorf("%w: algorithm %q", shared.ErrUnsupportedCipherType, data.Algorithm)
	}

	rec, err := s.keyring.byVersion(data.KeyID, data.KeyVersion)
	if err != nil {
		decryptFailures.WithLabelValues(data.KeyID).Inc()
		return "", fmt.Errorf("%w: %v", shared.ErrDecryptionFailed, err)
	}
	if active, aerr := s.keyring.active(data.KeyID); aerr == nil && active.Version != data.KeyVersion {
		log.Warn().Str("key_id", data.KeyID).
			Int("data_version", data.KeyVersion).
			Int("active_version", active.Version).
			Msg("Decrypting with a rotated key version")
	}

	ct, err := base64.StdEncoding.DecodeString(data.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext encoding", shared.ErrInvalidEncryptedFormat)
	}
	nonce, err := base64.StdEncoding.DecodeString(data.IV)
	if err != nil {
		return "", fmt.Errorf("%w: bad iv encoding", shared.ErrInvalidEncryptedFormat)
	}
	tag, err := base64.StdEncoding.DecodeString(data.AuthTag)
	if err != nil {
		return "", fmt.Errorf("%w: bad auth tag encoding", shared.ErrInvalidEncryptedFormat)
	}

	gcm, err := newGCM(rec.derived)
	if err != nil {
		decryptFailures.WithLabelValues(data.KeyID).Inc()
		return "", fmt.Errorf("%w: %v", shared.ErrDecryptionFailed, err)
	}

	plain, err := gcm.Open(nil, nonce, append(ct, tag...), []byte(data.KeyID))
	if err != nil {
		decryptFailures.WithLabelValues(data.KeyID).Inc()
		return "", fmt.Errorf("%w: authentication failed", shared.ErrDecryptionFailed)
	}

	decryptOps.WithLabelValues(data.KeyID).Inc()
	return string(plain), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
