// Package crypto provides field-level encryption, searchable hashing and
// key lifecycle management.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"

	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/shared"
	"github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/config"
)

// Key derivation parameters. The derivation is deliberately slow; derived
// keys are cached on the record so the cost is paid once per key version.
const (
	keyIterations = 100_000
	keyLength     = 32
	saltLength    = 16
)

// KeyRecord holds one version of key material. Exactly one record per keyID
// is active at a time; rotated versions are archived under a suffixed
// identifier and remain available for decrypting legacy ciphertext.
type KeyRecord struct {
	ID        string
	Secret    []byte
	Salt      []byte
	Version   int
	CreatedAt time.Time
	Active    bool

	derived    []byte
	searchSalt []byte
}

func newKeyRecord(id string, secret, salt []byte, version int, active bool) *KeyRecord {
	r := &KeyRecord{
		ID:        id,
		Secret:    secret,
		Salt:      salt,
		Version:   version,
		CreatedAt: time.Now(),
		Active:    active,
	}
	r.derived = pbkdf2.Key(secret, salt, keyIterations, keyLength, sha256.New)
	search := sha256.Sum256(append(append([]byte{}, salt...), []byte("search")...))
	r.searchSalt = search[:]
	return r
}

// Keyring holds all key records. Key material is read-mostly; rotation
// swaps records under the write lock so readers never observe a
// half-updated record.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string]*KeyRecord
}

// NewKeyring creates an empty Keyring.
func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string]*KeyRecord)}
}

// NewKeyringFromConfig builds a Keyring from configured key material.
// Missing material is a hard error in production; in development an
// ephemeral key is generated with a loud warning, since anything it
// encrypts is unreadable after restart.
func NewKeyringFromConfig(cfg *config.EncryptionConfig, production bool) (*Keyring, error) {
	kr := NewKeyring()
	for _, id := range config.KeyIDs {
		km, ok := cfg.Keys[id]
		if !ok || km.Secret == "" || km.Salt == "" {
			if production {
				return nil, fmt.Errorf("encryption key %q has no configured material", id)
			}
			log.Warn().Str("key_id", id).
				Msg("No configured secret for key; generating ephemeral material (development only)")
			if err := kr.GenerateKey(id); err != nil {
				return nil, err
			}
			continue
		}
		salt, err := base64.StdEncoding.DecodeString(km.Salt)
		if err != nil {
			return nil, fmt.Errorf("key %q: invalid base64 salt: %w", id, err)
		}
		kr.AddKey(id, []byte(km.Secret), salt)
	}
	return kr, nil
}

// AddKey installs key material as version 1 of the given identifier.
func (kr *Keyring) AddKey(id string, secret, salt []byte) {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	kr.keys[id] = newKeyRecord(id, secret, salt, 1, true)
}

// GenerateKey creates random material for the given identifier.
func (kr *Keyring) GenerateKey(id string) error {
	secret := make([]byte, keyLength)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("failed to generate key secret: %w", err)
	}
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate key salt: %w", err)
	}
	kr.AddKey(id, secret, salt)
	return nil
}

// active returns the active record for id.
func (kr *Keyring) active(id string) (*KeyRecord, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	rec, ok := kr.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrKeyNotFound, id)
	}
	if !rec.Active {
		return nil, fmt.Errorf("%w: %s", shared.ErrKeyInactive, id)
	}
	return rec, nil
}

// byVersion returns the record for id at the given version, falling back
// to archived records for rotated versions.
func (kr *Keyring) byVersion(id string, version int) (*KeyRecord, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	if rec, ok := kr.keys[id]; ok && rec.Version == version {
		return rec, nil
	}
	archived := fmt.Sprintf("%s_v%d", id, version)
	if rec, ok := kr.keys[archived]; ok {
		return rec, nil
	}
	return nil, fmt.Errorf("%w: %s version %d", shared.ErrKeyNotFound, id, version)
}

// RotateKey archives the current key under a versioned identifier and
// activates fresh material at version+1 under the original identifier.
func (kr *Keyring) RotateKey(id string) error {
	secret := make([]byte, keyLength)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("failed to generate rotated secret: %w", err)
	}
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate rotated salt: %w", err)
	}

	kr.mu.Lock()
	defer kr.mu.Unlock()

	old, ok := kr.keys[id]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrKeyNotFound, id)
	}

	archived := *old
	archived.ID = fmt.Sprintf("%s_v%d", id, old.Version)
	archived.Active = false
	kr.keys[archived.ID] = &archived

	next := newKeyRecord(id, secret, salt, old.Version+1, true)
	kr.keys[id] = next

	log.Info().Str("key_id", id).Int("version", next.Version).Msg("Encryption key rotated")
	return nil
}

// KeyAge describes how old one active key is.
type KeyAge struct {
	ID        string
	Version   int
	Age       time.Duration
	CreatedAt time.Time
}

// KeyAges returns the age of every active key.
func (kr *Keyring) KeyAges() []KeyAge {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	var out []KeyAge
	for id, rec := range kr.keys {
		if !rec.Active {
			continue
		}
		out = append(out, KeyAge{
			ID:        id,
			Version:   rec.Version,
			Age:       time.Since(rec.CreatedAt),
			CreatedAt: rec.CreatedAt,
		})
	}
	return out
}

// CheckKeyAges warns about keys approaching max age. When enforce is set,
// keys past max age are rotated instead of only warned about. It returns
// the identifiers that were rotated.
func (kr *Keyring) CheckKeyAges(rot config.RotationConfig) []string {
	if !rot.Enabled {
		return nil
	}
	var rotated []string
	for _, age := range kr.KeyAges() {
		switch {
		case age.Age >= rot.MaxAge:
			if rot.Enforce {
				if err := kr.RotateKey(age.ID); err != nil {
					log.Error().Err(err).Str("key_id", age.ID).Msg("Enforced key rotation failed")
					continue
				}
				rotated = append(rotated, age.ID)
				continue
			}
			log.Warn().Str("key_id", age.ID).Dur("age", age.Age).
				Msg("Encryption key has exceeded its maximum age")
		case age.Age >= rot.WarningThreshold:
			log.Warn().Str("key_id", age.ID).Dur("age", age.Age).
				Msg("Encryption key is approaching its maximum age")
		}
	}
	return rotated
}
