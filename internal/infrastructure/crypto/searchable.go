package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/shared"
)

// Searchable hashing parameters. The hash is deterministic per key so that
// equality lookups can be indexed without revealing plaintext. Token-level
// hashing deliberately leaks token boundaries; this is a documented
// trade-off, not a general encrypted-search scheme.
const (
	// AlgorithmSearchHash identifies the deterministic searchable hash.
	AlgorithmSearchHash = "pbkdf2-sha256"

	searchIterations = 10_000
	searchHashLength = 32
	minTokenLength   = 4
)

// SearchableHash is a deterministic, salted one-way digest of normalized
// plaintext.
type SearchableHash struct {
	Hash      string `json:"hash"`
	Salt      string `json:"salt"`
	Algorithm string `json:"algorithm"`
}

// CreateSearchableHash produces the equality-search digest of plaintext
// under keyID. Identical inputs under the same key always produce the same
// hash; different keys produce different hashes.
func (s *Service) CreateSearchableHash(plaintext string, keyID string) (*SearchableHash, error) {
	rec, err := s.keyring.active(keyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrEncryptionFailed, err)
	}
	return hashWithSalt(normalize(plaintext), rec.searchSalt), nil
}

// CreatePartialHash tokenizes text on whitespace, discards short tokens and
// returns one searchable hash per remaining token to support word-level
// containment search.
func (s *Service) CreatePartialHash(text string, keyID string) ([]SearchableHash, error) {
	rec, err := s.keyring.active(keyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrEncryptionFailed, err)
	}

	seen := make(map[string]bool)
	var out []SearchableHash
	for _, token := range strings.Fields(normalize(text)) {
		if len(token) < minTokenLength || seen[token] {
			continue
		}
		seen[token] = true
		out = append(out, *hashWithSalt(token, rec.searchSalt))
	}
	return out, nil
}

func hashWithSalt(normalized string, salt []byte) *SearchableHash {
	digest := pbkdf2.Key([]byte(normalized), salt, searchIterations, searchHashLength, sha256.New)
	return &SearchableHash{
		Hash:      base64.StdEncoding.EncodeToString(digest),
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Algorithm: AlgorithmSearchHash,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
