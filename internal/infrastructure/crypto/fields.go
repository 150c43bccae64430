package crypto

import (
	"fmt"

	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/shared"
)

// CipherType selects how a mapped column is protected.
type CipherType string

// Cipher type constants. RSA is reserved and unimplemented; callers must
// not rely on it.
const (
	CipherAES256 CipherType = "aes256"
	CipherHash   CipherType = "hash"
	CipherRSA    CipherType = "rsa"
)

// IndexType selects how a searchable column is indexed.
type IndexType string

// Index type constants.
const (
	IndexHash    IndexType = "hash"
	IndexPartial IndexType = "partial"
)

// Mapping declares how one (table, column) pair is protected. The catalog
// is immutable at runtime; protection is opt-in per column.
type Mapping struct {
	Table      string
	Column     string
	Type       CipherType
	KeyID      string
	Searchable bool
	Index      IndexType
}

// defaultMappings is the static encrypted-column catalog.
var defaultMappings = []Mapping{
	{Table: "users", Column: "email", Type: CipherAES256, KeyID: "user_pii", Searchable: true, Index: IndexHash},
	{Table: "users", Column: "phone", Type: CipherAES256, KeyID: "user_pii", Searchable: true, Index: IndexHash},
	{Table: "users", Column: "national_id", Type: CipherAES256, KeyID: "user_pii", Searchable: true, Index: IndexHash},
	{Table: "users", Column: "password", Type: CipherHash, KeyID: "user_auth"},
	{Table: "contacts", Column: "phone_number", Type: CipherAES256, KeyID: "contact_data", Searchable: true, Index: IndexHash},
	{Table: "contacts", Column: "email", Type: CipherAES256, KeyID: "contact_data", Searchable: true, Index: IndexHash},
	{Table: "fraud_reports", Column: "description", Type: CipherAES256, KeyID: "report_content", Searchable: true, Index: IndexPartial},
	{Table: "fraud_reports", Column: "investigation_notes", Type: CipherAES256, KeyID: "report_content", Searchable: true, Index: IndexPartial},
	{Table: "transactions", Column: "amount", Type: CipherAES256, KeyID: "financial"},
	{Table: "transactions", Column: "account_number", Type: CipherAES256, KeyID: "financial", Searchable: true, Index: IndexHash},
	{Table: "files", Column: "storage_path", Type: CipherAES256, KeyID: "file_paths"},
	{Table: "sessions", Column: "refresh_token", Type: CipherHash, KeyID: "session"},
	{Table: "system_configuration", Column: "value", Type: CipherAES256, KeyID: "config"},
}

// FieldCipher applies the mapping catalog on top of the Service.
type FieldCipher struct {
	service  *Service
	mappings map[string]Mapping
}

// NewFieldCipher builds a FieldCipher over the default catalog.
func NewFieldCipher(service *Service) *FieldCipher {
	return NewFieldCipherWithMappings(service, defaultMappings)
}

// NewFieldCipherWithMappings builds a FieldCipher over an explicit catalog.
func NewFieldCipherWithMappings(service *Service, mappings []Mapping) *FieldCipher {
	byColumn := make(map[string]Mapping, len(mappings))
	for _, m := range mappings {
		byColumn[mappingKey(m.Table, m.Column)] = m
	}
	return &FieldCipher{service: service, mappings: byColumn}
}

func mappingKey(table, column string) string {
	return table + "." + column
}

// Lookup returns the mapping for a column, if any.
func (fc *FieldCipher) Lookup(table, column string) (Mapping, bool) {
	m, ok := fc.mappings[mappingKey(table, column)]
	return m, ok
}

// EncryptField protects a value according to the column's mapping. Columns
// without a mapping pass through unchanged.
func (fc *FieldCipher) EncryptField(table, column, value string) (interface{}, error) {
	m, ok := fc.Lookup(table, column)
	if !ok {
		return value, nil
	}
	switch m.Type {
	case CipherAES256:
		return fc.service.Encrypt(value, m.KeyID)
	case CipherHash:
		return HashPassword(value)
	case CipherRSA:
		return nil, fmt.Errorf("%w: rsa is reserved for %s.%s", shared.ErrUnsupportedCipherType, table, column)
	default:
		return nil, fmt.Errorf("%w: %q for %s.%s", shared.ErrUnsupportedCipherType, m.Type, table, column)
	}
}

// DecryptField reverses EncryptField for reversible mappings. One-way
// mappings cannot be decrypted.
func (fc *FieldCipher) DecryptField(table, column string, stored interface{}) (string, error) {
	m, ok := fc.Lookup(table, column)
	if !ok {
		if s, isString := stored.(string); isString {
			return s, nil
		}
		return "", fmt.Errorf("%w: unmapped column %s.%s holds non-string value", shared.ErrInvalidEncryptedFormat, table, column)
	}
	switch m.Type {
	case CipherAES256:
		data, isEnvelope := stored.(*EncryptedData)
		if !isEnvelope {
			return "", fmt.Errorf("%w: %s.%s expects an encrypted envelope", shared.ErrInvalidEncryptedFormat, table, column)
		}
		return fc.service.Decrypt(data)
	case CipherHash:
		return "", fmt.Errorf("%w: %s.%s is hashed one-way", shared.ErrDecryptionFailed, table, column)
	default:
		return "", fmt.Errorf("%w: %q for %s.%s", shared.ErrUnsupportedCipherType, m.Type, table, column)
	}
}

// CreateSearchIndex produces searchable hash material for a column, or nil
// when the column is not searchable.
func (fc *FieldCipher) CreateSearchIndex(table, column, value string) ([]SearchableHash, error) {
	m, ok := fc.Lookup(table, column)
	if !ok || !m.Searchable {
		return nil, nil
	}
	switch m.Index {
	case IndexPartial:
		return fc.service.CreatePartialHash(value, m.KeyID)
	default:
		h, err := fc.service.CreateSearchableHash(value, m.KeyID)
		if err != nil {
			return nil, err
		}
		return []SearchableHash{*h}, nil
	}
}
