package crypto_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/shared"
	"github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/crypto"
)

func newTestFieldCipher(t *testing.T) *crypto.FieldCipher {
	t.Helper()
	svc := newTestService(t, "user_pii", "user_auth", "contact_data", "report_content", "financial", "file_paths", "session", "config")
	return crypto.NewFieldCipher(svc)
}

func TestFieldCipherLookup(t *testing.T) {
	fc := newTestFieldCipher(t)

	m, ok := fc.Lookup("users", "email")
	require.True(t, ok)
	assert.Equal(t, crypto.CipherAES256, m.Type)
	assert.Equal(t, "user_pii", m.KeyID)
	assert.True(t, m.Searchable)

	_, ok = fc.Lookup("users", "display_name")
	assert.False(t, ok)
}

func TestEncryptFieldRoundTrip(t *testing.T) {
	fc := newTestFieldCipher(t)

	stored, err := fc.EncryptField("contacts", "phone_number", "9876543210")
	require.NoError(t, err)

	data, ok := stored.(*crypto.EncryptedData)
	require.True(t, ok, "mapped aes256 column stores an envelope")
	assert.Equal(t, "contact_data", data.KeyID)

	plain, err := fc.DecryptField("contacts", "phone_number", data)
	require.NoError(t, err)
	assert.Equal(t, "9876543210", plain)
}

func TestEncryptFieldUnmappedPassthrough(t *testing.T) {
	fc := newTestFieldCipher(t)

	stored, err := fc.EncryptField("users", "display_name", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", stored)

	plain, err := fc.DecryptField("users", "display_name", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", plain)
}

func TestEncryptFieldHashColumn(t *testing.T) {
	fc := newTestFieldCipher(t)

	stored, err := fc.EncryptField("users", "password", "S3cret!")
	require.NoError(t, err)

	encoded, ok := stored.(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	// Hashed columns are one-way.
	_, err = fc.DecryptField("users", "password", encoded)
	assert.ErrorIs(t, err, shared.ErrDecryptionFailed)
}

func TestDecryptFieldRejectsBadEnvelope(t *testing.T) {
	fc := newTestFieldCipher(t)

	_, err := fc.DecryptField("users", "email", "not-an-envelope")
	assert.ErrorIs(t, err, shared.ErrInvalidEncryptedFormat)
}

func TestCreateSearchIndex(t *testing.T) {
	fc := newTestFieldCipher(t)

	t.Run("hash index yields one entry", func(t *testing.T) {
		hashes, err := fc.CreateSearchIndex("contacts", "phone_number", "9876543210")
		require.NoError(t, err)
		require.Len(t, hashes, 1)
		assert.Equal(t, crypto.AlgorithmSearchHash, hashes[0].Algorithm)
	})

	t.Run("partial index yields one entry per token", func(t *testing.T) {
		hashes, err := fc.CreateSearchIndex("fraud_reports", "description", "fake invoice scheme")
		require.NoError(t, err)
		assert.Len(t, hashes, 3)
	})

	t.Run("unmapped column yields nothing", func(t *testing.T) {
		hashes, err := fc.CreateSearchIndex("users", "display_name", "Alice")
		require.NoError(t, err)
		assert.Nil(t, hashes)
	})

	t.Run("non-searchable column yields nothing", func(t *testing.T) {
		hashes, err := fc.CreateSearchIndex("transactions", "amount", "12000.50")
		require.NoError(t, err)
		assert.Nil(t, hashes)
	})
}

// Storing a contact phone number and later finding it by equality search is
// the primary consumer flow for searchable encryption.
func TestContactPhoneStoreAndSearch(t *testing.T) {
	svc := newTestService(t, "contact_data")
	fc := crypto.NewFieldCipherWithMappings(svc, []crypto.Mapping{
		{Table: "contacts", Column: "phone_number", Type: crypto.CipherAES256, KeyID: "contact_data", Searchable: true, Index: crypto.IndexHash},
	})

	stored, err := fc.EncryptField("contacts", "phone_number", "9876543210")
	require.NoError(t, err)
	index, err := fc.CreateSearchIndex("contacts", "phone_number", "9876543210")
	require.NoError(t, err)
	require.Len(t, index, 1)

	// Lookup side computes the same digest from the raw query term.
	query, err := svc.CreateSearchableHash("9876543210", "contact_data")
	require.NoError(t, err)
	assert.Equal(t, index[0].Hash, query.Hash)

	// A different number does not match the stored index.
	other, err := svc.CreateSearchableHash("0123456789", "contact_data")
	require.NoError(t, err)
	assert.NotEqual(t, index[0].Hash, other.Hash)

	// And the matched row still decrypts to the original value.
	plain, err := fc.DecryptField("contacts", "phone_number", stored)
	require.NoError(t, err)
	assert.Equal(t, "9876543210", plain)
}
