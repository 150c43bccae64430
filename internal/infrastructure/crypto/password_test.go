package crypto_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/crypto"
)

func TestHashPasswordAndVerify(t *testing.T) {
	encoded, err := crypto.HashPassword("S3cret-Passw0rd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$"))

	ok, err := crypto.VerifyPassword("S3cret-Passw0rd", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = crypto.VerifyPassword("wrong-password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordUsesRandomSalt(t *testing.T) {
	first, err := crypto.HashPassword("same")
	require.NoError(t, err)
	second, err := crypto.HashPassword("same")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHashPasswordWithSaltDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")

	first := crypto.HashPasswordWithSalt("value", salt)
	second := crypto.HashPasswordWithSalt("value", salt)

	assert.Equal(t, first, second)
}

func TestVerifyPasswordInvalidFormat(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{name: "empty", encoded: ""},
		{name: "not argon2id", encoded: "$bcrypt$10$abc$def"},
		{name: "missing sections", encoded: "$argon2id$v=19$m=65536,t=3,p=2$saltonly"},
		{name: "bad base64", encoded: "$argon2id$v=19$m=65536,t=3,p=2$!!!$!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := crypto.VerifyPassword("pw", tt.encoded)
			assert.ErrorIs(t, err, crypto.ErrInvalidHashFormat)
		})
	}
}
