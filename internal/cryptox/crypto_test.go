package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nostrvault/nostrvault/internal/common"
)

func TestHashPassword_Deterministic(t *testing.T) {
	h1 := HashPassword("correct-horse")
	h2 := HashPassword("correct-horse")
	h3 := HashPassword("incorrect-horse")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestDeriveKeyV2_Deterministic(t *testing.T) {
	salt := []byte("fixed-salt-for-test")

	key1 := DeriveKeyV2("secret-password", salt)
	key2 := DeriveKeyV2("secret-password", salt)
	key3 := DeriveKeyV2("secret-password", []byte("another-salt"))

	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, key3)
	assert.Len(t, key1, 32)
}

func TestDeriveKeyV1_Deterministic(t *testing.T) {
	key1 := DeriveKeyV1("secret-password")
	key2 := DeriveKeyV1("secret-password")
	key3 := DeriveKeyV1("other-password")

	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, key3)
	assert.Len(t, key1, 32)
}

func TestEncryptDecryptField_RoundTrip_V1(t *testing.T) {
	ctx := NewV1Context(GenerateIV(), "correct-horse")

	for _, plaintext := range []string{"", "hello", "true", "30023", "приветствие"} {
		ct, err := EncryptField(plaintext, ctx)
		require.NoError(t, err)
		pt, err := DecryptField(ct, ctx)
		require.NoError(t, err)
		assert.Equal(t, plaintext, pt)
	}
}

func TestEncryptDecryptField_RoundTrip_V2(t *testing.T) {
	key := DeriveKeyV2("correct-horse", GenerateSalt())
	ctx := NewV2Context(GenerateIV(), key)

	ct, err := EncryptField("nsec-material", ctx)
	require.NoError(t, err)
	pt, err := DecryptField(ct, ctx)
	require.NoError(t, err)
	assert.Equal(t, "nsec-material", pt)
}

func TestDecryptField_TamperedCiphertext(t *testing.T) {
	ctx := NewV2Context(GenerateIV(), DeriveKeyV2("pw", GenerateSalt()))

	ct, err := EncryptField("payload", ctx)
	require.NoError(t, err)

	tampered := []byte(ct)
	tampered[0] ^= 0xff

	_, err = DecryptField(string(tampered), ctx)
	assert.ErrorIs(t, err, common.ErrDecryptionFailed)
}

func TestDecryptField_WrongKey(t *testing.T) {
	iv := GenerateIV()
	salt := GenerateSalt()
	good := NewV2Context(iv, DeriveKeyV2("right", salt))
	bad := NewV2Context(iv, DeriveKeyV2("wrong", salt))

	ct, err := EncryptField("payload", good)
	require.NoError(t, err)

	_, err = DecryptField(ct, bad)
	assert.ErrorIs(t, err, common.ErrDecryptionFailed)
}

func TestDecryptField_InvalidBase64(t *testing.T) {
	ctx := NewV2Context(GenerateIV(), DeriveKeyV2("pw", GenerateSalt()))
	_, err := DecryptField("%%% not base64 %%%", ctx)
	assert.ErrorIs(t, err, common.ErrDecryptionFailed)
}
