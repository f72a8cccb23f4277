// Package cryptox implements the password hashing, versioned key derivation,
// and authenticated field encryption the vault is built on.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"

	"github.com/nostrvault/nostrvault/internal/common"
)

// Derivation parameters are fixed constants shared between the encrypt and
// decrypt paths. Changing any of them silently breaks all existing vaults.
const (
	// v1 (legacy): fast PBKDF2-SHA256 with an application-wide salt.
	v1Iterations = 100000
	v1KeyLength  = 32

	// v2: memory-hard argon2id, tuned to take on the order of seconds.
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // KiB
	argon2Threads = 4
	argon2KeyLen  = 32

	// GCMNonceSize is the length of the per-vault IV stored in the header.
	GCMNonceSize = 12

	// SaltSize is the length of the random salt generated for v2 vaults.
	SaltSize = 32
)

// v1Salt is the fixed salt for the legacy derivation; v1 vaults carry no
// salt of their own.
var v1Salt = []byte("nostrvault.v1")

// HashPassword returns the hex SHA-256 of the password. The result is used
// only for equality checks against the stored verification hash; it is never
// used as an encryption key.
func HashPassword(password string) string {
	h := sha256.Sum256([]byte(password))
	return hex.EncodeToString(h[:])
}

// DeriveKeyV1 derives an AES-256 key from the password alone. Acceptable
// only for legacy v1 vaults; every successful v1 unlock migrates away from it.
func DeriveKeyV1(password string) []byte {
	return pbkdf2.Key([]byte(password), v1Salt, v1Iterations, v1KeyLength, sha256.New)
}

// DeriveKeyV2 derives a 32-byte key from the password and a per-vault salt
// using argon2id. This is the deliberately slow, once-per-unlock derivation.
func DeriveKeyV2(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// GenerateIV returns a fresh random GCM nonce for a new vault generation.
func GenerateIV() []byte {
	return common.GenerateRandByteArray(GCMNonceSize)
}

// GenerateSalt returns a fresh random salt for a v2 vault.
func GenerateSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// EncryptField encrypts a single opaque UTF-8 string with AES-256-GCM under
// the context's key and IV and returns base64 ciphertext. Numbers and
// booleans are encrypted as their string representation.
func EncryptField(plaintext string, ctx Context) (string, error) {
	aesgcm, err := newGCM(ctx)
	if err != nil {
		return "", err
	}
	ct := aesgcm.Seal(nil, ctx.IV(), []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ct), nil
}

// DecryptField reverses EncryptField. Any failure, malformed base64 or an
// authentication-tag mismatch, reports the same common.ErrDecryptionFailed so
// callers cannot tell which field failed or why.
func DecryptField(ciphertext string, ctx Context) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}
	aesgcm, err := newGCM(ctx)
	if err != nil {
		return "", err
	}
	pt, err := aesgcm.Open(nil, ctx.IV(), raw, nil)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}
	return string(pt), nil
}

func newGCM(ctx Context) (cipher.AEAD, error) {
	block, err := aes.NewCipher(ctx.fieldKey())
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return aesgcm, nil
}
