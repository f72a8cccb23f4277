// Package common defines shared constants and sentinel errors used across
// the vault, policy, and coordinator layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrNotFound = errors.New("not found")

	// Vault lifecycle errors.
	ErrInvalidPassword  = errors.New("invalid password")
	ErrVaultNotUnlocked = errors.New("vault not unlocked")
	ErrUnlockInProgress = errors.New("unlock already in progress")
	ErrVaultNotFound    = errors.New("vault not found")
	ErrVaultExists      = errors.New("vault already exists")

	// Crypto errors. Every failed field decryption reports this same value
	// regardless of which field failed.
	ErrDecryptionFailed = errors.New("decryption failed")

	// Mutation validation errors.
	ErrDuplicateKeyMaterial = errors.New("private key already exists")
	ErrDuplicateRelayURL    = errors.New("relay url already exists")

	// Authorization errors. ErrPermissionDenied is the only failure the
	// requesting origin may observe; timeout and window-closed are internal
	// reasons that collapse into it at the boundary.
	ErrPermissionDenied   = errors.New("permission denied")
	ErrCapacityExceeded   = errors.New("request queue capacity exceeded")
	ErrPromptTimeout      = errors.New("prompt timed out")
	ErrPromptWindowClosed = errors.New("prompt window closed")
)
