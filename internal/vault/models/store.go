package models

// Store is the persisted, at-rest representation of the vault: an
// unencrypted header needed to attempt decryption plus per-field-encrypted
// content. The JSON shape is stable and must round-trip through
// export/import unchanged.
//
// Every leaf value inside the record arrays except structural ids is an
// opaque ciphertext string. Encrypting per field rather than per record lets
// a single corrupt record be skipped during load without invalidating the
// rest of the vault.
type Store struct {
	// Version selects the key derivation path: 1 is the legacy
	// password-based derivation, 2 is argon2id with the Salt below.
	Version int `json:"version"`

	// IV is the base64 GCM nonce shared by every field of this generation.
	IV string `json:"iv"`

	// Salt is the base64 argon2id salt; present only on v2 vaults.
	Salt string `json:"salt,omitempty"`

	// VaultHash verifies a candidate password without decrypting anything.
	VaultHash string `json:"vaultHash"`

	// SelectedIdentityID is ciphertext, or null when no identity is selected.
	SelectedIdentityID *string `json:"selectedIdentityId"`

	Identities  []EncryptedIdentity   `json:"identities"`
	Permissions []EncryptedPermission `json:"permissions"`
	Relays      []EncryptedRelay      `json:"relays"`

	NWCConnections []EncryptedWalletConnection `json:"nwcConnections,omitempty"`
	CashuMints     []EncryptedCashuMint        `json:"cashuMints,omitempty"`
}

// EncryptedIdentity mirrors Identity with ciphertext leaves.
type EncryptedIdentity struct {
	ID         string `json:"id"`
	Nickname   string `json:"nickname"`
	PrivateKey string `json:"privateKey"`
	CreatedAt  string `json:"createdAt"`
}

// EncryptedPermission mirrors Permission with ciphertext leaves. Kind is the
// ciphertext of the decimal kind and is empty for blanket rules.
type EncryptedPermission struct {
	ID         string `json:"id"`
	IdentityID string `json:"identityId"`
	Host       string `json:"host"`
	Method     string `json:"method"`
	Policy     string `json:"policy"`
	Kind       string `json:"kind,omitempty"`
}

// EncryptedRelay mirrors Relay; the read/write booleans cross as the
// ciphertext of "true"/"false".
type EncryptedRelay struct {
	ID         string `json:"id"`
	IdentityID string `json:"identityId"`
	URL        string `json:"url"`
	Read       string `json:"read"`
	Write      string `json:"write"`
}

// EncryptedWalletConnection mirrors WalletConnection.
type EncryptedWalletConnection struct {
	ID         string `json:"id"`
	IdentityID string `json:"identityId"`
	Name       string `json:"name"`
	PairingURI string `json:"pairingUri"`
}

// EncryptedCashuMint mirrors CashuMint.
type EncryptedCashuMint struct {
	ID         string `json:"id"`
	IdentityID string `json:"identityId"`
	URL        string `json:"url"`
	Unit       string `json:"unit"`
}
