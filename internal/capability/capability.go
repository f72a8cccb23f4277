// Package capability defines the signing and encryption capabilities the
// authorization layer gates access to. The engine never performs the signing
// math itself; it hands a decrypted private key to an injected Provider once
// a request has been authorized.
package capability

// EventTemplate is an unsigned Nostr event as submitted by a web page.
type EventTemplate struct {
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
}

// SignedEvent is the result of signing an EventTemplate.
type SignedEvent struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Signer derives public keys and signs events.
type Signer interface {
	PublicKey(privateKeyHex string) (string, error)
	SignEvent(privateKeyHex string, t EventTemplate) (*SignedEvent, error)
}

// Cipher encrypts and decrypts direct messages in both the NIP-04 and NIP-44
// schemes. Ciphertext is carried as an opaque base64-flavored string.
type Cipher interface {
	NIP04Encrypt(privateKeyHex, peerPubKey, plaintext string) (string, error)
	NIP04Decrypt(privateKeyHex, peerPubKey, ciphertext string) (string, error)
	NIP44Encrypt(privateKeyHex, peerPubKey, plaintext string) (string, error)
	NIP44Decrypt(privateKeyHex, peerPubKey, ciphertext string) (string, error)
}

// Provider is the full injected capability set.
type Provider interface {
	Signer
	Cipher
}
