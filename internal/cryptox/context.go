package cryptox

// Context selects the key material and nonce a given vault version uses for
// field encryption. A context is built fresh on every unlock from the vault
// header plus the user-supplied password; it is never persisted.
//
// The two implementations make the v1-vs-v2 branch explicit at the type
// level instead of being inferred from the presence of a salt field.
type Context interface {
	// IV returns the GCM nonce shared by every field operation of the
	// current vault generation.
	IV() []byte

	// fieldKey returns the AES-256 key for a single field operation.
	fieldKey() []byte
}

// V1Context is the legacy path: it holds the raw password and derives a key
// per operation with the fast PBKDF2 derivation.
type V1Context struct {
	iv       []byte
	password string
}

func NewV1Context(iv []byte, password string) *V1Context {
	return &V1Context{iv: iv, password: password}
}

func (c *V1Context) IV() []byte { return c.iv }

func (c *V1Context) fieldKey() []byte { return DeriveKeyV1(c.password) }

// V2Context holds only the argon2id-derived key, so the plaintext password
// can be dropped as soon as the unlock derivation finishes.
type V2Context struct {
	iv  []byte
	key []byte
}

func NewV2Context(iv, key []byte) *V2Context {
	return &V2Context{iv: iv, key: key}
}

func (c *V2Context) IV() []byte { return c.iv }

func (c *V2Context) fieldKey() []byte { return c.key }

// Key exposes the derived key so the vault session can wipe it on lock.
func (c *V2Context) Key() []byte { return c.key }
