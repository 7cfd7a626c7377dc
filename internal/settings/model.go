package settings

import "time"

// Settings holds a user's integration configuration. The API key is stored
// encrypted at rest; legacy rows may still carry a plaintext key.
type Settings struct {
	UserID           string
	NotionAPIKey     *string
	NotionDatabaseID *string
	UpdatedAt        time.Time
}

// KeyKind distinguishes how a stored API key is represented.
type KeyKind int

const (
	// KeyPlaintext is a legacy key stored as typed by the user.
	KeyPlaintext KeyKind = iota
	// KeyEncrypted is a key wrapped with the server encryption secret.
	KeyEncrypted
)

// StoredKey tags a raw stored value with its representation so callers
// never have to guess whether decryption is required.
type StoredKey struct {
	Kind  KeyKind
	Value string
}
