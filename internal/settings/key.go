package settings

import "docextract-backend/internal/validation"

// ClassifyKey inspects a stored key value and reports whether it is a
// legacy plaintext key or ciphertext. Plaintext keys are recognized by
// their provider prefix; anything else is assumed encrypted.
func ClassifyKey(raw string) StoredKey {
	if validation.HasKnownKeyPrefix(raw) {
		return StoredKey{Kind: KeyPlaintext, Value: raw}
	}
	return StoredKey{Kind: KeyEncrypted, Value: raw}
}
