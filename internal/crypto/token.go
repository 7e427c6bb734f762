package crypto

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken produces a stable digest of a bearer token, used as the
// denylist key so raw tokens are never stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
