package token

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// MinKeyBytes is the minimum HMAC key size for HS256.
const MinKeyBytes = 32

// SigningKey is the process-wide HMAC secret.  It is built once at startup
// and never mutated, so it is safe to share across goroutines.
type SigningKey struct {
	secret []byte
}

// NewSigningKey copies secret into a SigningKey.  Secrets shorter than
// MinKeyBytes are rejected.
func NewSigningKey(secret string) (SigningKey, error) {
	if len(secret) < MinKeyBytes {
		return SigningKey{}, fmt.Errorf("signing secret must be at least %d bytes, got %d", MinKeyBytes, len(secret))
	}
	return SigningKey{secret: []byte(secret)}, nil
}

func (k SigningKey) bytes() []byte { return k.secret }

// HashToken returns the SHA-256 hex digest of an encoded token.  Refresh
// tokens are persisted by this digest so a leaked table cannot be replayed.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
